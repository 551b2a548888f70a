package workers

import (
	"context"
	"log/slog"
	"proctor/detection"
	"proctor/domain"
	"proctor/errors"
	"proctor/mocks"
	"proctor/observability"
	"proctor/protocol"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeLister struct {
	mu     sync.Mutex
	procs  []ProcessInfo
	killed []int32
}

func (f *fakeLister) List() ([]ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ProcessInfo(nil), f.procs...), nil
}

func (f *fakeLister) Kill(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	return nil
}

func (f *fakeLister) set(procs ...ProcessInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = procs
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func TestHeartbeatWorker_SendsHeartbeatThenStatus(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	link := mocks.NewMockParticipantLink(ctrl)
	status := protocol.Data{"cpu_percent": 3.5}

	var mu sync.Mutex
	var calls []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, name)
	}
	link.EXPECT().SendHeartbeat().DoAndReturn(func() error {
		record("heartbeat")
		return nil
	}).AnyTimes()
	link.EXPECT().SendStatusUpdate(status).DoAndReturn(func(protocol.Data) error {
		record("status")
		return nil
	}).AnyTimes()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	w := NewHeartbeatWorker(testLogger(), link, 10*time.Millisecond, func() (protocol.Data, error) { return status, nil })

	err := w.Run(ctx)

	// Then every tick sends the heartbeat first and the status right after
	req.ErrorIs(err, context.DeadlineExceeded)
	mu.Lock()
	defer mu.Unlock()
	req.GreaterOrEqual(len(calls), 2)
	for i, name := range calls {
		if i%2 == 0 {
			req.Equal("heartbeat", name, "call %d", i)
		} else {
			req.Equal("status", name, "call %d", i)
		}
	}
}

func TestHeartbeatWorker_SkipsStatusWhileOffline(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	link := mocks.NewMockParticipantLink(ctrl)

	link.EXPECT().SendHeartbeat().Return(errors.ErrNotConnected).MinTimes(1)
	link.EXPECT().SendStatusUpdate(gomock.Any()).Times(0)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := NewHeartbeatWorker(testLogger(), link, 10*time.Millisecond, nil).Run(ctx)

	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestProcessMonitorWorker_ReportsEachOffenderOnce(t *testing.T) {
	req := require.New(t)
	blocklist, err := detection.NewBlocklist([]string{"discord", "TeamViewer"}, nil)
	req.NoError(err)
	lister := &fakeLister{}
	lister.set(ProcessInfo{PID: 1, Name: "explorer.exe"}, ProcessInfo{PID: 42, Name: "Discord.exe"})
	events := make(chan domain.ViolationEvent, 10)
	w := NewProcessMonitorWorker(testLogger(), lister, blocklist, events, time.Second, false)

	// When the same table is scanned twice
	req.NoError(w.Scan(context.Background()))
	req.NoError(w.Scan(context.Background()))

	// Then the offender is reported only once
	req.Len(events, 1)
	evt := <-events
	req.Equal(domain.ApplicationBlocked, evt.Type)
	req.Equal(domain.SeverityHigh, evt.Severity)
	req.Contains(evt.Description, "Discord.exe")
	req.Empty(lister.killed)

	// When the process exits and a new one reuses the pid
	lister.set(ProcessInfo{PID: 1, Name: "explorer.exe"})
	req.NoError(w.Scan(context.Background()))
	lister.set(ProcessInfo{PID: 42, Name: "teamviewer_service.exe"})
	req.NoError(w.Scan(context.Background()))

	// Then it is checked again
	req.Len(events, 1)
}

func TestProcessMonitorWorker_KillsAndFollowsNewRules(t *testing.T) {
	req := require.New(t)
	lister := &fakeLister{}
	lister.set(ProcessInfo{PID: 7, Name: "chrome.exe"})
	events := make(chan domain.ViolationEvent, 10)
	w := NewProcessMonitorWorker(testLogger(), lister, nil, events, time.Second, true)

	// Given no rules yet, nothing is reported
	req.NoError(w.Scan(context.Background()))
	req.Empty(events)

	// When CONFIG_UPDATE blocks chrome
	blocklist, err := detection.NewBlocklist([]string{"chrome"}, nil)
	req.NoError(err)
	w.SetBlocklist(blocklist)
	req.NoError(w.Scan(context.Background()))

	// Then it is reported and terminated
	req.Len(events, 1)
	req.Contains((<-events).Description, "(dihentikan)")
	req.Equal([]int32{7}, lister.killed)
}

func TestViolationReporterWorker_HonoursPermissionGate(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	link := mocks.NewMockParticipantLink(ctrl)
	gate := detection.NewPermissionGate(nil)
	defer gate.Stop()
	gate.Activate(time.Now().Add(time.Minute))

	events := make(chan domain.ViolationEvent, 3)
	faceAbsence := domain.ViolationEvent{Type: domain.FaceAbsence, Severity: domain.SeverityMedium}
	voice := domain.ViolationEvent{Type: domain.VoiceActivity, Severity: domain.SeverityLow}
	events <- faceAbsence
	events <- voice
	close(events)

	// Only the non suppressed type goes out
	link.EXPECT().SendViolationReport(voice).Return(nil).Times(1)
	link.EXPECT().SendViolationReport(faceAbsence).Times(0)

	err := NewViolationReporterWorker(testLogger(), events, gate, link).Run(context.Background())

	req.NoError(err)
}

func TestStatsWorker_RefreshesSnapshot(t *testing.T) {
	req := require.New(t)
	monitor := observability.NewMonitor(testLogger(), func() int { return 3 })
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	req.NoError(NewStatsWorker(testLogger(), monitor, 5*time.Millisecond).Run(ctx))

	stats := monitor.Latest()
	req.Equal(3, stats.ConnectedParticipants)
	req.False(stats.UpdatedAt.IsZero())
}
