package workers

import (
	"context"
	"log/slog"
	"os"
	"proctor/contract"
	"proctor/protocol"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SelfStats samples the participant process itself.
type SelfStats func() (protocol.Data, error)

// HeartbeatWorker keeps the participant ACTIVE on the server and reports
// technical metrics (CPU, RAM, Status) along with each heartbeat.
type HeartbeatWorker struct {
	log      *slog.Logger
	link     contract.ParticipantLink
	interval time.Duration
	stats    SelfStats
}

func NewHeartbeatWorker(log *slog.Logger, link contract.ParticipantLink, interval time.Duration, stats SelfStats) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, link: link, interval: interval, stats: stats}
}

// Run sends HEARTBEAT then STATUS_UPDATE every interval. A send failure is
// only logged; the reconnecting client owns transport recovery.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting participant heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.link.SendHeartbeat(); err != nil {
				w.log.Debug("Heartbeat not sent", "error", err)
				continue
			}
			if w.stats == nil {
				continue
			}
			status, err := w.stats()
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			if err := w.link.SendStatusUpdate(status); err != nil {
				w.log.Debug("Status update not sent", "error", err)
			}
		}
	}
}

// ProcessSelfStats retrieves memory, CPU and OS status of the current process.
func ProcessSelfStats() (SelfStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return func() (protocol.Data, error) {
		memInfo, err := p.MemoryInfo()
		if err != nil {
			return nil, err
		}
		cpuPercent, err := p.CPUPercent()
		if err != nil {
			return nil, err
		}
		status, err := p.Status()
		if err != nil {
			return nil, err
		}
		return protocol.Data{
			"pid":         p.Pid,
			"pid_status":  status,
			"cpu_percent": cpuPercent,
			"ram_bytes":   memInfo.RSS,
		}, nil
	}, nil
}
