package services

import (
	"context"
	"log/slog"
	"proctor/domain"
	"proctor/errors"
	"proctor/infrastructure/storage"
	"proctor/observability"
	"proctor/protocol"
	"proctor/runtime"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// fakeConn stands in for a websocket and records what the server wrote.
type fakeConn struct {
	mu     sync.Mutex
	sent   []protocol.Message
	closed bool
}

func (c *fakeConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrSendFailed
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) ofType(t protocol.MessageType) []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Filter(c.sent, func(m protocol.Message, _ int) bool { return m.Type == t })
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

type harness struct {
	participants *storage.ParticipantRepository
	exams        *storage.ExamSessionRepository
	permissions  *storage.PermissionRepository
	registry     *runtime.Registry
	monitor      *observability.Monitor
	escalation   *EscalationService
	permission   *PermissionService
	exam         *ExamService
	dispatcher   *runtime.Dispatcher
}

func newHarness(t *testing.T, autoEscalation bool) *harness {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	h := &harness{
		participants: storage.NewParticipantRepository(db, log),
		exams:        storage.NewExamSessionRepository(db, log),
		permissions:  storage.NewPermissionRepository(db, log),
		registry:     runtime.NewRegistry(log),
	}
	violations := storage.NewViolationRepository(db, log)
	h.monitor = observability.NewMonitor(log, h.registry.Count)
	h.escalation = NewEscalationService(h.participants, violations, h.exams, h.permissions,
		h.registry, h.monitor, log, domain.DefaultEscalationPolicy(), autoEscalation)
	h.permission = NewPermissionService(h.permissions, h.exams, h.registry, h.monitor, log)
	h.exam = NewExamService(h.exams, h.participants, violations, h.registry, h.escalation, log, domain.DefaultExamRules())
	registration := NewRegistrationService(h.participants, h.exams, log)
	h.dispatcher = NewMessageHandlers(registration, h.escalation, h.permission, h.exam, h.registry, h.monitor, log).
		Bind(runtime.NewDispatcher(log))
	return h
}

// connect opens a transport for id and sends REGISTER on it.
func (h *harness) connect(t *testing.T, id, name string) (*fakeConn, error) {
	conn := &fakeConn{}
	ctx := runtime.WithConn(context.Background(), conn)
	err := h.dispatcher.Dispatch(ctx, id, protocol.New(protocol.Register, protocol.Data{
		"name":          name,
		"computer_ip":   "10.0.0.12",
		"computer_name": "LAB-12",
	}, id))
	return conn, err
}

func (h *harness) dispatch(id string, t protocol.MessageType, data protocol.Data) error {
	return h.dispatcher.Dispatch(context.Background(), id, protocol.New(t, data, id))
}

func (h *harness) violation(id string, vt domain.ViolationType) error {
	return h.dispatch(id, protocol.ViolationReport, protocol.Data{
		"violation_type": string(vt),
		"severity":       "high",
		"description":    "Aplikasi terlarang: discord.exe",
	})
}

// enrolled starts a session, puts P1 on its roster and registers it.
func enrolled(t *testing.T, autoEscalation bool) (*harness, *fakeConn, domain.ExamSession) {
	h := newHarness(t, autoEscalation)
	exam, err := h.exam.StartSession("UTS Matematika")
	require.NoError(t, err)
	_, err = h.exam.AddParticipant("P1", "Budi Santoso")
	require.NoError(t, err)
	conn, err := h.connect(t, "P1", "budi santoso")
	require.NoError(t, err)
	return h, conn, exam
}

func TestRegister_UnknownParticipantIsRejected(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, true)
	_, err := h.exam.StartSession("UTS Matematika")
	req.NoError(err)

	// When a participant missing from the roster registers
	conn, err := h.connect(t, "X9", "Siapa")

	// Then the ack is a rejection naming the id
	req.ErrorIs(err, errors.ErrParticipantNotFound)
	acks := conn.ofType(protocol.RegisterAck)
	req.Len(acks, 1)
	req.Equal("rejected", acks[0].Data.String("status"))
	req.Contains(acks[0].Data.String("message"), "X9 tidak terdaftar")
	req.Equal(uint64(1), h.monitor.Get(observability.RegistrationsRejected))
}

func TestRegister_NameMismatchLeavesStateUntouched(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, true)
	_, err := h.exam.StartSession("UTS Matematika")
	req.NoError(err)
	_, err = h.exam.AddParticipant("P1", "Budi Santoso")
	req.NoError(err)

	// When P1 registers with another name
	conn, err := h.connect(t, "P1", "Andi")

	// Then the rejection names the registered name and nothing was stored
	req.ErrorIs(err, errors.ErrNameMismatch)
	acks := conn.ofType(protocol.RegisterAck)
	req.Len(acks, 1)
	req.Contains(acks[0].Data.String("message"), "Budi Santoso")

	p, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Equal(domain.Unregistered, p.State)
	req.Empty(p.ComputerIP)
}

func TestRegister_RejectedAttemptKeepsTheLiveConnection(t *testing.T) {
	req := require.New(t)

	// Given P1 registered and connected
	h, live, _ := enrolled(t, true)
	before, err := h.participants.GetParticipant("P1")
	req.NoError(err)

	// When a second connection for P1 registers with another name
	other, err := h.connect(t, "P1", "Andi")

	// Then only that connection hears the rejection
	req.ErrorIs(err, errors.ErrNameMismatch)
	acks := other.ofType(protocol.RegisterAck)
	req.Len(acks, 1)
	req.Equal("rejected", acks[0].Data.String("status"))

	// And the live handle keeps receiving, untouched in storage
	live.reset()
	req.Equal(1, h.escalation.EmergencyLock())
	req.Len(live.ofType(protocol.EmergencyLock), 1)
	req.Empty(other.ofType(protocol.EmergencyLock))
	req.False(live.closed)

	after, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Equal(before.State, after.State)
	req.Equal(before.LastHeartbeat, after.LastHeartbeat)
}

func TestRegister_WithoutActiveSessionIsRejected(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, true)
	_, err := h.exam.StartSession("UTS Matematika")
	req.NoError(err)
	_, err = h.exam.AddParticipant("P1", "Budi Santoso")
	req.NoError(err)
	_, err = h.exam.EndSession()
	req.NoError(err)

	conn, err := h.connect(t, "P1", "Budi Santoso")

	req.ErrorIs(err, errors.ErrSessionMismatch)
	req.Equal(msgSessionMismatch, conn.ofType(protocol.RegisterAck)[0].Data.String("message"))
}

func TestRegister_AcceptsRosteredParticipant(t *testing.T) {
	req := require.New(t)

	// Given P1 on the roster of the current session
	h, conn, exam := enrolled(t, true)

	// Then exactly one positive ack is produced, followed by the rules
	acks := conn.ofType(protocol.RegisterAck)
	req.Len(acks, 1)
	req.Equal("registered", acks[0].Data.String("status"))
	req.Equal("P1", acks[0].Data.String("participant_id"))
	req.Equal(exam.ID, acks[0].Data["exam_session_id"])

	configs := conn.ofType(protocol.ConfigUpdate)
	req.Len(configs, 1)
	req.Equal(domain.DefaultFlagThreshold, configs[0].Data["warnings_before_flag"])

	p, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.True(p.IsActive())
	req.Equal("10.0.0.12", p.ComputerIP)

	// And the first heartbeat marks the session ACTIVE
	req.NoError(h.dispatch("P1", protocol.Heartbeat, nil))
	p, err = h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Equal(domain.Active, p.State)
}

func TestEscalation_FlagAfterThreeViolations(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, true)

	// When three application_blocked violations arrive in sequence
	for range 3 {
		req.NoError(h.violation("P1", domain.ApplicationBlocked))
	}

	// Then warning_count is 3, a single FLAG was sent and P1 stays unlocked
	p, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Equal(3, p.WarningCount)
	req.Equal(3, p.ViolationCount)
	req.Equal(domain.Unlocked, p.Lock)

	warnings := conn.ofType(protocol.Warning)
	flags := lo.Filter(warnings, func(m protocol.Message, _ int) bool { return m.Data.Bool("flag") })
	req.Len(flags, 1)
	req.Len(warnings, 4)
	req.Equal("Peringatan: Aplikasi terlarang: discord.exe", warnings[0].Data.String("message"))
	req.Empty(conn.ofType(protocol.Lock))
}

func TestEscalation_LockAfterFiveViolations(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, true)

	// Given three violations already handled
	for range 3 {
		req.NoError(h.violation("P1", domain.ApplicationBlocked))
	}
	conn.reset()

	// When two more arrive
	req.NoError(h.violation("P1", domain.ApplicationBlocked))
	req.NoError(h.violation("P1", domain.ApplicationBlocked))

	// Then the fifth locks without a FLAG of its own
	p, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Equal(5, p.WarningCount)
	req.Equal(domain.Locked, p.Lock)

	locks := conn.ofType(protocol.Lock)
	req.Len(locks, 1)
	req.Equal(LockReasonAuto, locks[0].Data.String("reason"))

	warnings := conn.ofType(protocol.Warning)
	flags := lo.Filter(warnings, func(m protocol.Message, _ int) bool { return m.Data.Bool("flag") })
	req.Len(flags, 1, "only violation #4 flags")
	req.Equal(5, warnings[len(warnings)-1].Data.Int("warning_count", 0))
}

func TestEscalation_ManualModeOnlyRecords(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, false)

	for range 6 {
		req.NoError(h.violation("P1", domain.ScreenSwitch))
	}

	p, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Equal(6, p.ViolationCount)
	req.Zero(p.WarningCount)
	req.Equal(domain.IntegrityScore(6, 0), p.IntegrityScore)
	req.Equal(domain.Unlocked, p.Lock)
	req.Empty(conn.ofType(protocol.Warning))
	req.Empty(conn.ofType(protocol.Lock))
}

func TestEscalation_IntegrityScoreNeverNegative(t *testing.T) {
	req := require.New(t)
	h, _, _ := enrolled(t, false)

	for range 25 {
		req.NoError(h.violation("P1", domain.MultipleFaces))
	}

	p, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Zero(p.IntegrityScore)
}

func TestEscalation_RejectsUnregisteredParticipant(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, true)
	_, err := h.exam.StartSession("UTS Matematika")
	req.NoError(err)
	_, err = h.exam.AddParticipant("P2", "Sari")
	req.NoError(err)

	err = h.violation("P2", domain.ApplicationBlocked)

	req.ErrorIs(err, errors.ErrParticipantInactive)
	p, err := h.participants.GetParticipant("P2")
	req.NoError(err)
	req.Zero(p.ViolationCount)
}

func TestEscalation_UnknownViolationType(t *testing.T) {
	req := require.New(t)
	h, _, _ := enrolled(t, true)

	err := h.dispatch("P1", protocol.ViolationReport, protocol.Data{"violation_type": "telepathy"})

	req.ErrorIs(err, errors.ErrUnknownViolationType)
	req.True(errors.Is(err, errors.ErrValidation))
}

func TestEscalation_ManualLockIsIdempotent(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, false)

	// When the operator locks twice
	_, err := h.escalation.Lock("P1")
	req.NoError(err)
	p, err := h.escalation.Lock("P1")
	req.NoError(err)

	// Then only the first one reaches the participant
	req.Equal(domain.Locked, p.Lock)
	req.Len(conn.ofType(protocol.Lock), 1)
	req.Equal(uint64(1), h.monitor.Get(observability.LocksApplied))

	// And unlock notifies once
	_, err = h.escalation.Unlock("P1")
	req.NoError(err)
	_, err = h.escalation.Unlock("P1")
	req.NoError(err)
	req.Len(conn.ofType(protocol.Unlock), 1)
}

func TestEscalation_LockSurvivesReconnect(t *testing.T) {
	req := require.New(t)
	h, _, _ := enrolled(t, false)
	_, err := h.escalation.Lock("P1")
	req.NoError(err)

	// When P1 drops and comes back
	h.registry.Disconnect("P1")
	req.False(h.registry.Send("P1", protocol.New(protocol.Ping, nil, "P1")))
	conn, err := h.connect(t, "P1", "Budi Santoso")
	req.NoError(err)

	// Then the stored lock is re-sent after the ack
	locks := conn.ofType(protocol.Lock)
	req.Len(locks, 1)
	req.Equal(LockReasonRestored, locks[0].Data.String("reason"))
	req.Equal(1, h.registry.Count())
	req.True(h.registry.Send("P1", protocol.New(protocol.Ping, nil, "P1")))
}

func TestEscalation_EmergencyLockBroadcasts(t *testing.T) {
	req := require.New(t)
	h, first, _ := enrolled(t, true)
	_, err := h.exam.AddParticipant("P2", "Sari")
	req.NoError(err)
	second, err := h.connect(t, "P2", "Sari")
	req.NoError(err)

	n := h.escalation.EmergencyLock()

	req.Equal(2, n)
	req.Len(first.ofType(protocol.EmergencyLock), 1)
	req.Len(second.ofType(protocol.EmergencyLock), 1)

	// Lock state is not persisted
	p, err := h.participants.GetParticipant("P1")
	req.NoError(err)
	req.Equal(domain.Unlocked, p.Lock)
}

func TestPermission_ApprovalSuppressesFaceAbsenceUntilExpiry(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, true)
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	h.permission.now = func() time.Time { return t0 }
	h.escalation.now = func() time.Time { return t0.Add(time.Minute) }

	// Given an approved 10 minute leave
	req.NoError(h.dispatch("P1", protocol.PermissionRequest, protocol.Data{"reason": "toilet"}))
	pending, err := h.permission.List(domain.PermissionPending)
	req.NoError(err)
	req.Len(pending, 1)
	approved, err := h.permission.Approve(pending[0].ID)
	req.NoError(err)
	req.Equal(t0.Add(10*time.Minute), *approved.ExpiresAt)

	responses := conn.ofType(protocol.PermissionResponse)
	req.Len(responses, 1)
	req.True(responses[0].Data.Bool("approved"))
	req.Equal(protocol.FormatTimestamp(t0.Add(10*time.Minute)), responses[0].Data.String("expires_at"))

	// When face_absence arrives inside the window
	out, err := h.escalation.HandleViolation(domain.ViolationEvent{ParticipantID: "P1", Type: domain.FaceAbsence, Severity: domain.SeverityMedium})
	req.NoError(err)

	// Then it is suppressed, while other types still count
	req.True(out.Suppressed)
	out, err = h.escalation.HandleViolation(domain.ViolationEvent{ParticipantID: "P1", Type: domain.VoiceActivity, Severity: domain.SeverityLow})
	req.NoError(err)
	req.False(out.Suppressed)

	// And once expired, face_absence counts again
	h.escalation.now = func() time.Time { return t0.Add(10 * time.Minute) }
	out, err = h.escalation.HandleViolation(domain.ViolationEvent{ParticipantID: "P1", Type: domain.FaceAbsence, Severity: domain.SeverityMedium})
	req.NoError(err)
	req.False(out.Suppressed)
	req.Equal(2, out.Participant.ViolationCount)
}

func TestPermission_DoubleApproveFails(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, true)

	r, err := h.permission.Request("P1", PermissionPayload{RequestType: domain.DefaultRequestType, DurationMinutes: 5})
	req.NoError(err)
	_, err = h.permission.Approve(r.ID)
	req.NoError(err)

	_, err = h.permission.Approve(r.ID)
	req.ErrorIs(err, errors.ErrRequestNotPending)
	_, err = h.permission.Reject(r.ID)
	req.ErrorIs(err, errors.ErrRequestNotPending)
	req.Len(conn.ofType(protocol.PermissionResponse), 1)
}

func TestPermission_RejectCarriesNoReason(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, true)

	r, err := h.permission.Request("P1", PermissionPayload{RequestType: domain.DefaultRequestType, DurationMinutes: 5})
	req.NoError(err)
	_, err = h.permission.Reject(r.ID)
	req.NoError(err)

	responses := conn.ofType(protocol.PermissionResponse)
	req.Len(responses, 1)
	req.Equal(protocol.Data{"approved": false, "request_id": r.ID}, responses[0].Data)
	_, active, err := h.permission.Active("P1")
	req.NoError(err)
	req.False(active)
}

func TestPermission_RequestWithoutSessionIsRejected(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, true)

	_, err := h.permission.Request("P1", PermissionPayload{RequestType: domain.DefaultRequestType, DurationMinutes: 5})

	req.ErrorIs(err, errors.ErrNoActiveSession)
}

func TestHandlers_ProtocolEdges(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, true)

	// PING is answered with PONG
	req.NoError(h.dispatch("P1", protocol.Ping, nil))
	req.Len(conn.ofType(protocol.Pong), 1)

	// STATUS_UPDATE lands in presence
	req.NoError(h.dispatch("P1", protocol.StatusUpdate, protocol.Data{"cpu_percent": 12.5}))
	presence, ok := h.registry.Presence("P1")
	req.True(ok)
	req.Equal(12.5, presence.Status["cpu_percent"])

	// A server-to-participant type coming in is a protocol error
	err := h.dispatch("P1", protocol.Lock, nil)
	req.ErrorIs(err, errors.ErrUnhandledMessageType)
	req.True(errors.Is(err, errors.ErrProtocol))
}

func TestExam_PushConfigUpdatesPolicyAndBroadcasts(t *testing.T) {
	req := require.New(t)
	h, conn, _ := enrolled(t, true)
	conn.reset()

	rules := domain.DefaultExamRules()
	rules.Escalation.FlagThreshold = 1
	rules.Escalation.LockThreshold = 2
	rules.Applications.Blocked = []string{"discord"}

	n, err := h.exam.PushConfig(rules)
	req.NoError(err)
	req.Equal(1, n)
	req.Len(conn.ofType(protocol.ConfigUpdate), 1)
	req.Equal(2, h.escalation.Policy().LockThreshold)

	// The new thresholds apply to the next violations
	req.NoError(h.violation("P1", domain.ApplicationBlocked))
	req.NoError(h.violation("P1", domain.ApplicationBlocked))
	req.Len(conn.ofType(protocol.Lock), 1)

	// Invalid thresholds are refused and keep the previous policy
	rules.Escalation.LockThreshold = 0
	_, err = h.exam.PushConfig(rules)
	req.ErrorIs(err, errors.ErrInvalidRules)
	req.Equal(2, h.escalation.Policy().LockThreshold)
}

func TestExam_ListParticipantsMergesPresence(t *testing.T) {
	req := require.New(t)
	h, _, _ := enrolled(t, true)
	_, err := h.exam.AddParticipant("P2", "Sari")
	req.NoError(err)

	views, err := h.exam.ListParticipants()
	req.NoError(err)
	req.Len(views, 2)
	req.Equal("P1", views[0].ID)
	req.True(views[0].Connected)
	req.False(views[1].Connected)
}
