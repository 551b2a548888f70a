package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type Counter int

const (
	MessagesReceived Counter = iota
	ProtocolErrors
	RegistrationsAccepted
	RegistrationsRejected
	ViolationsRecorded
	ViolationsSuppressed
	WarningsSent
	FlagsSent
	LocksApplied
	EmergencyLocks
	PermissionsRequested
	PermissionsApproved
	PermissionsRejected
	counterCount
)

// Stats is the snapshot served to the operator console.
type Stats struct {
	ConnectedParticipants int       `json:"connected_participants"`
	MessagesReceived      uint64    `json:"messages_received"`
	ProtocolErrors        uint64    `json:"protocol_errors"`
	RegistrationsAccepted uint64    `json:"registrations_accepted"`
	RegistrationsRejected uint64    `json:"registrations_rejected"`
	ViolationsRecorded    uint64    `json:"violations_recorded"`
	ViolationsSuppressed  uint64    `json:"violations_suppressed"`
	WarningsSent          uint64    `json:"warnings_sent"`
	FlagsSent             uint64    `json:"flags_sent"`
	LocksApplied          uint64    `json:"locks_applied"`
	EmergencyLocks        uint64    `json:"emergency_locks"`
	PermissionsRequested  uint64    `json:"permissions_requested"`
	PermissionsApproved   uint64    `json:"permissions_approved"`
	PermissionsRejected   uint64    `json:"permissions_rejected"`
	AllocMemMb            uint64    `json:"alloc_mem_mb"`
	NumGC                 uint32    `json:"num_gc"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Monitor aggregates proctoring counters. A nil *Monitor is valid and
// records nothing.
type Monitor struct {
	log       *slog.Logger
	counters  [counterCount]atomic.Uint64
	connected func() int

	mu     sync.RWMutex
	latest Stats
}

func NewMonitor(log *slog.Logger, connected func() int) *Monitor {
	return &Monitor{log: log, connected: connected}
}

func (m *Monitor) Incr(c Counter) {
	if m == nil {
		return
	}
	m.counters[c].Add(1)
}

func (m *Monitor) Get(c Counter) uint64 {
	if m == nil {
		return 0
	}
	return m.counters[c].Load()
}

// Refresh rebuilds the snapshot from the counters and Go memory stats.
func (m *Monitor) Refresh() Stats {
	if m == nil {
		return Stats{}
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Stats{
		MessagesReceived:      m.Get(MessagesReceived),
		ProtocolErrors:        m.Get(ProtocolErrors),
		RegistrationsAccepted: m.Get(RegistrationsAccepted),
		RegistrationsRejected: m.Get(RegistrationsRejected),
		ViolationsRecorded:    m.Get(ViolationsRecorded),
		ViolationsSuppressed:  m.Get(ViolationsSuppressed),
		WarningsSent:          m.Get(WarningsSent),
		FlagsSent:             m.Get(FlagsSent),
		LocksApplied:          m.Get(LocksApplied),
		EmergencyLocks:        m.Get(EmergencyLocks),
		PermissionsRequested:  m.Get(PermissionsRequested),
		PermissionsApproved:   m.Get(PermissionsApproved),
		PermissionsRejected:   m.Get(PermissionsRejected),
		AllocMemMb:            mem.Alloc / 1024 / 1024,
		NumGC:                 mem.NumGC,
		UpdatedAt:             time.Now().UTC(),
	}
	if m.connected != nil {
		s.ConnectedParticipants = m.connected()
	}

	m.mu.Lock()
	m.latest = s
	m.mu.Unlock()

	m.log.Debug("Stats refreshed",
		"connected", s.ConnectedParticipants,
		"violations", s.ViolationsRecorded,
		"locks", s.LocksApplied,
		"mem_mb", s.AllocMemMb,
	)
	return s
}

// Latest returns the last snapshot built by Refresh.
func (m *Monitor) Latest() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// AsMap flattens the latest snapshot for the debug inspector.
func (m *Monitor) AsMap() map[string]any {
	s := m.Latest()
	return map[string]any{
		"connected":  s.ConnectedParticipants,
		"violations": s.ViolationsRecorded,
		"warnings":   s.WarningsSent,
		"locks":      s.LocksApplied,
		"permission": s.PermissionsRequested,
		"mem_mb":     s.AllocMemMb,
	}
}
