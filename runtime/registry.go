package runtime

import (
	"log/slog"
	"maps"
	"proctor/contract"
	"proctor/protocol"
	"slices"
	"sync"
	"time"
)

// Presence is the registry's view of one participant's liveness.
type Presence struct {
	ParticipantID string
	Connected     bool
	ConnectedAt   time.Time
	LastSeen      time.Time
	Status        protocol.Data
}

type Registry struct {
	mu       sync.RWMutex
	conns    map[string]contract.Conn // map participant -> live handle
	presence map[string]Presence
	log      *slog.Logger
	now      func() time.Time
	closed   bool
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		conns:    make(map[string]contract.Conn),
		presence: make(map[string]Presence),
		log:      log,
		now:      time.Now,
	}
}

// Register installs the live handle of a participant, silently replacing any
// previous one. The superseded handle is closed so its read loop ends.
func (r *Registry) Register(participantID string, conn contract.Conn) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = conn.Close()
		return
	}
	old := r.conns[participantID]
	r.conns[participantID] = conn
	now := r.now()
	r.presence[participantID] = Presence{
		ParticipantID: participantID,
		Connected:     true,
		ConnectedAt:   now,
		LastSeen:      now,
	}
	r.mu.Unlock()

	if old != nil && old != conn {
		r.log.Info("Connection replaced", "participant_id", participantID)
		_ = old.Close()
		return
	}
	r.log.Info("Participant connected", "participant_id", participantID)
}

// Send delivers one message without queueing or retry. A failed write
// disconnects that handle right away.
func (r *Registry) Send(participantID string, msg protocol.Message) bool {
	r.mu.RLock()
	conn, ok := r.conns[participantID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := conn.Send(msg); err != nil {
		r.log.Warn("Send failed, disconnecting", "participant_id", participantID, "type", msg.Type, "error", err)
		r.Release(participantID, conn)
		return false
	}
	r.Touch(participantID)
	return true
}

// Broadcast sends msg to every connected participant except the excluded
// ones, over a snapshot taken before any I/O. It returns how many were reached.
func (r *Registry) Broadcast(msg protocol.Message, exclude ...string) int {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	r.mu.RLock()
	snapshot := make(map[string]contract.Conn, len(r.conns))
	for id, conn := range r.conns {
		if _, excluded := skip[id]; !excluded {
			snapshot[id] = conn
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for id, conn := range snapshot {
		if err := conn.Send(msg); err != nil {
			r.log.Warn("Broadcast failed for participant", "participant_id", id, "type", msg.Type, "error", err)
			r.Release(id, conn)
			continue
		}
		delivered++
	}
	return delivered
}

// Disconnect removes whatever handle is registered and records last-seen.
// Calling it on an unknown or already disconnected participant is a no-op.
func (r *Registry) Disconnect(participantID string) {
	r.mu.Lock()
	conn, ok := r.conns[participantID]
	if ok {
		delete(r.conns, participantID)
		r.markGone(participantID)
	}
	r.mu.Unlock()

	if ok {
		_ = conn.Close()
		r.log.Info("Participant disconnected", "participant_id", participantID)
	}
}

// Release disconnects the participant only if conn is still its current
// handle. A read loop superseded by a reconnect must not evict the new handle.
func (r *Registry) Release(participantID string, conn contract.Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[participantID]
	released := ok && current == conn
	if released {
		delete(r.conns, participantID)
		r.markGone(participantID)
	}
	r.mu.Unlock()

	_ = conn.Close()
	if released {
		r.log.Info("Participant disconnected", "participant_id", participantID)
	}
	return released
}

func (r *Registry) IsConnected(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[participantID]
	return ok
}

// Holds reports whether conn is the registered handle of participantID.
func (r *Registry) Holds(participantID string, conn contract.Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.conns[participantID]
	return ok && current == conn
}

// Connected lists connected participant ids in sorted order.
func (r *Registry) Connected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.conns))
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) Presence(participantID string) (Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presence[participantID]
	return p, ok
}

// Touch refreshes last-seen for a connected participant.
func (r *Registry) Touch(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.presence[participantID]; ok && p.Connected {
		p.LastSeen = r.now()
		r.presence[participantID] = p
	}
}

// UpdateStatus keeps the latest STATUS_UPDATE payload of a participant.
func (r *Registry) UpdateStatus(participantID string, status protocol.Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presence[participantID]
	if !ok {
		return
	}
	p.Status = maps.Clone(status)
	p.LastSeen = r.now()
	r.presence[participantID] = p
}

// Close drops every handle. Later registrations are refused.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]contract.Conn)
	for id := range conns {
		r.markGone(id)
	}
	r.closed = true
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// markGone must be called with mu held.
func (r *Registry) markGone(participantID string) {
	p := r.presence[participantID]
	p.ParticipantID = participantID
	p.Connected = false
	p.LastSeen = r.now()
	r.presence[participantID] = p
}
