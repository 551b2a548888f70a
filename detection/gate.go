package detection

import (
	"proctor/domain"
	"sync"
	"time"
)

// PermissionGate is the participant-side view of an approved leave-seat
// permission. The server never pushes expiry, so the gate schedules its own
// deactivation at expires_at.
type PermissionGate struct {
	mu        sync.Mutex
	expiresAt time.Time
	timer     *time.Timer
	now       func() time.Time
	onExpire  func()
}

func NewPermissionGate(onExpire func()) *PermissionGate {
	return &PermissionGate{now: time.Now, onExpire: onExpire}
}

// Activate opens the gate until expiresAt. A later approval replaces the
// previous deadline.
func (g *PermissionGate) Activate(expiresAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
	}
	g.expiresAt = expiresAt
	wait := expiresAt.Sub(g.now())
	if wait <= 0 {
		g.timer = nil
		return
	}
	g.timer = time.AfterFunc(wait, g.expire)
}

// Active derives the state from the deadline, so a late timer never matters.
func (g *PermissionGate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Before(g.expiresAt)
}

func (g *PermissionGate) ExpiresAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expiresAt
}

// Allow reports whether a violation of type t should be reported.
func (g *PermissionGate) Allow(t domain.ViolationType) bool {
	return !domain.Suppresses(g.Active(), t)
}

func (g *PermissionGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *PermissionGate) expire() {
	g.mu.Lock()
	g.timer = nil
	cb := g.onExpire
	g.mu.Unlock()
	if cb != nil {
		cb()
	}
}
