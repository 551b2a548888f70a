// Package domain contains core concepts of the proctoring system.
// This file defines Participant entities and their session state machine.
// No runtime, network, or persistence logic should be added here.
package domain

import (
	"strings"
	"time"
)

type SessionState string

const (
	Unregistered SessionState = "UNREGISTERED"
	Registered   SessionState = "REGISTERED"
	Active       SessionState = "ACTIVE"
	Disconnected SessionState = "DISCONNECTED"
)

type LockState string

const (
	Unlocked LockState = "UNLOCKED"
	Locked   LockState = "LOCKED"
)

const MaxIntegrityScore = 100.0

type Participant struct {
	ID             string
	Name           string
	ExamSessionID  int64
	ComputerIP     string
	ComputerName   string
	State          SessionState
	Lock           LockState
	IntegrityScore float64
	WarningCount   int
	ViolationCount int
	JoinedAt       time.Time
	LastHeartbeat  time.Time
}

// NewParticipant builds a roster entry that has never connected.
func NewParticipant(id, name string, examSessionID int64, at time.Time) Participant {
	return Participant{
		ID:             id,
		Name:           name,
		ExamSessionID:  examSessionID,
		State:          Unregistered,
		Lock:           Unlocked,
		IntegrityScore: MaxIntegrityScore,
		JoinedAt:       at,
	}
}

// IsActive is true while the participant is registered and its heartbeats count.
func (p Participant) IsActive() bool {
	return p.State == Registered || p.State == Active
}

func (p Participant) IsLocked() bool {
	return p.Lock == Locked
}

// NameMatches compares display names case-insensitively.
func (p Participant) NameMatches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name))
}

// Register applies a successful registration. Any state may re-register,
// which is how a DISCONNECTED participant comes back.
func (p Participant) Register(computerIP, computerName string, at time.Time) Participant {
	p.ComputerIP = computerIP
	p.ComputerName = computerName
	p.State = Registered
	p.LastHeartbeat = at
	return p
}

// Heartbeat refreshes liveness. It only applies to REGISTERED or ACTIVE
// participants; ok is false otherwise and p is returned untouched.
func (p Participant) Heartbeat(at time.Time) (Participant, bool) {
	if !p.IsActive() {
		return p, false
	}
	p.State = Active
	p.LastHeartbeat = at
	return p, true
}

// Disconnect keeps every durable counter and only drops the session state.
func (p Participant) Disconnect() Participant {
	if p.State == Unregistered {
		return p
	}
	p.State = Disconnected
	return p
}

// SetLock returns false when the participant was already in the requested state.
func (p Participant) SetLock(locked bool) (Participant, bool) {
	target := Unlocked
	if locked {
		target = Locked
	}
	if p.Lock == target {
		return p, false
	}
	p.Lock = target
	return p, true
}
