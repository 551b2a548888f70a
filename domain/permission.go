package domain

import (
	"time"
)

type PermissionStatus string

const (
	PermissionPending  PermissionStatus = "PENDING"
	PermissionApproved PermissionStatus = "APPROVED"
	PermissionRejected PermissionStatus = "REJECTED"
)

const (
	DefaultRequestType     = "leave_seat"
	DefaultDurationMinutes = 10
)

type PermissionRequest struct {
	ID              string
	ParticipantID   string
	ExamSessionID   int64
	RequestType     string
	Status          PermissionStatus
	Reason          string
	DurationMinutes int
	RequestedAt     time.Time
	ApprovedAt      *time.Time
	ExpiresAt       *time.Time
}

// IsActive is derived, never stored: approved and not yet expired.
func (r PermissionRequest) IsActive(now time.Time) bool {
	return r.Status == PermissionApproved && r.ExpiresAt != nil && now.Before(*r.ExpiresAt)
}

func (r PermissionRequest) IsPending() bool {
	return r.Status == PermissionPending
}

func (r PermissionRequest) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// Approve moves a pending request to APPROVED with expires_at = at + duration.
// ok is false when the request is not pending.
func (r PermissionRequest) Approve(at time.Time) (PermissionRequest, bool) {
	if !r.IsPending() {
		return r, false
	}
	expires := at.Add(r.Duration())
	r.Status = PermissionApproved
	r.ApprovedAt = &at
	r.ExpiresAt = &expires
	return r, true
}

func (r PermissionRequest) Reject() (PermissionRequest, bool) {
	if !r.IsPending() {
		return r, false
	}
	r.Status = PermissionRejected
	return r, true
}

// Suppresses tells whether an active permission hides the given violation type.
// Only face absence is covered: the participant is allowed to leave the seat.
func Suppresses(active bool, t ViolationType) bool {
	return active && t == FaceAbsence
}
