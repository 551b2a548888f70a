package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"proctor/domain"
	"proctor/errors"
	"proctor/protocol"
	"proctor/services"
	"time"

	"github.com/samber/lo"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Reject(errors.ErrInvalidPayload, "invalid request body: %v", err)
	}
	return nil
}

// writeError maps the error category onto an HTTP status. Only user facing
// messages leave the server; anything else is logged.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrInvalidCredentials), errors.Is(err, errors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, errors.ErrParticipantNotFound),
		errors.Is(err, errors.ErrRequestNotFound),
		errors.Is(err, errors.ErrSessionNotFound),
		errors.Is(err, errors.ErrNoActiveSession):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrConcurrency),
		errors.Is(err, errors.ErrParticipantExists),
		errors.Is(err, errors.ErrOperatorExists):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrValidation):
		status = http.StatusBadRequest
	}

	msg, ok := errors.UserMessage(err)
	switch {
	case ok:
	case status == http.StatusInternalServerError:
		log.Error("Request failed", "error", err)
		msg = "internal error"
	default:
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

type participantView struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ExamSessionID  int64         `json:"exam_session_id"`
	ComputerIP     string        `json:"computer_ip,omitempty"`
	ComputerName   string        `json:"computer_name,omitempty"`
	State          string        `json:"state"`
	Lock           string        `json:"lock_state"`
	IntegrityScore float64       `json:"integrity_score"`
	WarningCount   int           `json:"warning_count"`
	ViolationCount int           `json:"violation_count"`
	Connected      bool          `json:"connected"`
	LastSeen       *time.Time    `json:"last_seen,omitempty"`
	Status         protocol.Data `json:"status,omitempty"`
}

func toParticipantView(p domain.Participant) participantView {
	v := participantView{
		ID:             p.ID,
		Name:           p.Name,
		ExamSessionID:  p.ExamSessionID,
		ComputerIP:     p.ComputerIP,
		ComputerName:   p.ComputerName,
		State:          string(p.State),
		Lock:           string(p.Lock),
		IntegrityScore: p.IntegrityScore,
		WarningCount:   p.WarningCount,
		ViolationCount: p.ViolationCount,
	}
	if !p.LastHeartbeat.IsZero() {
		v.LastSeen = lo.ToPtr(p.LastHeartbeat)
	}
	return v
}

func toDashboardView(p services.ParticipantView, _ int) participantView {
	v := toParticipantView(p.Participant)
	v.Connected = p.Connected
	v.Status = p.Status
	if !p.LastSeen.IsZero() {
		v.LastSeen = lo.ToPtr(p.LastSeen)
	}
	return v
}

type violationView struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	ExamSessionID int64     `json:"exam_session_id"`
	Type          string    `json:"violation_type"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
}

func toViolationView(v domain.Violation, _ int) violationView {
	return violationView{
		ID:            v.ID,
		ParticipantID: v.ParticipantID,
		ExamSessionID: v.ExamSessionID,
		Type:          string(v.Type),
		Severity:      string(v.Severity),
		Description:   v.Description,
		Timestamp:     v.Timestamp,
	}
}

type permissionView struct {
	ID              string     `json:"id"`
	ParticipantID   string     `json:"participant_id"`
	ExamSessionID   int64      `json:"exam_session_id"`
	RequestType     string     `json:"request_type"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason"`
	DurationMinutes int        `json:"duration_minutes"`
	RequestedAt     time.Time  `json:"requested_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Active          bool       `json:"active"`
}

func toPermissionView(now time.Time) func(r domain.PermissionRequest, _ int) permissionView {
	return func(r domain.PermissionRequest, _ int) permissionView {
		return permissionView{
			ID:              r.ID,
			ParticipantID:   r.ParticipantID,
			ExamSessionID:   r.ExamSessionID,
			RequestType:     r.RequestType,
			Status:          string(r.Status),
			Reason:          r.Reason,
			DurationMinutes: r.DurationMinutes,
			RequestedAt:     r.RequestedAt,
			ApprovedAt:      r.ApprovedAt,
			ExpiresAt:       r.ExpiresAt,
			Active:          r.IsActive(now),
		}
	}
}

type examView struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func toExamView(e domain.ExamSession) examView {
	return examView{ID: e.ID, Name: e.Name, Status: string(e.Status), StartTime: e.StartTime, EndTime: e.EndTime}
}
