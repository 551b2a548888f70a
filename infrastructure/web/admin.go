package web

import (
	"net/http"
	"proctor/domain"
	"proctor/errors"
	"proctor/infrastructure/storage"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const defaultViolationLimit = 100

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}
	token, err := s.auth.Login(body.Username, body.Password)
	if err != nil {
		writeError(w, s.log, errors.ErrInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token.String()})
}

func (s *Server) handleListParticipants(w http.ResponseWriter, _ *http.Request) {
	views, err := s.exams.ListParticipants()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(views, toDashboardView))
}

type addParticipantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var body addParticipantRequest
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.exams.AddParticipant(strings.TrimSpace(body.ID), strings.TrimSpace(body.Name))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantView(p))
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	p, err := s.escalation.Lock(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantView(p))
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	p, err := s.escalation.Unlock(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantView(p))
}

func (s *Server) handleEmergencyLock(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"reached": s.escalation.EmergencyLock()})
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, _ *http.Request) {
	exam, err := s.exams.CurrentSession()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toExamView(exam))
}

type startSessionRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var body startSessionRequest
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		writeError(w, s.log, errors.Reject(errors.ErrInvalidPayload, "name is required"))
		return
	}
	exam, err := s.exams.StartSession(name)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExamView(exam))
}

func (s *Server) handleEndSession(w http.ResponseWriter, _ *http.Request) {
	exam, err := s.exams.EndSession()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toExamView(exam))
}

func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	filter := storage.ViolationFilter{
		ParticipantID: r.URL.Query().Get("participant_id"),
		Limit:         defaultViolationLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, s.log, errors.Reject(errors.ErrInvalidPayload, "limit must be a positive integer"))
			return
		}
		filter.Limit = n
	}
	if exam, err := s.exams.CurrentSession(); err == nil {
		filter.ExamSessionID = exam.ID
	}
	violations, err := s.exams.ListViolations(filter)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(violations, toViolationView))
}

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	status := domain.PermissionStatus(strings.ToUpper(r.URL.Query().Get("status")))
	requests, err := s.permissions.List(status)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(requests, toPermissionView(s.now())))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, err := s.permissions.Approve(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionView(s.now())(req, 0))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	req, err := s.permissions.Reject(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionView(s.now())(req, 0))
}

type escalationView struct {
	AutoEscalation bool `json:"auto_escalation"`
	FlagThreshold  int  `json:"warnings_before_flag"`
	LockThreshold  int  `json:"warnings_before_lock"`
}

func (s *Server) escalationView() escalationView {
	policy := s.escalation.Policy()
	return escalationView{
		AutoEscalation: s.escalation.AutoEscalation(),
		FlagThreshold:  policy.FlagThreshold,
		LockThreshold:  policy.LockThreshold,
	}
}

func (s *Server) handleGetEscalation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.escalationView())
}

type setEscalationRequest struct {
	AutoEscalation bool `json:"auto_escalation"`
}

func (s *Server) handleSetEscalation(w http.ResponseWriter, r *http.Request) {
	var body setEscalationRequest
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}
	s.escalation.SetAutoEscalation(body.AutoEscalation)
	writeJSON(w, http.StatusOK, s.escalationView())
}

// configRequest mirrors the CONFIG_UPDATE payload. Omitted thresholds keep
// their current value.
type configRequest struct {
	AllowedApplications  []string `json:"allowed_applications"`
	BlockedApplications  []string `json:"blocked_applications"`
	WarningsBeforeFlag   *int     `json:"warnings_before_flag"`
	WarningsBeforeLock   *int     `json:"warnings_before_lock"`
	FaceAbsenceThreshold *int     `json:"face_absence_threshold"`
}

func (s *Server) handlePushConfig(w http.ResponseWriter, r *http.Request) {
	var body configRequest
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}

	rules := s.exams.Rules()
	rules.Applications.Allowed = body.AllowedApplications
	rules.Applications.Blocked = body.BlockedApplications
	if body.WarningsBeforeFlag != nil {
		rules.Escalation.FlagThreshold = *body.WarningsBeforeFlag
	}
	if body.WarningsBeforeLock != nil {
		rules.Escalation.LockThreshold = *body.WarningsBeforeLock
	}
	if body.FaceAbsenceThreshold != nil {
		rules.FaceAbsenceThreshold = *body.FaceAbsenceThreshold
	}

	n, err := s.exams.PushConfig(rules)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reached": n, "rules": rules.Payload()})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Refresh())
}
