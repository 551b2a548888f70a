package services

import (
	"log/slog"
	"proctor/contract"
	"proctor/domain"
	"proctor/infrastructure/storage"
	"proctor/observability"
	"proctor/protocol"
	"time"
)

type PermissionService struct {
	permissions storage.IPermissionRepository
	exams       storage.IExamSessionRepository
	registry    contract.IRegistry
	monitor     *observability.Monitor
	log         *slog.Logger
	now         func() time.Time
}

func NewPermissionService(
	permissions storage.IPermissionRepository,
	exams storage.IExamSessionRepository,
	registry contract.IRegistry,
	monitor *observability.Monitor,
	log *slog.Logger,
) *PermissionService {
	return &PermissionService{
		permissions: permissions,
		exams:       exams,
		registry:    registry,
		monitor:     monitor,
		log:         log,
		now:         time.Now,
	}
}

// Request records a PENDING request for the operator to decide on.
// Without a current exam session it is rejected.
func (s *PermissionService) Request(participantID string, payload PermissionPayload) (domain.PermissionRequest, error) {
	exam, err := s.exams.GetActiveExamSession()
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	req, err := s.permissions.CreatePermissionRequest(domain.PermissionRequest{
		ParticipantID:   participantID,
		ExamSessionID:   exam.ID,
		RequestType:     payload.RequestType,
		Reason:          payload.Reason,
		DurationMinutes: payload.DurationMinutes,
		RequestedAt:     s.now(),
	})
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	s.monitor.Incr(observability.PermissionsRequested)
	s.log.Info("Permission requested",
		"request_id", req.ID,
		"participant_id", participantID,
		"type", req.RequestType,
		"duration_minutes", req.DurationMinutes,
		"reason", req.Reason,
	)
	return req, nil
}

// Approve only succeeds from PENDING. The participant is told the absolute
// expiry and schedules its own deactivation.
func (s *PermissionService) Approve(requestID string) (domain.PermissionRequest, error) {
	req, err := s.permissions.ApprovePermissionRequest(requestID, s.now())
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	s.registry.Send(req.ParticipantID, protocol.New(protocol.PermissionResponse, protocol.Data{
		"approved":         true,
		"request_id":       req.ID,
		"expires_at":       protocol.FormatTimestamp(*req.ExpiresAt),
		"duration_minutes": req.DurationMinutes,
	}, req.ParticipantID))
	s.monitor.Incr(observability.PermissionsApproved)
	s.log.Info("Permission approved", "request_id", req.ID, "participant_id", req.ParticipantID, "expires_at", *req.ExpiresAt)
	return req, nil
}

func (s *PermissionService) Reject(requestID string) (domain.PermissionRequest, error) {
	req, err := s.permissions.RejectPermissionRequest(requestID)
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	s.registry.Send(req.ParticipantID, protocol.New(protocol.PermissionResponse, protocol.Data{
		"approved":   false,
		"request_id": req.ID,
	}, req.ParticipantID))
	s.monitor.Incr(observability.PermissionsRejected)
	s.log.Info("Permission rejected", "request_id", req.ID, "participant_id", req.ParticipantID)
	return req, nil
}

func (s *PermissionService) Active(participantID string) (domain.PermissionRequest, bool, error) {
	return s.permissions.GetActivePermission(participantID, s.now())
}

func (s *PermissionService) List(status domain.PermissionStatus) ([]domain.PermissionRequest, error) {
	return s.permissions.ListPermissionRequests(status)
}
