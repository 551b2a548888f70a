package services

import (
	"log/slog"
	"proctor/contract"
	"proctor/domain"
	"proctor/errors"
	"proctor/infrastructure/storage"
	"proctor/observability"
	"proctor/protocol"
	"sync"
	"sync/atomic"
	"time"
)

const (
	LockReasonAuto      = "auto_escalation"
	LockReasonManual    = "manual"
	LockReasonRestored  = "restored"
	LockReasonEmergency = "emergency"

	warningPrefix = "Peringatan: "
	flagMessage   = "FLAG: Anda telah mencapai batas peringatan!"
)

// Outcome reports what the engine did with one violation.
type Outcome struct {
	Violation   domain.Violation
	Participant domain.Participant
	Suppressed  bool
	Warned      bool
	Decision    domain.Decision
}

type EscalationService struct {
	participants storage.IParticipantRepository
	violations   storage.IViolationRepository
	exams        storage.IExamSessionRepository
	permissions  storage.IPermissionRepository
	registry     contract.IRegistry
	monitor      *observability.Monitor
	log          *slog.Logger
	now          func() time.Time

	auto   atomic.Bool
	mu     sync.RWMutex
	policy domain.EscalationPolicy
}

func NewEscalationService(
	participants storage.IParticipantRepository,
	violations storage.IViolationRepository,
	exams storage.IExamSessionRepository,
	permissions storage.IPermissionRepository,
	registry contract.IRegistry,
	monitor *observability.Monitor,
	log *slog.Logger,
	policy domain.EscalationPolicy,
	autoEscalation bool,
) *EscalationService {
	s := &EscalationService{
		participants: participants,
		violations:   violations,
		exams:        exams,
		permissions:  permissions,
		registry:     registry,
		monitor:      monitor,
		log:          log,
		now:          time.Now,
		policy:       policy,
	}
	s.auto.Store(autoEscalation)
	return s
}

func (s *EscalationService) SetAutoEscalation(on bool) {
	s.auto.Store(on)
	s.log.Info("Auto escalation toggled", "enabled", on)
}

func (s *EscalationService) AutoEscalation() bool {
	return s.auto.Load()
}

func (s *EscalationService) SetPolicy(p domain.EscalationPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	return nil
}

func (s *EscalationService) Policy() domain.EscalationPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// HandleViolation runs one violation through the engine:
// persist and count, rescore, then warn and escalate when auto mode is on.
func (s *EscalationService) HandleViolation(evt domain.ViolationEvent) (Outcome, error) {
	exam, err := s.exams.GetActiveExamSession()
	if err != nil {
		return Outcome{}, err
	}
	p, err := s.participants.GetParticipant(evt.ParticipantID)
	if err != nil {
		return Outcome{}, err
	}
	if !p.IsActive() {
		return Outcome{}, errors.ErrParticipantInactive
	}
	if p.ExamSessionID != exam.ID {
		return Outcome{}, errors.ErrSessionMismatch
	}

	now := s.now()
	if evt.Type == domain.FaceAbsence {
		_, active, err := s.permissions.GetActivePermission(evt.ParticipantID, now)
		if err != nil {
			return Outcome{}, err
		}
		if domain.Suppresses(active, evt.Type) {
			s.monitor.Incr(observability.ViolationsSuppressed)
			s.log.Debug("Violation suppressed by active permission", "participant_id", evt.ParticipantID, "type", evt.Type)
			return Outcome{Participant: p, Suppressed: true}, nil
		}
	}

	ts := evt.Timestamp
	if ts.IsZero() {
		ts = now
	}

	// 1. Persist the violation and its counter together
	v, p, err := s.violations.CreateViolation(domain.Violation{
		ParticipantID: evt.ParticipantID,
		ExamSessionID: exam.ID,
		Type:          evt.Type,
		Severity:      evt.Severity,
		Description:   evt.Description,
		Timestamp:     ts,
	})
	if err != nil {
		return Outcome{}, err
	}
	s.monitor.Incr(observability.ViolationsRecorded)
	s.log.Info("Violation recorded",
		"participant_id", p.ID,
		"type", v.Type,
		"severity", v.Severity,
		"violation_count", p.ViolationCount,
	)

	// 2. Rescore
	policy := s.Policy()
	if p, err = s.participants.UpdateIntegrityScore(p.ID, policy.Score(p.ViolationCount, p.WarningCount)); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Violation: v, Participant: p}

	if !s.auto.Load() {
		return out, nil
	}

	// 3a. Warn
	if p, err = s.participants.IncrementWarningCount(p.ID); err != nil {
		return out, err
	}
	out.Participant = p
	out.Warned = true
	s.registry.Send(p.ID, protocol.New(protocol.Warning, protocol.Data{
		"message":       warningPrefix + evt.Description,
		"warning_count": p.WarningCount,
	}, p.ID))
	s.monitor.Incr(observability.WarningsSent)

	// 3b. Escalate with the new count, at most one branch
	out.Decision = policy.Decide(p.WarningCount)
	switch out.Decision {
	case domain.DecisionLock:
		locked, err := s.lock(p.ID, LockReasonAuto, true)
		if err != nil {
			return out, err
		}
		out.Participant = locked
	case domain.DecisionFlag:
		s.registry.Send(p.ID, protocol.New(protocol.Warning, protocol.Data{
			"message": flagMessage,
			"flag":    true,
		}, p.ID))
		s.monitor.Incr(observability.FlagsSent)
		s.log.Warn("Participant flagged", "participant_id", p.ID, "warning_count", p.WarningCount)
	}
	return out, nil
}

// Lock is the operator's manual lock. Locking a locked participant is a no-op.
func (s *EscalationService) Lock(participantID string) (domain.Participant, error) {
	return s.lock(participantID, LockReasonManual, false)
}

func (s *EscalationService) Unlock(participantID string) (domain.Participant, error) {
	p, changed, err := s.participants.LockParticipant(participantID, false)
	if err != nil {
		return domain.Participant{}, err
	}
	if !changed {
		return p, nil
	}
	s.registry.Send(participantID, protocol.New(protocol.Unlock, nil, participantID))
	s.log.Info("Participant unlocked", "participant_id", participantID)
	return p, nil
}

// EmergencyLock broadcasts to every connected participant. Lock state is not
// persisted; it returns how many participants were reached.
func (s *EscalationService) EmergencyLock() int {
	n := s.registry.Broadcast(protocol.New(protocol.EmergencyLock, protocol.Data{"reason": LockReasonEmergency}, ""))
	s.monitor.Incr(observability.EmergencyLocks)
	s.log.Warn("Emergency lock broadcast", "reached", n)
	return n
}

// RestoreLock re-sends LOCK to a freshly registered participant whose stored
// state is LOCKED, so reconnecting cannot escape a lock.
func (s *EscalationService) RestoreLock(p domain.Participant) {
	if !p.IsLocked() {
		return
	}
	s.registry.Send(p.ID, protocol.New(protocol.Lock, protocol.Data{"reason": LockReasonRestored}, p.ID))
}

func (s *EscalationService) lock(participantID, reason string, auto bool) (domain.Participant, error) {
	p, changed, err := s.participants.LockParticipant(participantID, true)
	if err != nil {
		return domain.Participant{}, err
	}
	if !changed && !auto {
		return p, nil
	}
	s.registry.Send(participantID, protocol.New(protocol.Lock, protocol.Data{"reason": reason}, participantID))
	if changed {
		s.monitor.Incr(observability.LocksApplied)
	}
	s.log.Warn("Participant locked", "participant_id", participantID, "reason", reason)
	return p, nil
}
