package services

import (
	"log/slog"
	"proctor/domain"
	"proctor/infrastructure/storage"
	"proctor/protocol"
	"proctor/runtime"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ParticipantView is one dashboard row: durable state plus live presence.
type ParticipantView struct {
	domain.Participant
	Connected bool
	LastSeen  time.Time
	Status    protocol.Data
}

// ExamService holds the operator-side session, roster and rules workflow.
type ExamService struct {
	exams        storage.IExamSessionRepository
	participants storage.IParticipantRepository
	violations   storage.IViolationRepository
	registry     *runtime.Registry
	escalation   *EscalationService
	log          *slog.Logger
	now          func() time.Time

	mu    sync.RWMutex
	rules domain.ExamRules
}

func NewExamService(
	exams storage.IExamSessionRepository,
	participants storage.IParticipantRepository,
	violations storage.IViolationRepository,
	registry *runtime.Registry,
	escalation *EscalationService,
	log *slog.Logger,
	rules domain.ExamRules,
) *ExamService {
	return &ExamService{
		exams:        exams,
		participants: participants,
		violations:   violations,
		registry:     registry,
		escalation:   escalation,
		log:          log,
		now:          time.Now,
		rules:        rules,
	}
}

func (s *ExamService) StartSession(name string) (domain.ExamSession, error) {
	return s.exams.CreateExamSession(name, s.now())
}

func (s *ExamService) EndSession() (domain.ExamSession, error) {
	return s.exams.EndExamSession(s.now())
}

func (s *ExamService) CurrentSession() (domain.ExamSession, error) {
	return s.exams.GetActiveExamSession()
}

// AddParticipant puts a participant on the roster of the current session.
func (s *ExamService) AddParticipant(id, name string) (domain.Participant, error) {
	exam, err := s.exams.GetActiveExamSession()
	if err != nil {
		return domain.Participant{}, err
	}
	p, err := s.participants.RegisterParticipant(id, name, exam.ID, s.now())
	if err != nil {
		return domain.Participant{}, err
	}
	s.log.Info("Participant added to roster", "participant_id", id, "exam_session_id", exam.ID)
	return p, nil
}

// ListParticipants merges the current roster with registry presence.
func (s *ExamService) ListParticipants() ([]ParticipantView, error) {
	exam, err := s.exams.GetActiveExamSession()
	if err != nil {
		return nil, err
	}
	roster, err := s.participants.ListParticipants(exam.ID)
	if err != nil {
		return nil, err
	}
	return lo.Map(roster, func(p domain.Participant, _ int) ParticipantView {
		view := ParticipantView{Participant: p, LastSeen: p.LastHeartbeat}
		if presence, ok := s.registry.Presence(p.ID); ok {
			view.Connected = presence.Connected
			view.Status = presence.Status
			if presence.LastSeen.After(view.LastSeen) {
				view.LastSeen = presence.LastSeen
			}
		}
		return view
	}), nil
}

func (s *ExamService) ListViolations(filter storage.ViolationFilter) ([]domain.Violation, error) {
	return s.violations.ListViolations(filter)
}

func (s *ExamService) Rules() domain.ExamRules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// ConfigMessage builds the CONFIG_UPDATE for the current rules.
func (s *ExamService) ConfigMessage(participantID string) protocol.Message {
	return protocol.New(protocol.ConfigUpdate, s.Rules().Payload(), participantID)
}

// PushConfig replaces the rules, applies the escalation thresholds and
// broadcasts CONFIG_UPDATE. It returns how many participants were reached.
func (s *ExamService) PushConfig(rules domain.ExamRules) (int, error) {
	if err := s.escalation.SetPolicy(rules.Escalation); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	n := s.registry.Broadcast(s.ConfigMessage(""))
	s.log.Info("Exam rules broadcast", "reached", n)
	return n, nil
}
