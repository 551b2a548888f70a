package services

import (
	"log/slog"
	"proctor/domain"
	"proctor/errors"
	"proctor/infrastructure/storage"
	"time"
)

// Rejection messages shown to participants.
const (
	msgNotInRoster     = "ID Peserta %s tidak terdaftar. Silakan hubungi pengawas."
	msgNameMismatch    = "Nama tidak sesuai. Nama yang terdaftar: %s"
	msgSessionMismatch = "Sesi ujian tidak aktif atau tidak sesuai."
	msgInvalidPayload  = "Data registrasi tidak valid."
	msgServerError     = "Terjadi kesalahan pada server. Silakan coba lagi."

	msgValidateUnknown      = "ID Peserta %s tidak terdaftar"
	msgValidateNotStarted   = "Sesi ujian belum dimulai oleh pengawas."
	msgValidateWrongSession = "ID Peserta tidak terdaftar untuk sesi ujian ini."
)

type RegistrationService struct {
	participants storage.IParticipantRepository
	exams        storage.IExamSessionRepository
	log          *slog.Logger
	now          func() time.Time
}

func NewRegistrationService(
	participants storage.IParticipantRepository,
	exams storage.IExamSessionRepository,
	log *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		participants: participants,
		exams:        exams,
		log:          log,
		now:          time.Now,
	}
}

// Register validates the participant against the roster and the current exam
// session, in that order, and only then records the registration. A
// rejection leaves the stored state untouched and carries its reason.
func (s *RegistrationService) Register(participantID string, payload RegisterPayload) (domain.Participant, domain.ExamSession, error) {
	// 1. The participant must be on the roster
	p, err := s.participants.GetParticipant(participantID)
	if errors.Is(err, errors.ErrParticipantNotFound) {
		return domain.Participant{}, domain.ExamSession{}, errors.Reject(err, msgNotInRoster, participantID)
	}
	if err != nil {
		return domain.Participant{}, domain.ExamSession{}, err
	}

	// 2. The supplied name must match, ignoring case
	if !p.NameMatches(payload.Name) {
		return domain.Participant{}, domain.ExamSession{}, errors.Reject(errors.ErrNameMismatch, msgNameMismatch, p.Name)
	}

	// 3. A current session must exist and be the participant's one
	exam, err := s.exams.GetActiveExamSession()
	if errors.Is(err, errors.ErrNoActiveSession) {
		return domain.Participant{}, domain.ExamSession{}, errors.Reject(errors.ErrSessionMismatch, msgSessionMismatch)
	}
	if err != nil {
		return domain.Participant{}, domain.ExamSession{}, err
	}
	if !exam.Accepts(p.ExamSessionID) {
		return domain.Participant{}, domain.ExamSession{}, errors.Reject(errors.ErrSessionMismatch, msgSessionMismatch)
	}

	p, err = s.participants.ActivateParticipant(participantID, payload.ComputerIP, payload.ComputerName, s.now())
	if err != nil {
		return domain.Participant{}, domain.ExamSession{}, err
	}
	s.log.Info("Participant registered",
		"participant_id", participantID,
		"exam_session_id", exam.ID,
		"computer_ip", payload.ComputerIP,
	)
	return p, exam, nil
}

// Validate is the identity pre-check a client runs before connecting.
// The name is only compared when given.
func (s *RegistrationService) Validate(participantID, name string) (domain.Participant, error) {
	p, err := s.participants.GetParticipant(participantID)
	if errors.Is(err, errors.ErrParticipantNotFound) {
		return domain.Participant{}, errors.Reject(err, msgValidateUnknown, participantID)
	}
	if err != nil {
		return domain.Participant{}, err
	}
	if name != "" && !p.NameMatches(name) {
		return domain.Participant{}, errors.Reject(errors.ErrNameMismatch, msgNameMismatch, p.Name)
	}

	exam, err := s.exams.GetActiveExamSession()
	if errors.Is(err, errors.ErrNoActiveSession) {
		return domain.Participant{}, errors.Reject(err, msgValidateNotStarted)
	}
	if err != nil {
		return domain.Participant{}, err
	}
	if exam.ID != p.ExamSessionID {
		return domain.Participant{}, errors.Reject(errors.ErrSessionMismatch, msgValidateWrongSession)
	}
	return p, nil
}

// Heartbeat refreshes liveness of a REGISTERED or ACTIVE participant.
func (s *RegistrationService) Heartbeat(participantID string) (domain.Participant, error) {
	return s.participants.UpdateParticipantHeartbeat(participantID, s.now())
}

// Disconnect keeps durable state and only marks the session DISCONNECTED.
func (s *RegistrationService) Disconnect(participantID string) error {
	_, err := s.participants.MarkDisconnected(participantID)
	if errors.Is(err, errors.ErrParticipantNotFound) {
		return nil
	}
	return err
}
