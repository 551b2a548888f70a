//go:generate go run go.uber.org/mock/mockgen -source=participant_repository.go -destination=../../mocks/mock_participant_repository.go -package=mocks
package storage

import (
	"fmt"
	"log/slog"
	"proctor/domain"
	"proctor/errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IParticipantRepository interface {
	RegisterParticipant(id, name string, examSessionID int64, at time.Time) (domain.Participant, error)
	GetParticipant(id string) (domain.Participant, error)
	ListParticipants(examSessionID int64) ([]domain.Participant, error)
	ActivateParticipant(id, computerIP, computerName string, at time.Time) (domain.Participant, error)
	UpdateParticipantHeartbeat(id string, at time.Time) (domain.Participant, error)
	MarkDisconnected(id string) (domain.Participant, error)
	IncrementWarningCount(id string) (domain.Participant, error)
	LockParticipant(id string, locked bool) (domain.Participant, bool, error)
	UpdateIntegrityScore(id string, score float64) (domain.Participant, error)
}

type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) *ParticipantRepository {
	return &ParticipantRepository{db: db, log: log}
}

type participantRecord struct {
	ID             string    `cbor:"id"`
	Name           string    `cbor:"name"`
	ExamSessionID  int64     `cbor:"exam_session_id"`
	ComputerIP     string    `cbor:"computer_ip"`
	ComputerName   string    `cbor:"computer_name"`
	State          string    `cbor:"state"`
	Lock           string    `cbor:"lock"`
	IntegrityScore float64   `cbor:"integrity_score"`
	WarningCount   int       `cbor:"warning_count"`
	ViolationCount int       `cbor:"violation_count"`
	JoinedAt       time.Time `cbor:"joined_at"`
	LastHeartbeat  time.Time `cbor:"last_heartbeat"`
}

// RegisterParticipant adds a participant to the roster of an exam session.
func (r ParticipantRepository) RegisterParticipant(id, name string, examSessionID int64, at time.Time) (domain.Participant, error) {
	if id == "" || strings.ContainsAny(id, ": /") {
		return domain.Participant{}, fmt.Errorf("%w: participant id %q", errors.ErrInvalidPayload, id)
	}
	p := domain.NewParticipant(id, name, examSessionID, at.UTC())

	err := r.db.Update(func(txn *badger.Txn) error {
		key := participantKey(id)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", errors.ErrParticipantExists, id)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setRecord(txn, key, toParticipantRecord(p))
	})
	if err != nil {
		return domain.Participant{}, errors.Persistence("register participant", err)
	}
	return p, nil
}

func (r ParticipantRepository) GetParticipant(id string) (domain.Participant, error) {
	var p domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = loadParticipant(txn, id)
		return err
	})
	if err != nil {
		return domain.Participant{}, errors.Persistence("get participant", err)
	}
	return p, nil
}

// ListParticipants returns the roster of one exam session ordered by id.
// A zero examSessionID lists everyone.
func (r ParticipantRepository) ListParticipants(examSessionID int64) ([]domain.Participant, error) {
	var records []participantRecord
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(participantPrefix), func(_ []byte, rec participantRecord) error {
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Persistence("list participants", err)
	}

	records = lo.Filter(records, func(rec participantRecord, _ int) bool {
		return examSessionID == 0 || rec.ExamSessionID == examSessionID
	})
	participants := lo.Map(records, func(rec participantRecord, _ int) domain.Participant {
		return fromParticipantRecord(rec)
	})
	slices.SortFunc(participants, func(a, b domain.Participant) int {
		return strings.Compare(a.ID, b.ID)
	})
	return participants, nil
}

// ActivateParticipant records a successful registration.
func (r ParticipantRepository) ActivateParticipant(id, computerIP, computerName string, at time.Time) (domain.Participant, error) {
	return r.update("activate participant", id, func(p domain.Participant) (domain.Participant, error) {
		return p.Register(computerIP, computerName, at.UTC()), nil
	})
}

func (r ParticipantRepository) UpdateParticipantHeartbeat(id string, at time.Time) (domain.Participant, error) {
	return r.update("update heartbeat", id, func(p domain.Participant) (domain.Participant, error) {
		next, ok := p.Heartbeat(at.UTC())
		if !ok {
			return p, fmt.Errorf("%w: %s is %s", errors.ErrParticipantInactive, id, p.State)
		}
		return next, nil
	})
}

func (r ParticipantRepository) MarkDisconnected(id string) (domain.Participant, error) {
	return r.update("mark disconnected", id, func(p domain.Participant) (domain.Participant, error) {
		return p.Disconnect(), nil
	})
}

func (r ParticipantRepository) IncrementWarningCount(id string) (domain.Participant, error) {
	return r.update("increment warning count", id, func(p domain.Participant) (domain.Participant, error) {
		p.WarningCount++
		return p, nil
	})
}

// LockParticipant sets the lock flag. changed is false when the participant
// was already in the requested state, in which case nothing is written.
func (r ParticipantRepository) LockParticipant(id string, locked bool) (domain.Participant, bool, error) {
	var changed bool
	p, err := r.update("lock participant", id, func(p domain.Participant) (domain.Participant, error) {
		var next domain.Participant
		next, changed = p.SetLock(locked)
		return next, nil
	})
	return p, changed, err
}

func (r ParticipantRepository) UpdateIntegrityScore(id string, score float64) (domain.Participant, error) {
	return r.update("update integrity score", id, func(p domain.Participant) (domain.Participant, error) {
		p.IntegrityScore = score
		return p, nil
	})
}

// update runs a read-modify-write of one participant in a single transaction.
func (r ParticipantRepository) update(op, id string, fn func(domain.Participant) (domain.Participant, error)) (domain.Participant, error) {
	var out domain.Participant
	err := r.db.Update(func(txn *badger.Txn) error {
		p, err := loadParticipant(txn, id)
		if err != nil {
			return err
		}
		next, err := fn(p)
		if err != nil {
			return err
		}
		out = next
		if next == p {
			return nil
		}
		return setRecord(txn, participantKey(id), toParticipantRecord(next))
	})
	if err != nil {
		return domain.Participant{}, errors.Persistence(op, err)
	}
	return out, nil
}

func loadParticipant(txn *badger.Txn, id string) (domain.Participant, error) {
	var rec participantRecord
	err := getRecord(txn, participantKey(id), &rec)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Participant{}, fmt.Errorf("%w: %s", errors.ErrParticipantNotFound, id)
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return fromParticipantRecord(rec), nil
}

func toParticipantRecord(p domain.Participant) participantRecord {
	return participantRecord{
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
		JoinedAt:       p.JoinedAt,
		LastHeartbeat:  p.LastHeartbeat,
	}
}

func fromParticipantRecord(r participantRecord) domain.Participant {
	return domain.Participant{
		ID:             r.ID,
		Name:           r.Name,
		ExamSessionID:  r.ExamSessionID,
		ComputerIP:     r.ComputerIP,
		ComputerName:   r.ComputerName,
		State:          domain.SessionState(r.State),
		Lock:           domain.LockState(r.Lock),
		IntegrityScore: r.IntegrityScore,
		WarningCount:   r.WarningCount,
		ViolationCount: r.ViolationCount,
		JoinedAt:       r.JoinedAt,
		LastHeartbeat:  r.LastHeartbeat,
	}
}
