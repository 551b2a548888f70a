package storage

import (
	"log/slog"
	"proctor/domain"
	"proctor/errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IViolationRepository interface {
	CreateViolation(v domain.Violation) (domain.Violation, domain.Participant, error)
	ListViolations(filter ViolationFilter) ([]domain.Violation, error)
}

// ViolationFilter narrows ListViolations. Zero values match everything.
type ViolationFilter struct {
	ParticipantID string
	ExamSessionID int64
	Limit         int
}

type ViolationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewViolationRepository(db *badger.DB, log *slog.Logger) *ViolationRepository {
	return &ViolationRepository{db: db, log: log}
}

type violationRecord struct {
	ID            string    `cbor:"id"`
	ParticipantID string    `cbor:"participant_id"`
	ExamSessionID int64     `cbor:"exam_session_id"`
	Type          string    `cbor:"type"`
	Severity      string    `cbor:"severity"`
	Description   string    `cbor:"description"`
	Timestamp     time.Time `cbor:"timestamp"`
}

// CreateViolation persists the violation and bumps the participant's
// violation_count in the same transaction. It returns the updated participant.
func (r ViolationRepository) CreateViolation(v domain.Violation) (domain.Violation, domain.Participant, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now()
	}
	v.Timestamp = v.Timestamp.UTC()

	var participant domain.Participant
	err := r.db.Update(func(txn *badger.Txn) error {
		p, err := loadParticipant(txn, v.ParticipantID)
		if err != nil {
			return err
		}
		p.ViolationCount++
		if err := setRecord(txn, violationKey(v.ParticipantID, v.Timestamp, v.ID), toViolationRecord(v)); err != nil {
			return err
		}
		if err := setRecord(txn, participantKey(p.ID), toParticipantRecord(p)); err != nil {
			return err
		}
		participant = p
		return nil
	})
	if err != nil {
		return domain.Violation{}, domain.Participant{}, errors.Persistence("create violation", err)
	}
	return v, participant, nil
}

// ListViolations returns violations newest first.
func (r ViolationRepository) ListViolations(filter ViolationFilter) ([]domain.Violation, error) {
	prefix := []byte(violationPrefix)
	if filter.ParticipantID != "" {
		prefix = []byte(violationPrefix + filter.ParticipantID + ":")
	}

	var records []violationRecord
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, func(_ []byte, rec violationRecord) error {
			if filter.ExamSessionID == 0 || rec.ExamSessionID == filter.ExamSessionID {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Persistence("list violations", err)
	}

	violations := lo.Map(records, func(rec violationRecord, _ int) domain.Violation {
		return fromViolationRecord(rec)
	})
	slices.SortStableFunc(violations, func(a, b domain.Violation) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if filter.Limit > 0 && len(violations) > filter.Limit {
		violations = violations[:filter.Limit]
	}
	return violations, nil
}

func toViolationRecord(v domain.Violation) violationRecord {
	return violationRecord{
		ID:            v.ID,
		ParticipantID: v.ParticipantID,
		ExamSessionID: v.ExamSessionID,
		Type:          string(v.Type),
		Severity:      string(v.Severity),
		Description:   v.Description,
		Timestamp:     v.Timestamp,
	}
}

func fromViolationRecord(r violationRecord) domain.Violation {
	return domain.Violation{
		ID:            r.ID,
		ParticipantID: r.ParticipantID,
		ExamSessionID: r.ExamSessionID,
		Type:          domain.ViolationType(r.Type),
		Severity:      domain.Severity(r.Severity),
		Description:   r.Description,
		Timestamp:     r.Timestamp,
	}
}
