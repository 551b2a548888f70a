//go:generate go run go.uber.org/mock/mockgen -source=exam_repository.go -destination=../../mocks/mock_exam_repository.go -package=mocks
package storage

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"proctor/domain"
	"proctor/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IExamSessionRepository interface {
	CreateExamSession(name string, at time.Time) (domain.ExamSession, error)
	GetActiveExamSession() (domain.ExamSession, error)
	GetExamSession(id int64) (domain.ExamSession, error)
	EndExamSession(at time.Time) (domain.ExamSession, error)
}

type ExamSessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewExamSessionRepository(db *badger.DB, log *slog.Logger) *ExamSessionRepository {
	return &ExamSessionRepository{db: db, log: log}
}

type examRecord struct {
	ID        int64      `cbor:"id"`
	Name      string     `cbor:"name"`
	Status    string     `cbor:"status"`
	StartTime time.Time  `cbor:"start_time"`
	EndTime   *time.Time `cbor:"end_time"`
}

// CreateExamSession starts a new ACTIVE session. At most one session is
// current, so it fails while another is still active. The id counter moves
// in the same transaction, so a refused start does not consume an id.
func (r ExamSessionRepository) CreateExamSession(name string, at time.Time) (domain.ExamSession, error) {
	exam := domain.ExamSession{
		Name:      name,
		Status:    domain.ExamActive,
		StartTime: at.UTC(),
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(examActiveKey)); err == nil {
			return errors.ErrSessionAlreadyActive
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		last, err := lastExamID(txn)
		if err != nil {
			return err
		}
		exam.ID = last + 1
		if err := setRecord(txn, examKey(exam.ID), toExamRecord(exam)); err != nil {
			return err
		}
		if err := txn.Set([]byte(examSequenceKey), encodeID(exam.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(examActiveKey), encodeID(exam.ID))
	})
	if err != nil {
		return domain.ExamSession{}, errors.Persistence("create exam session", err)
	}
	r.log.Info("Exam session started", "exam_session_id", exam.ID, "name", name)
	return exam, nil
}

func (r ExamSessionRepository) GetActiveExamSession() (domain.ExamSession, error) {
	var rec examRecord
	err := r.db.View(func(txn *badger.Txn) error {
		id, err := activeExamID(txn)
		if err != nil {
			return err
		}
		return getRecord(txn, examKey(id), &rec)
	})
	if err != nil {
		return domain.ExamSession{}, errors.Persistence("get active exam session", err)
	}
	return fromExamRecord(rec), nil
}

func (r ExamSessionRepository) GetExamSession(id int64) (domain.ExamSession, error) {
	var rec examRecord
	err := r.db.View(func(txn *badger.Txn) error {
		err := getRecord(txn, examKey(id), &rec)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %d", errors.ErrSessionNotFound, id)
		}
		return err
	})
	if err != nil {
		return domain.ExamSession{}, errors.Persistence("get exam session", err)
	}
	return fromExamRecord(rec), nil
}

// EndExamSession completes the current session.
func (r ExamSessionRepository) EndExamSession(at time.Time) (domain.ExamSession, error) {
	var rec examRecord
	err := r.db.Update(func(txn *badger.Txn) error {
		id, err := activeExamID(txn)
		if err != nil {
			return err
		}
		if err := getRecord(txn, examKey(id), &rec); err != nil {
			return err
		}
		end := at.UTC()
		rec.Status = string(domain.ExamCompleted)
		rec.EndTime = &end
		if err := setRecord(txn, examKey(id), rec); err != nil {
			return err
		}
		return txn.Delete([]byte(examActiveKey))
	})
	if err != nil {
		return domain.ExamSession{}, errors.Persistence("end exam session", err)
	}
	r.log.Info("Exam session ended", "exam_session_id", rec.ID)
	return fromExamRecord(rec), nil
}

func activeExamID(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(examActiveKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, errors.ErrNoActiveSession
	}
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		id = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return id, err
}

func lastExamID(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(examSequenceKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		id = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return id, err
}

func encodeID(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func toExamRecord(e domain.ExamSession) examRecord {
	return examRecord{
		ID:        e.ID,
		Name:      e.Name,
		Status:    string(e.Status),
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
	}
}

func fromExamRecord(r examRecord) domain.ExamSession {
	return domain.ExamSession{
		ID:        r.ID,
		Name:      r.Name,
		Status:    domain.ExamStatus(r.Status),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
}
