package storage

import (
	"fmt"
	"log/slog"
	"proctor/domain"
	"proctor/errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IPermissionRepository interface {
	CreatePermissionRequest(req domain.PermissionRequest) (domain.PermissionRequest, error)
	GetPermissionRequest(id string) (domain.PermissionRequest, error)
	ApprovePermissionRequest(id string, at time.Time) (domain.PermissionRequest, error)
	RejectPermissionRequest(id string) (domain.PermissionRequest, error)
	GetActivePermission(participantID string, now time.Time) (domain.PermissionRequest, bool, error)
	ListPermissionRequests(status domain.PermissionStatus) ([]domain.PermissionRequest, error)
}

type PermissionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPermissionRepository(db *badger.DB, log *slog.Logger) *PermissionRepository {
	return &PermissionRepository{db: db, log: log}
}

type permissionRecord struct {
	ID              string     `cbor:"id"`
	ParticipantID   string     `cbor:"participant_id"`
	ExamSessionID   int64      `cbor:"exam_session_id"`
	RequestType     string     `cbor:"request_type"`
	Status          string     `cbor:"status"`
	Reason          string     `cbor:"reason"`
	DurationMinutes int        `cbor:"duration_minutes"`
	RequestedAt     time.Time  `cbor:"requested_at"`
	ApprovedAt      *time.Time `cbor:"approved_at"`
	ExpiresAt       *time.Time `cbor:"expires_at"`
}

// CreatePermissionRequest persists a PENDING request. The id index lets
// approve/reject find the record without knowing the participant.
func (r PermissionRepository) CreatePermissionRequest(req domain.PermissionRequest) (domain.PermissionRequest, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	req.RequestedAt = req.RequestedAt.UTC()
	req.Status = domain.PermissionPending

	key := permissionKey(req.ParticipantID, req.RequestedAt, req.ID)
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := loadParticipant(txn, req.ParticipantID); err != nil {
			return err
		}
		if err := setRecord(txn, key, toPermissionRecord(req)); err != nil {
			return err
		}
		return txn.Set(permissionIndexKey(req.ID), key)
	})
	if err != nil {
		return domain.PermissionRequest{}, errors.Persistence("create permission request", err)
	}
	return req, nil
}

func (r PermissionRepository) GetPermissionRequest(id string) (domain.PermissionRequest, error) {
	var req domain.PermissionRequest
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		req, _, err = loadPermission(txn, id)
		return err
	})
	if err != nil {
		return domain.PermissionRequest{}, errors.Persistence("get permission request", err)
	}
	return req, nil
}

// ApprovePermissionRequest only succeeds from PENDING. The read and the
// write share one transaction so two concurrent approvals cannot both win.
func (r PermissionRepository) ApprovePermissionRequest(id string, at time.Time) (domain.PermissionRequest, error) {
	return r.transition("approve permission request", id, func(req domain.PermissionRequest) (domain.PermissionRequest, bool) {
		return req.Approve(at.UTC())
	})
}

func (r PermissionRepository) RejectPermissionRequest(id string) (domain.PermissionRequest, error) {
	return r.transition("reject permission request", id, func(req domain.PermissionRequest) (domain.PermissionRequest, bool) {
		return req.Reject()
	})
}

// GetActivePermission returns the approved, unexpired request of a
// participant with the latest expiry, if any.
func (r PermissionRepository) GetActivePermission(participantID string, now time.Time) (domain.PermissionRequest, bool, error) {
	var (
		active domain.PermissionRequest
		found  bool
	)
	prefix := []byte(permissionPrefix + participantID + ":")
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, func(_ []byte, rec permissionRecord) error {
			req := fromPermissionRecord(rec)
			if !req.IsActive(now) {
				return nil
			}
			if !found || req.ExpiresAt.After(*active.ExpiresAt) {
				active, found = req, true
			}
			return nil
		})
	})
	if err != nil {
		return domain.PermissionRequest{}, false, errors.Persistence("get active permission", err)
	}
	return active, found, nil
}

// ListPermissionRequests returns requests oldest first. An empty status lists all.
func (r PermissionRepository) ListPermissionRequests(status domain.PermissionStatus) ([]domain.PermissionRequest, error) {
	var requests []domain.PermissionRequest
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(permissionPrefix), func(_ []byte, rec permissionRecord) error {
			if status == "" || domain.PermissionStatus(rec.Status) == status {
				requests = append(requests, fromPermissionRecord(rec))
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Persistence("list permission requests", err)
	}
	slices.SortStableFunc(requests, func(a, b domain.PermissionRequest) int {
		return a.RequestedAt.Compare(b.RequestedAt)
	})
	return requests, nil
}

func (r PermissionRepository) transition(op, id string, fn func(domain.PermissionRequest) (domain.PermissionRequest, bool)) (domain.PermissionRequest, error) {
	var out domain.PermissionRequest
	err := r.db.Update(func(txn *badger.Txn) error {
		req, key, err := loadPermission(txn, id)
		if err != nil {
			return err
		}
		next, ok := fn(req)
		if !ok {
			return fmt.Errorf("%w: %s is %s", errors.ErrRequestNotPending, id, req.Status)
		}
		out = next
		return setRecord(txn, key, toPermissionRecord(next))
	})
	if err != nil {
		return domain.PermissionRequest{}, errors.Persistence(op, err)
	}
	return out, nil
}

func loadPermission(txn *badger.Txn, id string) (domain.PermissionRequest, []byte, error) {
	item, err := txn.Get(permissionIndexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.PermissionRequest{}, nil, fmt.Errorf("%w: %s", errors.ErrRequestNotFound, id)
	}
	if err != nil {
		return domain.PermissionRequest{}, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return domain.PermissionRequest{}, nil, err
	}
	var rec permissionRecord
	if err := getRecord(txn, key, &rec); err != nil {
		return domain.PermissionRequest{}, nil, err
	}
	return fromPermissionRecord(rec), key, nil
}

func toPermissionRecord(p domain.PermissionRequest) permissionRecord {
	return permissionRecord{
		ID:              p.ID,
		ParticipantID:   p.ParticipantID,
		ExamSessionID:   p.ExamSessionID,
		RequestType:     p.RequestType,
		Status:          string(p.Status),
		Reason:          p.Reason,
		DurationMinutes: p.DurationMinutes,
		RequestedAt:     p.RequestedAt,
		ApprovedAt:      p.ApprovedAt,
		ExpiresAt:       p.ExpiresAt,
	}
}

func fromPermissionRecord(r permissionRecord) domain.PermissionRequest {
	return domain.PermissionRequest{
		ID:              r.ID,
		ParticipantID:   r.ParticipantID,
		ExamSessionID:   r.ExamSessionID,
		RequestType:     r.RequestType,
		Status:          domain.PermissionStatus(r.Status),
		Reason:          r.Reason,
		DurationMinutes: r.DurationMinutes,
		RequestedAt:     r.RequestedAt,
		ApprovedAt:      r.ApprovedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}
