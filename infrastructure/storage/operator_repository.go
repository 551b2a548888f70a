//go:generate go run go.uber.org/mock/mockgen -source=operator_repository.go -destination=../../mocks/mock_operator_repository.go -package=mocks
package storage

import (
	"fmt"
	"proctor/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IOperatorRepository interface {
	CreateOperator(username, hashedPassword string) (Operator, error)
	GetOperator(username string) (Operator, error)
}

// Operator is a proctor allowed to use the admin API.
type Operator struct {
	ID           string    `cbor:"id"`
	Username     string    `cbor:"username"`
	PasswordHash string    `cbor:"password_hash"`
	Roles        []string  `cbor:"roles"`
	CreatedAt    time.Time `cbor:"created_at"`
}

type OperatorRepository struct {
	db *badger.DB
}

func NewOperatorRepository(db *badger.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// CreateOperator persists an operator with an already hashed password.
func (o OperatorRepository) CreateOperator(username, hashedPassword string) (Operator, error) {
	op := Operator{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hashedPassword,
		Roles:        []string{RoleOperator},
		CreatedAt:    time.Now().UTC(),
	}

	err := o.db.Update(func(txn *badger.Txn) error {
		key := operatorKey(username)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", errors.ErrOperatorExists, username)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setRecord(txn, key, op)
	})
	if err != nil {
		return Operator{}, errors.Persistence("create operator", err)
	}
	return op, nil
}

func (o OperatorRepository) GetOperator(username string) (Operator, error) {
	var op Operator
	err := o.db.View(func(txn *badger.Txn) error {
		err := getRecord(txn, operatorKey(username), &op)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrInvalidCredentials
		}
		return err
	})
	if err != nil {
		return Operator{}, errors.Persistence("get operator", err)
	}
	return op, nil
}

const RoleOperator = "operator"
