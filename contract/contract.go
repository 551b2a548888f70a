//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"proctor/domain"
	"proctor/protocol"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is one live transport handle to a participant.
// Send must be safe for concurrent use.
type Conn interface {
	Send(msg protocol.Message) error
	Close() error
}

// IRegistry is the part of the connection registry services speak through.
type IRegistry interface {
	Send(participantID string, msg protocol.Message) bool
	Broadcast(msg protocol.Message, exclude ...string) int
	IsConnected(participantID string) bool
}

// ParticipantLink is the participant side of the connection, as used by the
// local detection and telemetry workers.
type ParticipantLink interface {
	SendHeartbeat() error
	SendStatusUpdate(status protocol.Data) error
	SendViolationReport(evt domain.ViolationEvent) error
}
