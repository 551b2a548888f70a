package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"proctor/contract"
	"proctor/errors"
	"proctor/protocol"
)

// Handler processes one inbound message of a participant's stream.
type Handler func(ctx context.Context, participantID string, msg protocol.Message) error

type connKey struct{}

// WithConn attaches the transport a message arrived on. Handlers that act
// before the connection is registered answer through it directly.
func WithConn(ctx context.Context, conn contract.Conn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

func ConnFrom(ctx context.Context) (contract.Conn, bool) {
	conn, ok := ctx.Value(connKey{}).(contract.Conn)
	return conn, ok && conn != nil
}

// Dispatcher is the table from message type to handler. A type with no
// entry is a protocol error, never a silent fallback.
type Dispatcher struct {
	handlers map[protocol.MessageType]Handler
	log      *slog.Logger
}

func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.MessageType]Handler),
		log:      log,
	}
}

func (d *Dispatcher) Handle(t protocol.MessageType, h Handler) *Dispatcher {
	d.handlers[t] = h
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, participantID string, msg protocol.Message) error {
	h, ok := d.handlers[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnhandledMessageType, msg.Type)
	}
	d.log.Debug("Dispatching message", "participant_id", participantID, "type", msg.Type)
	return h(ctx, participantID, msg)
}

func (d *Dispatcher) Handles(t protocol.MessageType) bool {
	_, ok := d.handlers[t]
	return ok
}
