package web

import (
	"fmt"
	"proctor/contract"
	"proctor/errors"
	"proctor/observability"
	"proctor/protocol"
	"proctor/runtime"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// wsConn is the registry handle of one participant socket. Writes are
// serialized because handlers and broadcasts send concurrently.
type wsConn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
}

var _ contract.Conn = (*wsConn)(nil)

func (c *wsConn) Send(msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := websocket.Message.Send(c.ws, string(b)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSendFailed, err)
	}
	return nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// serveParticipant is the read task of one participant connection. Messages
// are dispatched one at a time in arrival order. The connection stays
// provisional until a REGISTER succeeds: it is not in the registry, it only
// gets answers to REGISTER and PING, and closing it leaves stored state alone.
// A protocol error or a read failure ends the task.
func (s *Server) serveParticipant(ws *websocket.Conn, participantID string) {
	conn := &wsConn{ws: ws, writeTimeout: s.cfg.WriteTimeout}
	log := s.log.With("participant_id", participantID, "remote", ws.Request().RemoteAddr)

	defer func() {
		if !s.registry.Release(participantID, conn) {
			return
		}
		if err := s.registration.Disconnect(participantID); err != nil {
			log.Error("Failed to mark participant disconnected", "error", err)
		}
	}()

	ctx := runtime.WithConn(ws.Request().Context(), conn)
	for {
		var frame string
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			log.Debug("Read loop ended", "error", err)
			return
		}
		s.monitor.Incr(observability.MessagesReceived)

		msg, err := protocol.Decode([]byte(frame))
		if err != nil {
			s.monitor.Incr(observability.ProtocolErrors)
			log.Warn("Malformed message, closing connection", "error", err)
			return
		}
		if msg.ParticipantID != "" && msg.ParticipantID != participantID {
			log.Debug("Envelope participant differs from connection", "envelope", msg.ParticipantID)
		}

		if s.provisional(participantID, conn, msg) {
			if msg.Type == protocol.Ping {
				_ = conn.Send(protocol.New(protocol.Pong, nil, participantID))
				continue
			}
			log.Warn("Message before registration ignored", "type", msg.Type)
			continue
		}

		if err := s.dispatcher.Dispatch(ctx, participantID, msg); err != nil {
			if errors.Is(err, errors.ErrProtocol) {
				s.monitor.Incr(observability.ProtocolErrors)
				log.Warn("Protocol error, closing connection", "type", msg.Type, "error", err)
				return
			}
			log.Warn("Message rejected", "type", msg.Type, "error", err)
		}
	}
}

// provisional tells whether msg arrived on a connection that has not
// registered yet and must not reach the services. REGISTER always goes
// through, and so do types with no handler so they fault as usual.
func (s *Server) provisional(participantID string, conn *wsConn, msg protocol.Message) bool {
	if msg.Type == protocol.Register || !s.dispatcher.Handles(msg.Type) {
		return false
	}
	return !s.registry.Holds(participantID, conn)
}
