package services

import (
	"context"
	"log/slog"
	"proctor/contract"
	"proctor/errors"
	"proctor/observability"
	"proctor/protocol"
	"proctor/runtime"
)

// MessageHandlers answers the participant → server half of the protocol.
type MessageHandlers struct {
	registration *RegistrationService
	escalation   *EscalationService
	permissions  *PermissionService
	exams        *ExamService
	registry     *runtime.Registry
	monitor      *observability.Monitor
	log          *slog.Logger
}

func NewMessageHandlers(
	registration *RegistrationService,
	escalation *EscalationService,
	permissions *PermissionService,
	exams *ExamService,
	registry *runtime.Registry,
	monitor *observability.Monitor,
	log *slog.Logger,
) *MessageHandlers {
	return &MessageHandlers{
		registration: registration,
		escalation:   escalation,
		permissions:  permissions,
		exams:        exams,
		registry:     registry,
		monitor:      monitor,
		log:          log,
	}
}

// Bind registers every inbound message type on d.
func (h *MessageHandlers) Bind(d *runtime.Dispatcher) *runtime.Dispatcher {
	return d.
		Handle(protocol.Register, h.onRegister).
		Handle(protocol.Heartbeat, h.onHeartbeat).
		Handle(protocol.ViolationReport, h.onViolation).
		Handle(protocol.PermissionRequest, h.onPermissionRequest).
		Handle(protocol.StatusUpdate, h.onStatusUpdate).
		Handle(protocol.Ping, h.onPing).
		Handle(protocol.Pong, h.onPong)
}

// onRegister validates a REGISTER. Only a successful registration puts the
// connection into the registry. A rejection is answered on the connection the
// REGISTER came from, so it never displaces the participant's live handle.
func (h *MessageHandlers) onRegister(ctx context.Context, participantID string, msg protocol.Message) error {
	conn, _ := runtime.ConnFrom(ctx)
	payload, err := ParseRegisterPayload(msg.Data)
	if err != nil {
		h.reject(participantID, conn, msgInvalidPayload)
		return err
	}

	p, exam, err := h.registration.Register(participantID, payload)
	if err != nil {
		msg, ok := errors.UserMessage(err)
		if !ok {
			// storage failure, details stay in the logs
			msg = msgServerError
		}
		h.reject(participantID, conn, msg)
		return err
	}

	if conn != nil {
		h.registry.Register(participantID, conn)
	}
	h.monitor.Incr(observability.RegistrationsAccepted)
	h.registry.Send(participantID, protocol.New(protocol.RegisterAck, protocol.Data{
		"status":          "registered",
		"participant_id":  p.ID,
		"exam_session_id": exam.ID,
	}, participantID))
	h.registry.Send(participantID, h.exams.ConfigMessage(participantID))
	h.escalation.RestoreLock(p)
	return nil
}

func (h *MessageHandlers) reject(participantID string, conn contract.Conn, message string) {
	h.monitor.Incr(observability.RegistrationsRejected)
	h.log.Warn("Registration rejected", "participant_id", participantID, "reason", message)
	ack := protocol.New(protocol.RegisterAck, protocol.Data{
		"status":  "rejected",
		"message": message,
	}, participantID)
	if conn == nil {
		h.registry.Send(participantID, ack)
		return
	}
	if err := conn.Send(ack); err != nil {
		h.log.Debug("Rejection not delivered", "participant_id", participantID, "error", err)
	}
}

func (h *MessageHandlers) onHeartbeat(_ context.Context, participantID string, _ protocol.Message) error {
	if _, err := h.registration.Heartbeat(participantID); err != nil {
		return err
	}
	h.registry.Touch(participantID)
	return nil
}

func (h *MessageHandlers) onViolation(_ context.Context, participantID string, msg protocol.Message) error {
	evt, err := ParseViolationPayload(participantID, msg.Data)
	if err != nil {
		return err
	}
	evt.Timestamp = msg.Timestamp
	_, err = h.escalation.HandleViolation(evt)
	return err
}

func (h *MessageHandlers) onPermissionRequest(_ context.Context, participantID string, msg protocol.Message) error {
	payload, err := ParsePermissionPayload(msg.Data)
	if err != nil {
		return err
	}
	_, err = h.permissions.Request(participantID, payload)
	return err
}

func (h *MessageHandlers) onStatusUpdate(_ context.Context, participantID string, msg protocol.Message) error {
	h.registry.UpdateStatus(participantID, msg.Data)
	return nil
}

func (h *MessageHandlers) onPing(_ context.Context, participantID string, _ protocol.Message) error {
	h.registry.Send(participantID, protocol.New(protocol.Pong, nil, participantID))
	return nil
}

func (h *MessageHandlers) onPong(_ context.Context, participantID string, _ protocol.Message) error {
	h.registry.Touch(participantID)
	return nil
}
