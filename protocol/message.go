package protocol

import (
	"time"
)

type MessageType string

// Participant to admin
const (
	Register          MessageType = "register"
	Heartbeat         MessageType = "heartbeat"
	ViolationReport   MessageType = "violation_report"
	PermissionRequest MessageType = "permission_request"
	StatusUpdate      MessageType = "status_update"
)

// Admin to participant
const (
	RegisterAck        MessageType = "register_ack"
	ConfigUpdate       MessageType = "config_update"
	Warning            MessageType = "warning"
	Lock               MessageType = "lock"
	Unlock             MessageType = "unlock"
	PermissionResponse MessageType = "permission_response"
	EmergencyLock      MessageType = "emergency_lock"
)

// Both directions
const (
	Ping MessageType = "ping"
	Pong MessageType = "pong"
)

var messageTypes = map[MessageType]struct{}{
	Register: {}, Heartbeat: {}, ViolationReport: {}, PermissionRequest: {}, StatusUpdate: {},
	RegisterAck: {}, ConfigUpdate: {}, Warning: {}, Lock: {}, Unlock: {},
	PermissionResponse: {}, EmergencyLock: {},
	Ping: {}, Pong: {},
}

// MessageTypes lists the closed set of message types.
func MessageTypes() []MessageType {
	types := make([]MessageType, 0, len(messageTypes))
	for t := range messageTypes {
		types = append(types, t)
	}
	return types
}

func (t MessageType) Valid() bool {
	_, ok := messageTypes[t]
	return ok
}

// Message is the envelope exchanged on every connection.
// An empty ParticipantID travels as null.
type Message struct {
	Type          MessageType
	Data          Data
	ParticipantID string
	Timestamp     time.Time
}

// New builds a fresh message stamped with the current UTC time.
func New(t MessageType, data Data, participantID string) Message {
	if data == nil {
		data = Data{}
	}
	return Message{
		Type:          t,
		Data:          data,
		ParticipantID: participantID,
		Timestamp:     time.Now().UTC(),
	}
}
