package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"proctor/errors"
	"strconv"
	"time"
)

const naiveLayout = "2006-01-02T15:04:05.999999999"

// envelope is the wire shape: {"type", "data", "participant_id", "timestamp"}.
type envelope struct {
	Type          MessageType     `json:"type"`
	Data          json.RawMessage `json:"data"`
	ParticipantID *string         `json:"participant_id"`
	Timestamp     string          `json:"timestamp"`
}

// Encode serialises a message into its JSON envelope.
func Encode(m Message) ([]byte, error) {
	if !m.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownMessageType, m.Type)
	}
	data := m.Data
	if data == nil {
		data = Data{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	env := envelope{
		Type:      m.Type,
		Data:      raw,
		Timestamp: FormatTimestamp(ts),
	}
	if m.ParticipantID != "" {
		id := m.ParticipantID
		env.ParticipantID = &id
	}
	return json.Marshal(env)
}

// Decode parses a JSON envelope. An unknown type is a protocol error, never
// silently dropped.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}
	if !env.Type.Valid() {
		return Message{}, fmt.Errorf("%w: %q", errors.ErrUnknownMessageType, env.Type)
	}

	data := Data{}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		if err := dec.Decode(&data); err != nil {
			return Message{}, fmt.Errorf("%w: data: %v", errors.ErrMalformedMessage, err)
		}
		for k, v := range data {
			data[k] = number(v)
		}
	}

	ts := time.Now().UTC()
	if env.Timestamp != "" {
		parsed, err := ParseTimestamp(env.Timestamp)
		if err != nil {
			return Message{}, fmt.Errorf("%w: timestamp: %v", errors.ErrMalformedMessage, err)
		}
		ts = parsed
	}

	m := Message{Type: env.Type, Data: data, Timestamp: ts}
	if env.ParticipantID != nil {
		m.ParticipantID = *env.ParticipantID
	}
	return m, nil
}

// number gives whole JSON numbers back as int and the rest as float64, so
// counters and durations survive a round trip with their Go type. A whole
// float64 therefore decodes as int.
func number(v any) any {
	switch v := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(v.String(), 10, 0); err == nil {
			return int(n)
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = number(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = number(v[k])
		}
		return v
	}
	return v
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts RFC 3339 and the naive form legacy clients send,
// which is read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
