package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bugtrack/cmd/identity/ids"
)

// Version is embedded in every envelope.
const Version = 1

// Wire-stable envelope types.
const (
	TypeHelloAck   = "hello.ack"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeBugCreated = "bug.created"
	TypeBugUpdated = "bug.updated"
	TypeBugDeleted = "bug.deleted"
	TypeError      = "error"
)

// Envelope is the feed's wire wrapper.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks an inbound envelope's structure.
func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %d", e.V)
	}
	if e.Type == "" {
		return errors.New("missing field: type")
	}
	return nil
}

// HelloAckPayload is sent once per connection.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// ErrorPayload reports a rejected inbound frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope marshals payload into an envelope stamped with a ULID and ts.
func NewEnvelope(typ string, payload any, ts time.Time) (Envelope, error) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	id, err := ids.NewULID(ts)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{V: Version, Type: typ, ID: id, TS: ts}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		env.Payload = raw
	}
	return env, nil
}
