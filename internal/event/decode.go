package event

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrMalformedPayload means the body is not a JSON object.
	ErrMalformedPayload = errors.New("malformed event payload")
	// ErrMissingEventType means the envelope parsed but carries no nested
	// event type, so there is nothing to route.
	ErrMissingEventType = errors.New("missing event type")
)

type envelope struct {
	Type  *int `json:"type"`
	Event *struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	} `json:"event"`
}

// Decode parses a raw webhook body into an Event. Pings short-circuit: a
// top-level numeric type of 0 is returned as-is with nothing else read.
func Decode(raw []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedPayload
	}

	if env.Type != nil && *env.Type == TypePing {
		return &Event{Type: TypePing}, nil
	}

	if env.Event == nil || strings.TrimSpace(env.Event.Type) == "" {
		return nil, ErrMissingEventType
	}

	evt := &Event{
		Type:      TypeEvent,
		EventType: strings.ToUpper(strings.TrimSpace(env.Event.Type)),
		Data:      env.Event.Data,
	}
	if env.Type != nil {
		evt.Type = *env.Type
	}
	return evt, nil
}
