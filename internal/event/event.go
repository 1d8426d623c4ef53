package event

import "encoding/json"

// Numeric envelope types the platform sends.
const (
	TypePing  = 0
	TypeEvent = 1
)

// Named event types, normalized to uppercase before routing.
const (
	TypeAuthorized   = "AUTHORIZED"
	TypeDeauthorized = "DEAUTHORIZED"
)

// Event is the normalized form of one webhook request body. It lives for the
// duration of a single request and is discarded after routing.
type Event struct {
	Type      int
	EventType string
	Data      json.RawMessage
}

// Ping reports whether this is a liveness check. Pings are acknowledged
// directly and never routed.
func (e *Event) Ping() bool {
	return e.Type == TypePing
}

// ExternalUser is the platform user an event is about.
type ExternalUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// User extracts the user object from the event payload, if present.
func (e *Event) User() (ExternalUser, bool) {
	if len(e.Data) == 0 {
		return ExternalUser{}, false
	}
	var data struct {
		User ExternalUser `json:"user"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.User.ID == "" {
		return ExternalUser{}, false
	}
	return data.User, true
}
