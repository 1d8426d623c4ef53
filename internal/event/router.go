package event

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Handler processes one routed event. Returned errors are internal faults;
// business outcomes (duplicate welcome, unknown user) are not errors.
type Handler func(ctx context.Context, evt *Event) error

// Router dispatches decoded events by their named type. Unknown types fall
// through to the default handler, or are acknowledged and ignored — the
// sender retries on anything but success, so unknown must not mean failure.
type Router struct {
	handlers map[string]Handler
	fallback Handler
	log      zerolog.Logger
}

func NewRouter(log zerolog.Logger) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// Register binds a handler to an event type. Types are case-insensitive.
func (r *Router) Register(eventType string, h Handler) {
	r.handlers[strings.ToUpper(eventType)] = h
}

// RegisterDefault binds the handler for event types with no exact match.
func (r *Router) RegisterDefault(h Handler) {
	r.fallback = h
}

// Known reports whether an exact handler is registered for eventType.
func (r *Router) Known(eventType string) bool {
	_, ok := r.handlers[strings.ToUpper(eventType)]
	return ok
}

// Route runs the handler for evt's type.
func (r *Router) Route(ctx context.Context, evt *Event) error {
	h, ok := r.handlers[evt.EventType]
	if !ok {
		if r.fallback != nil {
			return r.fallback(ctx, evt)
		}
		r.log.Debug().Str("event_type", evt.EventType).Msg("no handler for event type, acknowledging")
		return nil
	}
	return h(ctx, evt)
}
