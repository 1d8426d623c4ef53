package notify

import (
	"context"

	"github.com/farhan/hookgate/internal/event"
	"github.com/farhan/hookgate/internal/metrics"
)

// HandleAuthorized welcomes a newly authorized user, at most once. Repeated
// deliveries of the same authorization are no-ops thanks to the ledger check.
func (d *Dispatcher) HandleAuthorized(ctx context.Context, evt *event.Event) error {
	user, ok := evt.User()
	if !ok {
		d.log.Warn().Str("event_type", evt.EventType).Msg("authorization event without user, acknowledging")
		return nil
	}

	if d.store.Has(ChannelType, user.ID) {
		metrics.WelcomesSkipped.Inc()
		d.log.Debug().Str("external_id", user.ID).Msg("user already welcomed, skipping")
		return nil
	}

	d.DispatchWelcome(ctx, user.ID)
	return nil
}

// HandleDeauthorized forgets the user so a future reauthorization is
// welcomed again.
func (d *Dispatcher) HandleDeauthorized(ctx context.Context, evt *event.Event) error {
	user, ok := evt.User()
	if !ok {
		d.log.Warn().Str("event_type", evt.EventType).Msg("deauthorization event without user, acknowledging")
		return nil
	}

	d.store.Clear(ChannelType, user.ID)
	d.log.Info().Str("external_id", user.ID).Msg("user deauthorized, welcome record cleared")
	return nil
}
