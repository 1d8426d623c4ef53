package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/farhan/hookgate/internal/botloop"
	"github.com/farhan/hookgate/internal/ledger"
	"github.com/farhan/hookgate/internal/metrics"
)

// ChannelType keys welcome records for this channel in the ledger.
const ChannelType = "discord"

// Dispatcher bridges HTTP handler goroutines into the bot loop. The webhook
// request must be answered immediately, but the DM send happens on the loop
// goroutine; DispatchWelcome hands the send over and returns.
type Dispatcher struct {
	loop      *botloop.Loop
	messenger Messenger
	store     *ledger.Store
	settle    time.Duration
	message   string
	log       zerolog.Logger
}

func NewDispatcher(loop *botloop.Loop, messenger Messenger, store *ledger.Store, settle time.Duration, message string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		loop:      loop,
		messenger: messenger,
		store:     store,
		settle:    settle,
		message:   message,
		log:       log,
	}
}

// DispatchWelcome submits a one-shot welcome DM for externalID onto the bot
// loop. True means "handed off" — not "delivered"; the task owns its own
// completion. Runs on the caller's goroutine and never blocks on the send.
func (d *Dispatcher) DispatchWelcome(ctx context.Context, externalID string) bool {
	if d.messenger == nil {
		d.markDespiteFailure(externalID, "no bot handle configured")
		return false
	}
	if d.loop == nil || d.loop.IsClosed() {
		d.markDespiteFailure(externalID, "bot loop unavailable")
		return false
	}

	// Built immediately before submission: if anything above failed we never
	// created a ticket that could go unsubmitted.
	tkt := botloop.NewTicket("welcome-dm", d.welcomeTask(externalID))

	// The loop can close between the check above and this submit; that race
	// is inherent and lands here.
	if err := d.loop.Submit(tkt); err != nil {
		tkt.Dispose()
		d.markDespiteFailure(externalID, err.Error())
		return false
	}

	d.log.Info().Str("external_id", externalID).Str("ticket_id", tkt.ID).Msg("welcome dispatch submitted")
	return true
}

// markDespiteFailure is the fail-safe-to-no-retry policy: when infrastructure
// (not delivery) fails, record the user as welcomed anyway so the sender's
// at-least-once redelivery cannot amplify into a retry storm against a dead
// loop. The cost is an occasionally skipped welcome, which the
// in-conversation fallback covers.
func (d *Dispatcher) markDespiteFailure(externalID, reason string) {
	d.log.Warn().Str("external_id", externalID).Str("reason", reason).Msg("welcome dispatch infrastructure failure, marking welcomed to stop redelivery")
	metrics.WelcomesFailed.Inc()
	d.store.Mark(ChannelType, externalID)
}

// welcomeTask is the unit of work that runs on the bot loop goroutine.
func (d *Dispatcher) welcomeTask(externalID string) botloop.TaskFunc {
	return func(ctx context.Context) error {
		// The platform needs a moment after authorization before the DM
		// channel works. The delay is fixed and deliberately not cancellable.
		time.Sleep(d.settle)

		user, err := d.messenger.FetchUser(ctx, externalID)
		if err != nil {
			metrics.WelcomesFailed.Inc()
			d.log.Error().Err(err).Str("external_id", externalID).Msg("failed to fetch user for welcome")
			return err
		}

		if err := user.SendDM(ctx, d.message); err != nil {
			if errors.Is(err, ErrCannotMessage) {
				// Privacy settings or handshake timing. Leave the ledger
				// unset so the in-conversation fallback still fires once.
				d.log.Info().Str("external_id", externalID).Msg("user not reachable by DM, leaving welcome for fallback")
				return nil
			}
			metrics.WelcomesFailed.Inc()
			d.log.Error().Err(err).Str("external_id", externalID).Msg("failed to send welcome DM")
			return err
		}

		d.store.Mark(ChannelType, externalID)
		metrics.WelcomesSent.Inc()
		d.log.Info().Str("external_id", externalID).Msg("welcome DM sent")
		return nil
	}
}
