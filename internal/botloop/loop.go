package botloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrLoopClosed is returned by Submit once the loop no longer accepts work.
var ErrLoopClosed = errors.New("bot loop closed")

// Loop runs all bot-side work on a single goroutine, one task at a time.
// HTTP handler goroutines never touch bot state directly: Submit is the one
// cross-goroutine entry point, and it passes messages rather than sharing
// memory. That keeps the DM client free of locks and gives sends a stable
// ordering.
type Loop struct {
	tasks chan *Ticket
	quit  chan struct{}
	done  chan struct{}

	started   bool
	closeOnce sync.Once
	log       zerolog.Logger
}

func New(log zerolog.Logger) *Loop {
	return &Loop{
		tasks: make(chan *Ticket, 16),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Start launches the loop goroutine. ctx is handed to every task.
func (l *Loop) Start(ctx context.Context) {
	l.started = true
	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	l.log.Info().Msg("bot loop started")

	for {
		select {
		case <-l.quit:
			l.drain()
			l.log.Info().Msg("bot loop stopped")
			return
		case t := <-l.tasks:
			l.execute(ctx, t)
		}
	}
}

// drain fails any tickets that were accepted but never ran, so their
// submitters are not left waiting on Done.
func (l *Loop) drain() {
	for {
		select {
		case t := <-l.tasks:
			l.log.Warn().Str("ticket_id", t.ID).Str("task", t.Name).Msg("discarding task queued behind loop close")
			t.complete(ErrLoopClosed)
		default:
			return
		}
	}
}

func (l *Loop) execute(ctx context.Context, t *Ticket) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task panic: %v", r)
			l.log.Error().Str("ticket_id", t.ID).Str("task", t.Name).Msg(err.Error())
			t.complete(err)
		}
	}()

	t.complete(t.fn(ctx))
}

// Submit hands a ticket to the loop goroutine. Thread-safe. On ErrLoopClosed
// the ticket has NOT been accepted and the caller still owns its disposal.
func (l *Loop) Submit(t *Ticket) error {
	// Fast path so a closed loop is reported even while the queue has room.
	select {
	case <-l.quit:
		return ErrLoopClosed
	default:
	}

	select {
	case l.tasks <- t:
		return nil
	case <-l.quit:
		return ErrLoopClosed
	}
}

// IsClosed reports whether the loop has begun shutting down. A false answer
// is only advisory: Close may win the race against a following Submit, which
// then reports ErrLoopClosed itself.
func (l *Loop) IsClosed() bool {
	select {
	case <-l.quit:
		return true
	default:
		return false
	}
}

// Close stops accepting work and waits for the in-flight task to finish.
// Idempotent.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
	})
	if l.started {
		<-l.done
	}
}
