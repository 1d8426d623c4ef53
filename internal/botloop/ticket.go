package botloop

import (
	"context"
	"errors"
	"sync"

	"github.com/farhan/hookgate/internal/models"
)

// ErrDisposed is the terminal error of a ticket that was released without
// ever being submitted.
var ErrDisposed = errors.New("ticket disposed before submission")

// TaskFunc is one unit of bot work. It always runs on the loop goroutine.
type TaskFunc func(ctx context.Context) error

// Ticket is the handle for a task travelling from a foreign goroutine onto
// the bot loop. Its lifecycle is create → submit → run, or create → Dispose.
// A constructed ticket must take one of those two paths: anything waiting on
// Done would otherwise block forever.
type Ticket struct {
	ID   string
	Name string

	fn   TaskFunc
	done chan struct{}
	err  error
	once sync.Once
}

// NewTicket wraps fn for submission. Build the ticket immediately before
// submitting it; a ticket held across other fallible work is a ticket that
// is easy to leak.
func NewTicket(name string, fn TaskFunc) *Ticket {
	return &Ticket{
		ID:   models.NewID("tkt"),
		Name: name,
		fn:   fn,
		done: make(chan struct{}),
	}
}

// Done is closed once the ticket ran, failed, or was disposed.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's outcome. Only valid after Done is closed.
func (t *Ticket) Err() error {
	return t.err
}

// Dispose releases a ticket that will never be submitted, waking anyone
// waiting on Done. Safe to call more than once; a no-op after completion.
func (t *Ticket) Dispose() {
	t.complete(ErrDisposed)
}

func (t *Ticket) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
