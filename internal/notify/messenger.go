package notify

import (
	"context"
	"errors"
)

// ErrCannotMessage is the benign delivery failure: the recipient's privacy
// settings or an incomplete handshake prevent DMs right now. Implementations
// wrap it so the dispatcher can tell this class apart from real faults.
var ErrCannotMessage = errors.New("cannot message this user")

// Messenger is the bot handle this subsystem consumes. The real chat client
// lives elsewhere; only the DM-send surface is visible here.
type Messenger interface {
	FetchUser(ctx context.Context, externalID string) (User, error)
}

// User is a reachable platform user.
type User interface {
	SendDM(ctx context.Context, text string) error
}
