package notify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farhan/hookgate/internal/botloop"
	"github.com/farhan/hookgate/internal/event"
	"github.com/farhan/hookgate/internal/ledger"
)

type fakeUser struct {
	sendErr error
	sent    atomic.Int64
}

func (u *fakeUser) SendDM(ctx context.Context, text string) error {
	u.sent.Add(1)
	return u.sendErr
}

type fakeMessenger struct {
	user     *fakeUser
	fetchErr error
	fetches  atomic.Int64
}

func (m *fakeMessenger) FetchUser(ctx context.Context, externalID string) (User, error) {
	m.fetches.Add(1)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.user, nil
}

func testStore(t *testing.T) *ledger.Store {
	t.Helper()
	return ledger.NewStore(filepath.Join(t.TempDir(), "welcomed.json"), zerolog.Nop())
}

func startedLoop(t *testing.T) *botloop.Loop {
	t.Helper()
	l := botloop.New(zerolog.Nop())
	l.Start(context.Background())
	t.Cleanup(l.Close)
	return l
}

func TestDispatchWelcome_HappyPath(t *testing.T) {
	store := testStore(t)
	loop := startedLoop(t)
	m := &fakeMessenger{user: &fakeUser{}}
	d := NewDispatcher(loop, m, store, 10*time.Millisecond, "hello!", zerolog.Nop())

	ok := d.DispatchWelcome(context.Background(), "42")
	require.True(t, ok)

	// Handed off, not yet delivered: the ledger is written by the task on
	// the loop goroutine, after the settle delay.
	assert.False(t, store.Has(ChannelType, "42"))

	assert.Eventually(t, func() bool {
		return store.Has(ChannelType, "42")
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, m.user.sent.Load())
}

func TestDispatchWelcome_ClosedLoopMarksWelcomed(t *testing.T) {
	store := testStore(t)
	loop := botloop.New(zerolog.Nop())
	loop.Start(context.Background())
	loop.Close()

	m := &fakeMessenger{user: &fakeUser{}}
	d := NewDispatcher(loop, m, store, 0, "hello!", zerolog.Nop())

	ok := d.DispatchWelcome(context.Background(), "42")
	assert.False(t, ok)
	// No retry amplification: the user reads as welcomed even though no DM
	// was ever sent.
	assert.True(t, store.Has(ChannelType, "42"))
	assert.Zero(t, m.fetches.Load())
}

func TestDispatchWelcome_NoMessengerMarksWelcomed(t *testing.T) {
	store := testStore(t)
	d := NewDispatcher(startedLoop(t), nil, store, 0, "hello!", zerolog.Nop())

	ok := d.DispatchWelcome(context.Background(), "42")
	assert.False(t, ok)
	assert.True(t, store.Has(ChannelType, "42"))
}

func TestWelcomeTask_CannotMessageLeavesLedgerUnset(t *testing.T) {
	store := testStore(t)
	loop := startedLoop(t)
	m := &fakeMessenger{user: &fakeUser{sendErr: fmt.Errorf("dm blocked: %w", ErrCannotMessage)}}
	d := NewDispatcher(loop, m, store, 0, "hello!", zerolog.Nop())

	require.True(t, d.DispatchWelcome(context.Background(), "42"))

	assert.Eventually(t, func() bool {
		return m.user.sent.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Benign failure: the in-conversation fallback still gets its shot.
	assert.False(t, store.Has(ChannelType, "42"))
}

func TestWelcomeTask_UnexpectedSendErrorLeavesLedgerUnset(t *testing.T) {
	store := testStore(t)
	loop := startedLoop(t)
	m := &fakeMessenger{user: &fakeUser{sendErr: errors.New("rate limited")}}
	d := NewDispatcher(loop, m, store, 0, "hello!", zerolog.Nop())

	require.True(t, d.DispatchWelcome(context.Background(), "42"))

	assert.Eventually(t, func() bool {
		return m.user.sent.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, store.Has(ChannelType, "42"))
}

func TestWelcomeTask_FetchErrorLeavesLedgerUnset(t *testing.T) {
	store := testStore(t)
	loop := startedLoop(t)
	m := &fakeMessenger{fetchErr: errors.New("unknown user")}
	d := NewDispatcher(loop, m, store, 0, "hello!", zerolog.Nop())

	require.True(t, d.DispatchWelcome(context.Background(), "42"))

	assert.Eventually(t, func() bool {
		return m.fetches.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, store.Has(ChannelType, "42"))
}

func authorizedEvent(t *testing.T, id string) *event.Event {
	t.Helper()
	raw := fmt.Sprintf(`{"type":1,"event":{"type":"AUTHORIZED","data":{"user":{"id":%q,"username":"casey"}}}}`, id)
	evt, err := event.Decode([]byte(raw))
	require.NoError(t, err)
	return evt
}

func TestHandleAuthorized_AlreadyWelcomedSkipsDispatch(t *testing.T) {
	store := testStore(t)
	require.True(t, store.Mark(ChannelType, "42"))

	m := &fakeMessenger{user: &fakeUser{}}
	d := NewDispatcher(startedLoop(t), m, store, 0, "hello!", zerolog.Nop())

	require.NoError(t, d.HandleAuthorized(context.Background(), authorizedEvent(t, "42")))
	assert.Zero(t, m.fetches.Load())
}

func TestHandleAuthorized_NewUserDispatches(t *testing.T) {
	store := testStore(t)
	m := &fakeMessenger{user: &fakeUser{}}
	d := NewDispatcher(startedLoop(t), m, store, 0, "hello!", zerolog.Nop())

	require.NoError(t, d.HandleAuthorized(context.Background(), authorizedEvent(t, "42")))

	assert.Eventually(t, func() bool {
		return store.Has(ChannelType, "42")
	}, time.Second, 5*time.Millisecond)
}

func TestHandleAuthorized_MissingUserStillSucceeds(t *testing.T) {
	evt, err := event.Decode([]byte(`{"type":1,"event":{"type":"AUTHORIZED","data":{}}}`))
	require.NoError(t, err)

	d := NewDispatcher(startedLoop(t), &fakeMessenger{user: &fakeUser{}}, testStore(t), 0, "hello!", zerolog.Nop())
	assert.NoError(t, d.HandleAuthorized(context.Background(), evt))
}

func TestHandleDeauthorized_ClearsWelcome(t *testing.T) {
	store := testStore(t)
	require.True(t, store.Mark(ChannelType, "42"))

	d := NewDispatcher(startedLoop(t), &fakeMessenger{user: &fakeUser{}}, store, 0, "hello!", zerolog.Nop())

	evt, err := event.Decode([]byte(`{"type":1,"event":{"type":"DEAUTHORIZED","data":{"user":{"id":"42","username":"casey"}}}}`))
	require.NoError(t, err)

	require.NoError(t, d.HandleDeauthorized(context.Background(), evt))
	assert.False(t, store.Has(ChannelType, "42"))
}
