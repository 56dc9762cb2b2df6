package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-room/internal/models"
	"chat-room/internal/session"
	"chat-room/internal/store"
)

const waitFor = 2 * time.Second
const pollEvery = 5 * time.Millisecond

type fakeSub struct {
	mu       sync.Mutex
	released int
}

func (s *fakeSub) Release() {
	s.mu.Lock()
	s.released++
	s.mu.Unlock()
}

func (s *fakeSub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

type fakeStore struct {
	mu        sync.Mutex
	messages  []models.Message
	listErr   error
	listHook  func(call int)
	listCalls int
	insertErr error
	insertFn  func(models.NewMessage)
	inserted  []models.NewMessage
	deleteErr error
	deleted   []int64
	cb        func(models.ChangeEvent)
	sub       *fakeSub
}

var _ store.MessageStore = (*fakeStore)(nil)

func (f *fakeStore) ListMessages(context.Context) ([]models.Message, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	hook := f.listHook
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, msg models.NewMessage) error {
	f.mu.Lock()
	fn := f.insertFn
	f.mu.Unlock()
	if fn != nil {
		fn(msg)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, msg)
	f.messages = append(f.messages, models.Message{
		ID:             int64(len(f.messages) + 1),
		UserID:         msg.UserID,
		UserName:       msg.UserName,
		Provider:       msg.Provider,
		MessageContent: msg.MessageContent,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (f *fakeStore) SoftDeleteMessage(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeStore) SubscribeToChanges(cb func(models.ChangeEvent)) store.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	f.sub = &fakeSub{}
	return f.sub
}

func (f *fakeStore) notify() {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb(models.ChangeEvent{Op: models.ChangeInsert, Table: "Chat"})
}

func (f *fakeStore) setMessages(msgs []models.Message) {
	f.mu.Lock()
	f.messages = msgs
	f.mu.Unlock()
}

func (f *fakeStore) insertedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	now     time.Time
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) last() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

type recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
	notices   []string
}

func (r *recorder) Render(s Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	r.mu.Unlock()
}

func (r *recorder) Notice(msg string) {
	r.mu.Lock()
	r.notices = append(r.notices, msg)
	r.mu.Unlock()
}

func (r *recorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return Snapshot{}
	}
	return r.snapshots[len(r.snapshots)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) sawScroll(mode ScrollMode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.snapshots {
		if s.Scroll == mode {
			return true
		}
	}
	return false
}

func ids(s Snapshot) []int64 {
	out := make([]int64, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, m.ID)
	}
	return out
}

func strPtr(s string) *string { return &s }

var alice = &session.Session{UserID: "user-a", DisplayName: "alice", ProviderName: "github"}

type harness struct {
	store *fakeStore
	clock *fakeClock
	view  *recorder
	ctrl  *Controller
}

func newHarness(t *testing.T, sess *session.Session, msgs []models.Message, opts Options) *harness {
	t.Helper()
	h := &harness{
		store: &fakeStore{messages: msgs},
		clock: &fakeClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)},
		view:  &recorder{},
	}
	opts.Clock = h.clock
	h.ctrl = New(h.store, sess, h.view, opts)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) start(t *testing.T, wantMessages int) {
	t.Helper()
	h.ctrl.Start(context.Background())
	require.Eventually(t, func() bool {
		return h.view.sawScroll(ScrollInstant) && len(h.view.last().Messages) == wantMessages
	}, waitFor, pollEvery)
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	var ticker *fakeTicker
	require.Eventually(t, func() bool {
		ticker = h.clock.last()
		return ticker != nil
	}, waitFor, pollEvery)
	select {
	case ticker.ch <- h.clock.now:
	case <-time.After(waitFor):
		t.Fatal("ticker not drained")
	}
}

func TestController_InitialFetchSortsByID(t *testing.T) {
	h := newHarness(t, alice, []models.Message{
		{ID: 3, UserID: "user-b", UserName: strPtr("bob")},
		{ID: 1, UserID: "user-a", UserName: strPtr("alice")},
		{ID: 2, UserID: "user-b", UserName: strPtr("bob")},
	}, Options{})

	h.start(t, 3)

	snap := h.view.last()
	assert.Equal(t, []int64{1, 2, 3}, ids(snap))
	assert.True(t, snap.Messages[0].IsCurrentUser)
	assert.False(t, snap.Messages[1].IsCurrentUser)
	assert.True(t, snap.Gate.Open)
	assert.Equal(t, "Type a message", snap.Placeholder)
	assert.Equal(t, "Send", snap.SendLabel)
	assert.Equal(t, "alice", snap.UserName)
}

func TestController_SendThenCountdown(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft("hi"))
	require.NoError(t, h.ctrl.Send())

	require.Eventually(t, func() bool {
		s := h.view.last()
		return h.store.insertedCount() == 1 && s.Gate.Remaining == 3 && s.Draft == ""
	}, waitFor, pollEvery)

	h.store.mu.Lock()
	sent := h.store.inserted[0]
	h.store.mu.Unlock()
	assert.Equal(t, "hi", sent.MessageContent)
	assert.Equal(t, "user-a", sent.UserID)
	assert.Equal(t, "github", sent.Provider)
	require.NotNil(t, sent.UserName)
	assert.Equal(t, "alice", *sent.UserName)

	snap := h.view.last()
	assert.False(t, snap.Gate.Open)
	assert.False(t, snap.CanSend)
	assert.Equal(t, "Wait 3 seconds", snap.Placeholder)

	assert.False(t, snap.InputEnabled)
	assert.ErrorIs(t, h.ctrl.SetDraft("again"), ErrGateClosed)
	assert.Equal(t, "", h.view.last().Draft)
	assert.ErrorIs(t, h.ctrl.Send(), ErrGateClosed)
	assert.Equal(t, 1, h.store.insertedCount())

	for _, want := range []int{2, 1, 0} {
		h.tick(t)
		require.Eventually(t, func() bool {
			return h.view.last().Gate.Remaining == want
		}, waitFor, pollEvery)
	}

	snap = h.view.last()
	assert.True(t, snap.Gate.Open)
	assert.True(t, snap.CanSend)
	assert.Equal(t, "Type a message", snap.Placeholder)
	assert.True(t, snap.InputEnabled)
	assert.Equal(t, "", snap.Draft)
	assert.True(t, h.clock.last().isStopped())

	require.NoError(t, h.ctrl.SetDraft("again"))
	assert.Equal(t, "again", h.view.last().Draft)
}

func TestController_SendRefetchesOnNotification(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft("hi"))
	require.NoError(t, h.ctrl.Send())
	require.Eventually(t, func() bool { return h.store.insertedCount() == 1 }, waitFor, pollEvery)

	h.store.notify()
	require.Eventually(t, func() bool {
		return len(h.view.last().Messages) == 1
	}, waitFor, pollEvery)

	assert.True(t, h.view.sawScroll(ScrollSmooth))
	msg := h.view.last().Messages[0]
	assert.Equal(t, "hi", msg.Content)
	assert.True(t, msg.IsCurrentUser)
	assert.Equal(t, "https://github.com/alice", msg.ProfileURL)
}

func TestController_SendTooLong(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft(strings.Repeat("a", 256)))
	assert.ErrorIs(t, h.ctrl.Send(), ErrMessageTooLong)
	assert.False(t, h.view.last().CanSend)

	require.NoError(t, h.ctrl.SetDraft(strings.Repeat("ż", 255)))
	assert.True(t, h.view.last().CanSend)
	require.NoError(t, h.ctrl.Send())
	require.Eventually(t, func() bool { return h.store.insertedCount() == 1 }, waitFor, pollEvery)
}

func TestController_MessageLengthNeverRaised(t *testing.T) {
	h := newHarness(t, alice, nil, Options{MaxMessageLength: 1000})
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft(strings.Repeat("a", 256)))
	assert.False(t, h.view.last().CanSend)
	assert.ErrorIs(t, h.ctrl.Send(), ErrMessageTooLong)
}

func TestController_SendEmptyRejected(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft("   "))
	assert.ErrorIs(t, h.ctrl.Send(), ErrEmptyMessage)
	assert.Equal(t, 0, h.store.insertedCount())
}

func TestController_SendFailureKeepsGateOpen(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	h.store.insertErr = errors.New("boom")
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft("hi"))
	require.NoError(t, h.ctrl.Send())

	require.Eventually(t, func() bool {
		h.view.mu.Lock()
		defer h.view.mu.Unlock()
		return len(h.view.notices) == 1
	}, waitFor, pollEvery)

	h.view.mu.Lock()
	assert.Equal(t, "Failed to send message: boom", h.view.notices[0])
	h.view.mu.Unlock()

	snap := h.view.last()
	assert.True(t, snap.Gate.Open)
	assert.False(t, snap.Sending)
	assert.Equal(t, "hi", snap.Draft)
	assert.Nil(t, h.clock.last())
}

func TestController_SendInFlight(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	release := make(chan struct{})
	entered := make(chan struct{})
	h.store.insertFn = func(models.NewMessage) {
		close(entered)
		<-release
	}
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft("hi"))
	require.NoError(t, h.ctrl.Send())
	<-entered

	snap := h.view.last()
	assert.True(t, snap.Sending)
	assert.False(t, snap.InputEnabled)
	assert.Equal(t, "Sending...", snap.SendLabel)
	assert.ErrorIs(t, h.ctrl.Send(), ErrSendInFlight)

	assert.ErrorIs(t, h.ctrl.SetDraft("typed during send"), ErrSendInFlight)
	snap, err := h.ctrl.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "hi", snap.Draft)

	close(release)
	require.Eventually(t, func() bool {
		return !h.view.last().Sending && h.store.insertedCount() == 1
	}, waitFor, pollEvery)
	assert.Equal(t, "", h.view.last().Draft)
}

func TestController_StaleFetchDropped(t *testing.T) {
	old := []models.Message{{ID: 1, UserID: "user-b"}}
	fresh := []models.Message{{ID: 1, UserID: "user-b"}, {ID: 2, UserID: "user-b"}}

	h := newHarness(t, alice, old, Options{})
	slowEntered := make(chan struct{})
	slowRelease := make(chan struct{})
	h.store.listHook = func(call int) {
		if call == 2 {
			close(slowEntered)
			<-slowRelease
		}
	}
	h.start(t, 1)

	// second fetch stalls on the old list
	h.store.notify()
	<-slowEntered

	h.store.setMessages(fresh)
	h.store.notify()
	require.Eventually(t, func() bool {
		return len(h.view.last().Messages) == 2
	}, waitFor, pollEvery)

	h.store.mu.Lock()
	h.store.listHook = nil
	h.store.mu.Unlock()
	h.store.setMessages(old)
	before := h.view.count()
	close(slowRelease)

	// give the stale response time to arrive, then make sure it did not win
	time.Sleep(20 * time.Millisecond)
	snap, err := h.ctrl.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(snap))
	assert.Equal(t, before, h.view.count())
}

func TestController_FetchFailureKeepsList(t *testing.T) {
	h := newHarness(t, alice, []models.Message{{ID: 1, UserID: "user-b"}}, Options{})
	h.start(t, 1)

	h.store.mu.Lock()
	h.store.listErr = errors.New("db down")
	h.store.mu.Unlock()
	h.store.notify()

	require.Eventually(t, func() bool {
		h.store.mu.Lock()
		defer h.store.mu.Unlock()
		return h.store.listCalls == 2
	}, waitFor, pollEvery)

	snap, err := h.ctrl.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(snap))
}

func TestController_DeleteOwnOnly(t *testing.T) {
	var hooked []int64
	var hookMu sync.Mutex
	h := newHarness(t, alice, []models.Message{
		{ID: 1, UserID: "user-a"},
		{ID: 2, UserID: "user-b"},
		{ID: 3, UserID: "user-a", Deleted: true},
	}, Options{Hooks: Hooks{Deleted: func(_ context.Context, _ *session.Session, id int64) {
		hookMu.Lock()
		hooked = append(hooked, id)
		hookMu.Unlock()
	}}})
	h.start(t, 3)

	assert.ErrorIs(t, h.ctrl.Delete(2), ErrNotAllowed)
	assert.ErrorIs(t, h.ctrl.Delete(3), ErrNotAllowed)
	assert.ErrorIs(t, h.ctrl.Delete(42), ErrNotAllowed)
	require.NoError(t, h.ctrl.Delete(1))

	require.Eventually(t, func() bool {
		hookMu.Lock()
		defer hookMu.Unlock()
		return len(hooked) == 1
	}, waitFor, pollEvery)

	h.store.mu.Lock()
	assert.Equal(t, []int64{1}, h.store.deleted)
	h.store.mu.Unlock()

	snap := h.view.last()
	assert.Equal(t, "Message Deleted", snap.Messages[2].Content)
	assert.False(t, snap.Messages[2].CanDelete)
}

func TestController_DeleteFailureIsSilent(t *testing.T) {
	var hooked int
	var hookMu sync.Mutex
	h := newHarness(t, alice, []models.Message{{ID: 1, UserID: "user-a", MessageContent: "keep me"}},
		Options{Hooks: Hooks{Deleted: func(context.Context, *session.Session, int64) {
			hookMu.Lock()
			hooked++
			hookMu.Unlock()
		}}})
	h.store.deleteErr = errors.New("db down")
	h.start(t, 1)
	before := h.view.count()

	require.NoError(t, h.ctrl.Delete(1))
	require.Eventually(t, func() bool {
		h.store.mu.Lock()
		defer h.store.mu.Unlock()
		return len(h.store.deleted) == 1
	}, waitFor, pollEvery)

	// the failure is handed back to the loop before Snapshot runs
	time.Sleep(20 * time.Millisecond)
	snap, err := h.ctrl.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "keep me", snap.Messages[0].Content)
	assert.True(t, snap.Messages[0].CanDelete)
	assert.Equal(t, before, h.view.count())

	h.view.mu.Lock()
	assert.Empty(t, h.view.notices)
	h.view.mu.Unlock()
	hookMu.Lock()
	assert.Zero(t, hooked)
	hookMu.Unlock()
}

func TestController_HoverShowsDelete(t *testing.T) {
	h := newHarness(t, alice, []models.Message{
		{ID: 1, UserID: "user-a"},
		{ID: 2, UserID: "user-b"},
	}, Options{})
	h.start(t, 2)

	require.NoError(t, h.ctrl.SetHovered(1, true))
	require.NoError(t, h.ctrl.SetHovered(2, true))
	snap := h.view.last()
	assert.True(t, snap.Messages[0].ShowDelete)
	assert.False(t, snap.Messages[1].ShowDelete)

	require.NoError(t, h.ctrl.SetHovered(1, false))
	assert.False(t, h.view.last().Messages[0].ShowDelete)
}

func TestController_SignedOut(t *testing.T) {
	h := newHarness(t, nil, []models.Message{{ID: 1, UserID: "user-a"}}, Options{})
	h.start(t, 1)

	snap := h.view.last()
	assert.False(t, snap.CanSend)
	assert.False(t, snap.Messages[0].IsCurrentUser)

	require.NoError(t, h.ctrl.SetDraft("hi"))
	assert.ErrorIs(t, h.ctrl.Send(), ErrNotSignedIn)
	assert.ErrorIs(t, h.ctrl.Delete(1), ErrNotSignedIn)

	require.NoError(t, h.ctrl.SetSession(alice))
	snap = h.view.last()
	assert.True(t, snap.CanSend)
	assert.True(t, snap.Messages[0].IsCurrentUser)
}

func TestController_CustomCooldown(t *testing.T) {
	h := newHarness(t, alice, nil, Options{Cooldown: 5 * time.Second})
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft("hi"))
	require.NoError(t, h.ctrl.Send())
	require.Eventually(t, func() bool {
		return h.view.last().Placeholder == "Wait 5 seconds"
	}, waitFor, pollEvery)
}

func TestController_CloseStopsEverything(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	h.start(t, 0)

	require.NoError(t, h.ctrl.SetDraft("hi"))
	require.NoError(t, h.ctrl.Send())
	require.Eventually(t, func() bool { return h.view.last().Gate.Remaining == 3 }, waitFor, pollEvery)

	h.ctrl.Close()
	h.ctrl.Close()

	assert.Equal(t, 1, h.store.sub.count())
	assert.True(t, h.clock.last().isStopped())

	before := h.view.count()
	h.store.notify()
	assert.ErrorIs(t, h.ctrl.SetDraft("late"), ErrClosed)
	assert.ErrorIs(t, h.ctrl.Send(), ErrClosed)
	_, err := h.ctrl.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, h.view.count())
}

func TestController_CloseBeforeStart(t *testing.T) {
	h := newHarness(t, alice, nil, Options{})
	h.ctrl.Close()
	h.ctrl.Start(context.Background())
	assert.Nil(t, h.store.sub)
	assert.ErrorIs(t, h.ctrl.SetDraft("hi"), ErrClosed)
}
