// Package room runs the chat room of one connected client: it keeps the message
// list in sync with the store and throttles outgoing messages.
//
// All controller state is owned by a single loop goroutine. Store calls run on
// their own goroutines and hand their results back to the loop, so handlers never
// interleave.
package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"chat-room/internal/logging"
	"chat-room/internal/models"
	"chat-room/internal/observability"
	"chat-room/internal/render"
	"chat-room/internal/session"
	"chat-room/internal/store"
)

var (
	ErrClosed         = errors.New("room closed")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrGateClosed     = errors.New("send gate closed")
	ErrSendInFlight   = errors.New("send already in flight")
	ErrMessageTooLong = errors.New("message too long")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNotAllowed     = errors.New("not allowed to delete message")
)

// View receives the room state after every change.
type View interface {
	Render(Snapshot)
	Notice(message string)
}

// Hooks are optional callbacks fired after successful store writes.
type Hooks struct {
	Sent    func(ctx context.Context, sess *session.Session, msg models.NewMessage)
	Deleted func(ctx context.Context, sess *session.Session, messageID int64)
}

// Options tune a controller. Zero values take the defaults. MaxMessageLength
// only ever lowers models.MaxMessageLength.
type Options struct {
	Cooldown         time.Duration
	MaxMessageLength int
	Clock            Clock
	Hooks            Hooks
}

const (
	defaultCooldown = 3 * time.Second
	tickInterval    = time.Second
)

// Controller is the chat room state machine for one client.
type Controller struct {
	store store.MessageStore
	view  View
	opts  Options

	events  chan func()
	refetch chan struct{}
	done    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// owned by the loop goroutine
	sess       *session.Session
	messages   []models.Message
	loaded     bool
	scroll     ScrollMode
	draft      string
	sending    bool
	remaining  int
	ticker     Ticker
	tickerStop chan struct{}
	tickerGen  uint64
	fetchSeq   uint64
	appliedSeq uint64
	sub        store.Subscription
	hovered    map[int64]bool
}

// New creates a controller for sess. Call Start to begin syncing.
func New(ms store.MessageStore, sess *session.Session, view View, opts Options) *Controller {
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	if opts.MaxMessageLength <= 0 || opts.MaxMessageLength > models.MaxMessageLength {
		opts.MaxMessageLength = models.MaxMessageLength
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Controller{
		store:   ms,
		view:    view,
		opts:    opts,
		sess:    sess,
		events:  make(chan func(), 32),
		refetch: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		hovered: make(map[int64]bool),
	}
}

// Start subscribes to store changes, performs the first fetch and runs the loop.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.sub = c.store.SubscribeToChanges(func(models.ChangeEvent) {
			// Notifications coalesce: any number of them means one full refetch.
			select {
			case c.refetch <- struct{}{}:
			default:
			}
		})
		go c.loop()
		c.post(c.fetch)
	})
}

// Close releases the change subscription and stops the countdown. No View calls
// happen after Close returns. Close must not be called from a View method.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		started := false
		c.startOnce.Do(func() {})
		if c.cancel != nil {
			started = true
			c.cancel()
		}
		if started {
			<-c.stopped
		}
	})
}

func (c *Controller) loop() {
	defer close(c.stopped)
	defer c.teardown()
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.events:
			fn()
		case <-c.refetch:
			c.fetch()
		}
	}
}

func (c *Controller) teardown() {
	if c.sub != nil {
		c.sub.Release()
		c.sub = nil
	}
	c.stopTicker()
}

// post queues fn on the loop. It is dropped once the controller is closed.
func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (c *Controller) call(fn func() error) error {
	result := make(chan error, 1)
	if !c.post(func() { result <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-c.stopped:
		return ErrClosed
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) logger() *zerolog.Logger {
	l := logging.Ctx(c.ctx).With().Str(logging.FieldComponent, "room").Logger()
	if c.sess != nil {
		l = l.With().Str(logging.FieldUserID, c.sess.UserID).Logger()
	}
	return &l
}

func (c *Controller) fetch() {
	c.fetchSeq++
	seq := c.fetchSeq
	ctx := c.ctx
	go func() {
		start := time.Now()
		msgs, err := c.store.ListMessages(ctx)
		observability.ObserveFetch(start, err)
		c.post(func() { c.applyFetch(seq, msgs, err) })
	}()
}

func (c *Controller) applyFetch(seq uint64, msgs []models.Message, err error) {
	if err != nil {
		// keep showing the last good list
		c.logger().Warn().Err(err).Uint64("fetch", seq).Msg("message fetch failed")
		return
	}
	if seq < c.appliedSeq {
		c.logger().Debug().Uint64("fetch", seq).Uint64("applied", c.appliedSeq).Msg("dropping stale fetch")
		return
	}
	c.appliedSeq = seq
	c.messages = render.SortByID(msgs)
	if c.loaded {
		c.scroll = ScrollSmooth
	} else {
		c.scroll = ScrollInstant
		c.loaded = true
	}
	c.render()
	c.scroll = ScrollNone
}

// SetDraft replaces the text being composed. The input is locked while a send
// is pending or the gate is closed, so the draft is left unchanged then.
func (c *Controller) SetDraft(text string) error {
	return c.call(func() error {
		if err := c.inputLocked(); err != nil {
			return err
		}
		c.draft = text
		c.render()
		return nil
	})
}

// Send submits the draft. It is a no-op returning ErrGateClosed or
// ErrSendInFlight while the gate is closed or a send is pending.
func (c *Controller) Send() error {
	return c.call(c.handleSend)
}

func (c *Controller) handleSend() error {
	if c.sess == nil {
		return ErrNotSignedIn
	}
	if err := c.inputLocked(); err != nil {
		observability.IncSend(observability.SendRejected)
		return err
	}
	if utf8.RuneCountInString(c.draft) > c.opts.MaxMessageLength {
		observability.IncSend(observability.SendRejected)
		return ErrMessageTooLong
	}
	if strings.TrimSpace(c.draft) == "" {
		return ErrEmptyMessage
	}

	c.sending = true
	sess := c.sess
	msg := sess.NewMessage(c.draft)
	ctx := c.ctx
	c.render()

	go func() {
		err := c.store.InsertMessage(ctx, msg)
		c.post(func() { c.finishSend(sess, msg, err) })
	}()
	return nil
}

func (c *Controller) inputLocked() error {
	if c.sending {
		return ErrSendInFlight
	}
	if c.remaining > 0 {
		return ErrGateClosed
	}
	return nil
}

func (c *Controller) finishSend(sess *session.Session, msg models.NewMessage, err error) {
	c.sending = false
	if err != nil {
		observability.IncSend(observability.SendFailed)
		c.logger().Error().Err(err).Msg("send failed")
		c.view.Notice("Failed to send message: " + err.Error())
		c.render()
		return
	}

	observability.IncSend(observability.SendOK)
	c.draft = ""
	c.startCountdown()
	if c.opts.Hooks.Sent != nil {
		c.opts.Hooks.Sent(c.ctx, sess, msg)
	}
	c.render()
}

func (c *Controller) startCountdown() {
	c.stopTicker()
	c.remaining = int(c.opts.Cooldown / tickInterval)
	if c.remaining <= 0 {
		c.remaining = 0
		return
	}

	c.tickerGen++
	gen := c.tickerGen
	ticker := c.opts.Clock.NewTicker(tickInterval)
	stop := make(chan struct{})
	c.ticker, c.tickerStop = ticker, stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				c.post(func() { c.tick(gen) })
			}
		}
	}()
}

func (c *Controller) tick(gen uint64) {
	if c.ticker == nil || gen != c.tickerGen {
		return
	}
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.stopTicker()
	}
	c.render()
}

func (c *Controller) stopTicker() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickerStop)
	c.ticker, c.tickerStop = nil, nil
}

// Delete soft-deletes one of the signed-in user's messages. Store failures are
// only logged.
func (c *Controller) Delete(messageID int64) error {
	return c.call(func() error {
		if c.sess == nil {
			return ErrNotSignedIn
		}
		msg, ok := c.find(messageID)
		if !ok || msg.Deleted || !render.IsCurrentUser(msg, c.sess.UserID) {
			return ErrNotAllowed
		}

		sess := c.sess
		ctx := c.ctx
		go func() {
			err := c.store.SoftDeleteMessage(ctx, messageID)
			observability.IncDelete(err)
			c.post(func() { c.finishDelete(sess, messageID, err) })
		}()
		return nil
	})
}

func (c *Controller) finishDelete(sess *session.Session, messageID int64, err error) {
	if err != nil {
		c.logger().Error().Err(err).Int64(logging.FieldMessageID, messageID).Msg("error deleting message")
		return
	}
	c.logger().Info().Int64(logging.FieldMessageID, messageID).Msg("message deleted")
	if c.opts.Hooks.Deleted != nil {
		c.opts.Hooks.Deleted(c.ctx, sess, messageID)
	}
}

func (c *Controller) find(messageID int64) (models.Message, bool) {
	for _, m := range c.messages {
		if m.ID == messageID {
			return m, true
		}
	}
	return models.Message{}, false
}

// SetHovered records whether the pointer is over a message.
func (c *Controller) SetHovered(messageID int64, hovered bool) error {
	return c.call(func() error {
		if hovered {
			c.hovered[messageID] = true
		} else {
			delete(c.hovered, messageID)
		}
		c.render()
		return nil
	})
}

// SetSession swaps the identity the room renders and sends as.
func (c *Controller) SetSession(sess *session.Session) error {
	return c.call(func() error {
		c.sess = sess
		c.render()
		return nil
	})
}

// Snapshot returns the current room state.
func (c *Controller) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := c.call(func() error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

func (c *Controller) gate() Gate {
	return Gate{Open: c.remaining == 0, Remaining: c.remaining}
}

func (c *Controller) snapshot() Snapshot {
	userID := ""
	snap := Snapshot{
		Gate:    c.gate(),
		Sending: c.sending,
		Draft:   c.draft,
		Scroll:  c.scroll,
	}
	if c.sess != nil {
		userID = c.sess.UserID
		snap.UserName = c.sess.DisplayName
		snap.AvatarURL = c.sess.AvatarURL
	}

	views := render.List(c.messages, userID, c.opts.Clock.Now())
	for i := range views {
		views[i] = views[i].WithHover(c.hovered[views[i].ID])
	}
	snap.Messages = views
	snap.InputEnabled = c.inputLocked() == nil
	snap.CanSend = c.sess != nil && snap.Gate.Open && !c.sending &&
		utf8.RuneCountInString(c.draft) <= c.opts.MaxMessageLength
	snap.Placeholder = placeholder(snap.Gate)
	snap.SendLabel = sendLabel(c.sending)
	return snap
}

func (c *Controller) render() {
	c.view.Render(c.snapshot())
}
