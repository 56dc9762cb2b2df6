// Package realtime fans Chat table change notifications out to subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"chat-room/internal/logging"
	"chat-room/internal/models"
	"chat-room/internal/observability"
)

// Notification is a raw payload received from the change channel. An empty
// payload means the connection was re-established and changes may have been missed.
type Notification struct {
	Payload string
}

// Source delivers raw notifications until Close is called.
type Source interface {
	Notifications() <-chan Notification
	Close() error
}

// Feed keeps the set of change subscribers.
type Feed struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(models.ChangeEvent)
}

// NewFeed creates a feed without subscribers.
func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]func(models.ChangeEvent))}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once    sync.Once
	release func()
}

// Release stops delivery to the subscriber. Safe to call more than once.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(s.release)
}

// Subscribe registers cb for every change event.
func (f *Feed) Subscribe(cb func(models.ChangeEvent)) *Subscription {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = cb
	f.mu.Unlock()
	observability.SetChangeSubscribers(f.Len())

	return &Subscription{release: func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		observability.SetChangeSubscribers(f.Len())
	}}
}

// Len reports the number of active subscribers.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Publish delivers evt to every current subscriber.
func (f *Feed) Publish(evt models.ChangeEvent) {
	f.mu.RLock()
	callbacks := make([]func(models.ChangeEvent), 0, len(f.subs))
	for _, cb := range f.subs {
		callbacks = append(callbacks, cb)
	}
	f.mu.RUnlock()

	observability.IncChangeNotification(string(evt.Op))
	for _, cb := range callbacks {
		cb(evt)
	}
}

// Run publishes every notification from src until ctx is cancelled or src closes.
func (f *Feed) Run(ctx context.Context, src Source) {
	logger := logging.Component("realtime")
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn().Err(err).Msg("close change source")
		}
	}()

	notifications := src.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				logger.Warn().Msg("change source closed")
				return
			}
			f.Publish(decode(n))
		}
	}
}

func decode(n Notification) models.ChangeEvent {
	var evt models.ChangeEvent
	if n.Payload == "" {
		return evt
	}
	if err := json.Unmarshal([]byte(n.Payload), &evt); err != nil {
		log := logging.Component("realtime")
		log.Debug().Err(err).Str("payload", n.Payload).Msg("undecodable change payload")
		return models.ChangeEvent{}
	}
	return evt
}
