package realtime

import (
	"fmt"
	"time"

	"github.com/lib/pq"

	"chat-room/internal/logging"
)

const pingInterval = 90 * time.Second

// PQSource listens on a Postgres NOTIFY channel through lib/pq.
type PQSource struct {
	listener *pq.Listener
	out      chan Notification
	done     chan struct{}
}

// NewPQSource connects a listener for channel on dsn.
func NewPQSource(dsn, channel string) (*PQSource, error) {
	logger := logging.Component("realtime")
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn().Err(err).Int("event", int(ev)).Msg("change listener event")
		}
	})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	s := &PQSource{
		listener: listener,
		out:      make(chan Notification),
		done:     make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *PQSource) pump() {
	defer close(s.out)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case n := <-s.listener.Notify:
			// lib/pq sends nil after a reconnect.
			var payload string
			if n != nil {
				payload = n.Extra
			}
			select {
			case s.out <- Notification{Payload: payload}:
			case <-s.done:
				return
			}
		case <-ticker.C:
			go func() {
				if err := s.listener.Ping(); err != nil {
					log := logging.Component("realtime")
					log.Warn().Err(err).Msg("change listener ping failed")
				}
			}()
		}
	}
}

// Notifications implements Source.
func (s *PQSource) Notifications() <-chan Notification {
	return s.out
}

// Close stops the pump and the underlying listener.
func (s *PQSource) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.listener.Close()
}
