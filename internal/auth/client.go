package auth

import (
	"context"
	"sync"

	"chat-room/internal/session"
)

// TokenVerifier turns a raw token into a session.
type TokenVerifier interface {
	Verify(token string) (*session.Session, error)
}

// Client is the auth state of one connected chat client. It implements
// session.AuthSource.
type Client struct {
	verifier TokenVerifier

	mu        sync.Mutex
	token     string
	listeners map[int]func(session.Event)
	nextID    int
}

var _ session.AuthSource = (*Client)(nil)

// NewClient creates a client holding token.
func NewClient(verifier TokenVerifier, token string) *Client {
	return &Client{verifier: verifier, token: token, listeners: make(map[int]func(session.Event))}
}

// GetSession verifies the held token.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	return c.verifier.Verify(token)
}

// OnAuthStateChange registers cb for auth events.
func (c *Client) OnAuthStateChange(cb func(session.Event)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = cb
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Refresh swaps in a new token. A token that fails verification signs the client out.
func (c *Client) Refresh(token string) error {
	sess, err := c.verifier.Verify(token)
	if err != nil {
		c.clear()
		c.emit(session.Event{Type: session.EventSignedOut})
		return err
	}

	c.mu.Lock()
	signedIn := c.token == ""
	c.token = token
	c.mu.Unlock()

	evt := session.Event{Type: session.EventTokenRefreshed, Session: sess}
	if signedIn {
		evt.Type = session.EventSignedIn
	}
	c.emit(evt)
	return nil
}

// SignOut drops the token and notifies listeners.
func (c *Client) SignOut() {
	c.clear()
	c.emit(session.Event{Type: session.EventSignedOut})
}

func (c *Client) clear() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) emit(evt session.Event) {
	c.mu.Lock()
	listeners := make([]func(session.Event), 0, len(c.listeners))
	for _, cb := range c.listeners {
		listeners = append(listeners, cb)
	}
	c.mu.Unlock()

	for _, cb := range listeners {
		cb(evt)
	}
}
