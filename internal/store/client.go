// Package store is the message store client used by chat rooms: it reads and writes
// the Chat table and hands out change subscriptions.
//
// Rooms never apply change payloads. Every notification means "something changed,
// fetch the full table again". This keeps clients free of delta merging and
// out-of-order handling at the price of a full fetch per change, which is an
// accepted limit for small rooms: the fetch size is unbounded.
package store

import (
	"context"
	"fmt"

	"chat-room/internal/models"
	"chat-room/internal/realtime"
	"chat-room/internal/repositories"
)

// Subscription stops change delivery when released.
type Subscription interface {
	Release()
}

// MessageStore is what a chat room needs from the store.
type MessageStore interface {
	ListMessages(ctx context.Context) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.NewMessage) error
	SoftDeleteMessage(ctx context.Context, messageID int64) error
	SubscribeToChanges(cb func(models.ChangeEvent)) Subscription
}

// ChangeFeed is the subscription side of the realtime feed.
type ChangeFeed interface {
	Subscribe(cb func(models.ChangeEvent)) *realtime.Subscription
}

// Client implements MessageStore over a repository and a change feed.
type Client struct {
	repo repositories.MessageRepository
	feed ChangeFeed
}

var _ MessageStore = (*Client)(nil)

// NewClient constructs a Client.
func NewClient(repo repositories.MessageRepository, feed ChangeFeed) *Client {
	return &Client{repo: repo, feed: feed}
}

// ListMessages fetches the full message table.
func (c *Client) ListMessages(ctx context.Context) ([]models.Message, error) {
	msgs, err := c.repo.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// InsertMessage submits msg once.
func (c *Client) InsertMessage(ctx context.Context, msg models.NewMessage) error {
	if _, err := c.repo.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SoftDeleteMessage marks messageID as deleted.
func (c *Client) SoftDeleteMessage(ctx context.Context, messageID int64) error {
	if err := c.repo.SoftDeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("soft delete message %d: %w", messageID, err)
	}
	return nil
}

// SubscribeToChanges registers cb for every change to the Chat table.
func (c *Client) SubscribeToChanges(cb func(models.ChangeEvent)) Subscription {
	return c.feed.Subscribe(cb)
}
