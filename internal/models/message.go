package models

import "time"

// MaxMessageLength is the longest message content, in characters, a client may send.
const MaxMessageLength = 255

// Message represents a row of the Chat table.
type Message struct {
	ID             int64     `db:"id" json:"id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UserID         string    `db:"user_id" json:"user_id"`
	UserName       *string   `db:"user_name" json:"user_name"`
	UserAvatarURL  *string   `db:"user_avatar_url" json:"user_avatar_url"`
	Provider       string    `db:"provider" json:"provider"`
	MessageContent string    `db:"message_content" json:"message_content"`
	Deleted        bool      `db:"deleted" json:"deleted"`
}

// NewMessage is the insertable part of a Message; id, created_at and deleted are assigned by the store.
type NewMessage struct {
	UserID         string  `db:"user_id" json:"user_id"`
	UserName       *string `db:"user_name" json:"user_name"`
	UserAvatarURL  *string `db:"user_avatar_url" json:"user_avatar_url"`
	Provider       string  `db:"provider" json:"provider"`
	MessageContent string  `db:"message_content" json:"message_content"`
}

// Name returns the sender name or an empty string when it was never recorded.
func (m Message) Name() string {
	if m.UserName == nil {
		return ""
	}
	return *m.UserName
}

// AvatarURL returns the sender avatar or an empty string.
func (m Message) AvatarURL() string {
	if m.UserAvatarURL == nil {
		return ""
	}
	return *m.UserAvatarURL
}
