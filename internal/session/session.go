// Package session holds the authenticated identity of one chat client.
package session

import (
	"time"

	"chat-room/internal/models"
)

// Session is the identity a client is signed in with.
type Session struct {
	UserID       string
	DisplayName  string
	AvatarURL    string
	Email        string
	ProviderName string
	AccessToken  string
	ExpiresAt    time.Time
}

// Provider returns the parsed identity provider.
func (s *Session) Provider() models.Provider {
	return models.ParseProvider(s.ProviderName)
}

// NewMessage builds the row to insert for content, snapshotting the sender identity.
func (s *Session) NewMessage(content string) models.NewMessage {
	msg := models.NewMessage{
		UserID:         s.UserID,
		Provider:       s.ProviderName,
		MessageContent: content,
	}
	if s.DisplayName != "" {
		name := s.DisplayName
		msg.UserName = &name
	}
	if s.AvatarURL != "" {
		avatar := s.AvatarURL
		msg.UserAvatarURL = &avatar
	}
	return msg
}

// DisplayName applies the naming precedence: provider preferred username, then
// provider display name, then email.
func DisplayName(preferredUsername, name, email string) string {
	for _, candidate := range []string{preferredUsername, name, email} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// EventType names an auth state change.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventSignedOut      EventType = "SIGNED_OUT"
)

// Event is one auth state change. Session is nil after sign-out.
type Event struct {
	Type    EventType
	Session *Session
}
