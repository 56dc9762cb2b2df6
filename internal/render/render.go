// Package render turns stored messages into what a chat client displays.
package render

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"chat-room/internal/datefmt"
	"chat-room/internal/models"
)

const (
	DeletedPlaceholder = "Message Deleted"
	AnonymousName      = "Anonymous"
	DefaultAvatarURL   = "/assets/default-avatar.png"

	maskKeep = 6
)

// MessageView is a rendered message.
type MessageView struct {
	ID            int64  `json:"id"`
	DisplayName   string `json:"display_name"`
	ProfileURL    string `json:"profile_url,omitempty"`
	AvatarURL     string `json:"avatar_url"`
	Timestamp     string `json:"timestamp,omitempty"`
	Content       string `json:"content"`
	Deleted       bool   `json:"deleted"`
	IsCurrentUser bool   `json:"is_current_user"`
	CanDelete     bool   `json:"can_delete"`
	ShowDelete    bool   `json:"show_delete"`
}

// DeleteVisible reports whether the delete affordance shows while the pointer
// is (or is not) over the message.
func (v MessageView) DeleteVisible(hovered bool) bool {
	return v.CanDelete && hovered
}

// WithHover returns v with ShowDelete set for the given pointer state.
func (v MessageView) WithHover(hovered bool) MessageView {
	v.ShowDelete = v.DeleteVisible(hovered)
	return v
}

// Message renders msg for a viewer. isCurrentUser is true when the viewer wrote it.
func Message(msg models.Message, isCurrentUser bool, now time.Time) MessageView {
	name, profile := DisplayName(msg)
	view := MessageView{
		ID:            msg.ID,
		DisplayName:   name,
		ProfileURL:    profile,
		AvatarURL:     msg.AvatarURL(),
		Content:       msg.MessageContent,
		Deleted:       msg.Deleted,
		IsCurrentUser: isCurrentUser,
		CanDelete:     isCurrentUser && !msg.Deleted,
	}
	if view.AvatarURL == "" {
		view.AvatarURL = DefaultAvatarURL
	}
	if !msg.CreatedAt.IsZero() {
		view.Timestamp = datefmt.FormatChatDate(msg.CreatedAt, now)
	}
	if msg.Deleted {
		view.Content = DeletedPlaceholder
	}
	return view
}

// List renders msgs ordered by ascending id. msgs is not modified.
func List(msgs []models.Message, currentUserID string, now time.Time) []MessageView {
	sorted := SortByID(msgs)
	views := make([]MessageView, 0, len(sorted))
	for _, m := range sorted {
		views = append(views, Message(m, IsCurrentUser(m, currentUserID), now))
	}
	return views
}

// SortByID returns a copy of msgs ordered by ascending id.
func SortByID(msgs []models.Message) []models.Message {
	sorted := make([]models.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

// IsCurrentUser reports whether msg was written by userID.
func IsCurrentUser(msg models.Message, userID string) bool {
	return userID != "" && msg.UserID == userID
}

// DisplayName picks the shown author name and, for GitHub authors, a profile link.
// Email sign-ins usually carry the address as name, so it is masked.
func DisplayName(msg models.Message) (string, string) {
	name := strings.TrimSpace(msg.Name())
	if name == "" {
		return AnonymousName, ""
	}

	switch models.ParseProvider(msg.Provider) {
	case models.ProviderEmail:
		return MaskName(name), ""
	case models.ProviderGitHub:
		return name, "https://github.com/" + url.PathEscape(name)
	default:
		return name, ""
	}
}

// MaskName keeps the first six characters of name and replaces each remaining one with '*'.
func MaskName(name string) string {
	runes := []rune(name)
	if len(runes) <= maskKeep {
		return name
	}
	return string(runes[:maskKeep]) + strings.Repeat("*", len(runes)-maskKeep)
}
