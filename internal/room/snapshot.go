package room

import (
	"fmt"

	"chat-room/internal/render"
)

// ScrollMode tells the client how to bring the newest message into view.
type ScrollMode string

const (
	ScrollNone    ScrollMode = ""
	ScrollInstant ScrollMode = "instant"
	ScrollSmooth  ScrollMode = "smooth"
)

// Gate is the send throttle: open, or closed for Remaining more seconds.
type Gate struct {
	Open      bool `json:"open"`
	Remaining int  `json:"remaining"`
}

// Snapshot is everything a client needs to draw the room.
type Snapshot struct {
	Messages     []render.MessageView `json:"messages"`
	Gate         Gate                 `json:"gate"`
	Sending      bool                 `json:"sending"`
	Draft        string               `json:"draft"`
	InputEnabled bool                 `json:"input_enabled"`
	CanSend      bool                 `json:"can_send"`
	Placeholder  string               `json:"placeholder"`
	SendLabel    string               `json:"send_label"`
	Scroll       ScrollMode           `json:"scroll,omitempty"`
	UserName     string               `json:"user_name,omitempty"`
	AvatarURL    string               `json:"avatar_url,omitempty"`
}

func placeholder(g Gate) string {
	if !g.Open {
		return fmt.Sprintf("Wait %d seconds", g.Remaining)
	}
	return "Type a message"
}

func sendLabel(sending bool) string {
	if sending {
		return "Sending..."
	}
	return "Send"
}
