package ws

import "chat-room/internal/room"

// Client to server command types.
const (
	CmdDraft        = "draft"
	CmdSend         = "send"
	CmdDelete       = "delete"
	CmdHover        = "hover"
	CmdRefreshToken = "refresh_token"
	CmdSignOut      = "sign_out"
)

// Server to client frame types.
const (
	FrameSnapshot  = "snapshot"
	FrameNotice    = "notice"
	FrameSignedOut = "signed_out"
)

// Command is a frame sent by the client.
type Command struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	ID      int64  `json:"id,omitempty"`
	Hovered bool   `json:"hovered,omitempty"`
	Token   string `json:"token,omitempty"`
}

type snapshotFrame struct {
	Type string `json:"type"`
	room.Snapshot
}

type noticeFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type signedOutFrame struct {
	Type string `json:"type"`
}
