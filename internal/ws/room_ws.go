package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-room/internal/auth"
	"chat-room/internal/logging"
	"chat-room/internal/models"
	"chat-room/internal/observability"
	"chat-room/internal/room"
	"chat-room/internal/session"
	"chat-room/internal/store"
	"chat-room/internal/telemetry"
)

// RoomWebSocketHandler serves the live chat room.
type RoomWebSocketHandler struct {
	hub      *Hub
	store    store.MessageStore
	verifier auth.TokenVerifier
	audit    *telemetry.AuditEmitter
	opts     room.Options
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler. opts.Hooks is
// overwritten with audit hooks.
func NewRoomWebSocketHandler(hub *Hub, ms store.MessageStore, verifier auth.TokenVerifier, audit *telemetry.AuditEmitter, opts room.Options) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{hub: hub, store: ms, verifier: verifier, audit: audit, opts: opts}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the client, upgrades the connection and runs the room
// until the socket closes or the client signs out.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "ws.handshake")

	token := tokenFromRequest(c)
	if token == "" {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	authClient := auth.NewClient(h.verifier, token)
	holder := session.NewHolder(authClient)
	holder.Start(ctx)
	sess := holder.Current()
	if sess == nil {
		holder.Close()
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		holder.Close()
		telemetry.RecordError(span, err)
		span.End()
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      sess.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   c.GetString(logging.FieldRequestID),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	if info.RequestID == "" {
		info.RequestID = observability.RequestIDFromRequest(c.Request)
	}
	span.End()

	// the connection outlives the upgrade request
	h.serve(context.WithoutCancel(ctx), conn, info, authClient, holder)
}

func (h *RoomWebSocketHandler) serve(ctx context.Context, conn *websocket.Conn, info ConnInfo, authClient *auth.Client, holder *session.Holder) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.Ctx(ctx).With().
		Str(logging.FieldComponent, "ws").
		Str(logging.FieldConnID, info.ConnID).
		Str(logging.FieldUserID, info.UserID).
		Logger()
	ctx = logging.WithLogger(ctx, log)

	client := newClient(conn, info, log)
	h.hub.Add(client)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.audit.Record(ctx, telemetry.ActionConnected, info.RequestID, info.UserID, telemetry.AuditPayload{ConnID: info.ConnID})
	log.Info().Msg("websocket connected")

	ctrl := room.New(h.store, holder.Current(), client, h.roomOptions(info))
	unsubscribe := holder.Subscribe(func(sess *session.Session) {
		if sess != nil {
			_ = ctrl.SetSession(sess)
		}
	})

	go client.writePump()
	ctrl.Start(ctx)

	reason := h.readLoop(ctx, client, ctrl, authClient, holder, log)

	unsubscribe()
	ctrl.Close()
	holder.Close()
	h.hub.Remove(info.ConnID)
	client.Close(websocket.CloseNormalClosure, reason)

	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	h.audit.Record(ctx, telemetry.ActionDisconnected, info.RequestID, info.UserID, telemetry.AuditPayload{
		ConnID: info.ConnID,
		Text:   "websocket disconnected: " + reason,
	})
	log.Info().
		Str("reason", reason).
		Int64("duration_ms", time.Since(info.ConnectedAt).Milliseconds()).
		Msg("websocket disconnected")
}

func (h *RoomWebSocketHandler) roomOptions(info ConnInfo) room.Options {
	opts := h.opts
	opts.Hooks = room.Hooks{
		Sent: func(ctx context.Context, sess *session.Session, _ models.NewMessage) {
			h.audit.Record(ctx, telemetry.ActionMessageSent, info.RequestID, sess.UserID, telemetry.AuditPayload{ConnID: info.ConnID})
		},
		Deleted: func(ctx context.Context, sess *session.Session, messageID int64) {
			h.audit.Record(ctx, telemetry.ActionMessageDeleted, info.RequestID, sess.UserID, telemetry.AuditPayload{
				ConnID:    info.ConnID,
				MessageID: messageID,
			})
		},
	}
	return opts
}

// readLoop dispatches client commands and returns the close reason.
func (h *RoomWebSocketHandler) readLoop(ctx context.Context, client *Client, ctrl *room.Controller, authClient *auth.Client, holder *session.Holder, log zerolog.Logger) string {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				log.Warn().Err(err).Msg("websocket read error")
			}
			return err.Error()
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			observability.IncWSEvent("ws_bad_frame")
			log.Warn().Err(err).Msg("invalid command frame")
			continue
		}

		if err := h.dispatch(cmd, ctrl, authClient); err != nil {
			if errors.Is(err, room.ErrClosed) {
				return "room closed"
			}
			log.Debug().Err(err).Str("command", cmd.Type).Msg("command rejected")
		}

		if holder.Current() == nil {
			client.signedOut()
			h.audit.Record(ctx, telemetry.ActionSignedOut, client.info.RequestID, client.info.UserID, telemetry.AuditPayload{ConnID: client.info.ConnID})
			return "signed out"
		}
	}
}

var errUnknownCommand = errors.New("unknown command")

func (h *RoomWebSocketHandler) dispatch(cmd Command, ctrl *room.Controller, authClient *auth.Client) error {
	switch cmd.Type {
	case CmdDraft:
		return ctrl.SetDraft(cmd.Content)
	case CmdSend:
		return ctrl.Send()
	case CmdDelete:
		return ctrl.Delete(cmd.ID)
	case CmdHover:
		return ctrl.SetHovered(cmd.ID, cmd.Hovered)
	case CmdRefreshToken:
		return authClient.Refresh(cmd.Token)
	case CmdSignOut:
		authClient.SignOut()
		return nil
	default:
		observability.IncWSEvent("ws_bad_frame")
		return errUnknownCommand
	}
}
