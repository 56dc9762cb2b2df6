package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-room/internal/logging"
	"chat-room/internal/middleware"
	"chat-room/internal/observability"
	"chat-room/internal/render"
	"chat-room/internal/repositories"
	"chat-room/internal/telemetry"
)

// ChatHandler serves the REST view of the chat room.
type ChatHandler struct {
	messageRepo repositories.MessageRepository
	audit       *telemetry.AuditEmitter
	now         func() time.Time
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(messageRepo repositories.MessageRepository, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{messageRepo: messageRepo, audit: audit, now: time.Now}
}

// ListMessages returns every message rendered for the authenticated user.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	sess := middleware.SessionFromContext(c)
	ctx, span := telemetry.StartSpan(c.Request.Context(), "messages.list")
	defer span.End()

	start := time.Now()
	msgs, err := h.messageRepo.ListMessages(ctx)
	observability.ObserveFetch(start, err)
	if err != nil {
		telemetry.RecordError(span, err)
		log := logging.Ctx(ctx)
		log.Error().Err(err).Msg("failed to load messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	userID := ""
	if sess != nil {
		userID = sess.UserID
	}
	c.JSON(http.StatusOK, gin.H{"messages": render.List(msgs, userID, h.now())})
}

// DeleteMessage soft-deletes one of the caller's own messages.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	sess := middleware.SessionFromContext(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil || messageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	ctx := c.Request.Context()
	log := logging.Ctx(ctx).With().Int64(logging.FieldMessageID, messageID).Logger()

	msg, err := h.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		log.Error().Err(err).Msg("failed to load message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}

	if !render.IsCurrentUser(msg, sess.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your message"})
		return
	}
	if msg.Deleted {
		c.Status(http.StatusNoContent)
		return
	}

	err = h.messageRepo.SoftDeleteMessage(ctx, messageID)
	observability.IncDelete(err)
	if err != nil {
		log.Error().Err(err).Msg("error deleting message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}

	h.audit.Record(ctx, telemetry.ActionMessageDeleted, requestIDFromContext(c), sess.UserID, telemetry.AuditPayload{MessageID: messageID})
	c.Status(http.StatusNoContent)
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
