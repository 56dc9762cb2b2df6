package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-room/internal/logging"
	"chat-room/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(logging.FieldRequestID); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(logging.FieldRequestID, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) string {
	if sess := middleware.SessionFromContext(c); sess != nil {
		return sess.UserID
	}
	return ""
}
