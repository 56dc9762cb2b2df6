package ws

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-room/internal/middleware"
)

func newConnID() string {
	return uuid.NewString()
}

// tokenFromRequest reads the bearer token from the Authorization header, falling
// back to the token query parameter browsers use for websocket upgrades.
func tokenFromRequest(c *gin.Context) string {
	if token, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}
