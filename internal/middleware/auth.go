package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-room/internal/auth"
	"chat-room/internal/logging"
	"chat-room/internal/session"
)

const sessionKey = "session"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware verifies the bearer token and stores the session on the context.
func AuthMiddleware(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		token, ok := BearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		sess, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(sessionKey, sess)
		c.Set(logging.FieldUserID, sess.UserID)
		c.Next()
	}
}

// SessionFromContext returns the session stored by AuthMiddleware.
func SessionFromContext(c *gin.Context) *session.Session {
	if val, ok := c.Get(sessionKey); ok {
		if sess, ok := val.(*session.Session); ok {
			return sess
		}
	}
	return nil
}
