package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/post-insights-api/internal/models"
	"github.com/Shimizu-Technology/post-insights-api/internal/session"
)

// SessionTokenHeader is the alternative to Authorization: Bearer.
const SessionTokenHeader = "X-Session-Token"

const sessionContextKey = "session"

// SessionAuth resolves the session token to a live session. Missing,
// invalid or expired tokens and ended sessions all get 401.
func SessionAuth(store *session.Store, tokens *session.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			unauthorized(c, "Missing session token. Create one via POST /api/v1/sessions and send it as 'Authorization: Bearer <token>'")
			return
		}

		id, err := tokens.Parse(raw)
		if err != nil {
			unauthorized(c, "Invalid or expired session token")
			return
		}

		sess, ok := store.Get(id)
		if !ok {
			unauthorized(c, "Session has ended. Create a new one via POST /api/v1/sessions")
			return
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// GetSession returns the session set by SessionAuth.
func GetSession(c *gin.Context) *session.Session {
	val, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	sess, _ := val.(*session.Session)
	return sess
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(c.GetHeader(SessionTokenHeader))
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: message,
		Code:    http.StatusUnauthorized,
	})
}
