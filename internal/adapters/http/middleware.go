package http

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nclime/roomcast/internal/core"
)

const principalKey = "principal"

// requestIDMiddleware tags every request with an id and threads a
// request-scoped logger through the context. No process-global request
// state anywhere.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		logger := log.With().Str("request_id", reqID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// requireToken authorizes plain request/response endpoints with the
// same bearer credential the websocket handshake uses: Authorization
// header first, token query parameter as fallback.
func requireToken(auth core.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := c.Query("token")
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			credential = strings.TrimPrefix(h, "Bearer ")
		}

		principal, err := auth.Authenticate(c.Request.Context(), credential)
		if err != nil && !errors.Is(err, core.ErrAuthentication) {
			log.Error().Err(err).Str("module", "adapters.http").Msg("authenticate")
		}
		if !principal.Authenticated {
			c.AbortWithStatusJSON(401, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}
