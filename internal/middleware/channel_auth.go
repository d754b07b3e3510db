package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepforge/prepforge-backend/internal/response"
	"github.com/prepforge/prepforge-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for channel token claims.
	ContextKeyClaims = "claims"
)

// RequireChannelToken validates a channel capability token from the query
// param ?token=... and checks that it is scoped to the attempt in the path.
// Query-param transport because browser WebSocket clients cannot set
// headers; rejection happens before the upgrade.
func RequireChannelToken(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.ValidateChannelToken(tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrTokenExpired) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		// A token only opens the channel of the attempt it was minted for.
		if claims.AttemptID != c.Param("id") {
			response.AbortFail(c, http.StatusForbidden, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetChannelClaims retrieves the channel claims from the Gin context.
func GetChannelClaims(c *gin.Context) *service.ChannelClaims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.ChannelClaims)
	if !ok {
		return nil
	}
	return claims
}
