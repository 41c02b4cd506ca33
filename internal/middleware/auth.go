package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
)

const actorKey = "actor"

// TokenValidator turns a bearer token into the calling actor.
type TokenValidator interface {
	ValidateToken(token string) (domain.Actor, error)
}

// Auth rejects requests without a valid bearer token and stores the caller
// on the context for ActorFrom.
func Auth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		actor, err := v.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRoles aborts with 403 unless the caller has one of roles.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not allowed"})
	}
}

// ActorFrom returns the authenticated caller, or the zero Actor.
func ActorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(domain.Actor); ok {
			return actor
		}
	}
	return domain.Actor{}
}
