package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/pet-ledger/internal/domain"
)

const (
	// ActorHeader names the caller recorded in audit records.
	ActorHeader = "X-Actor"
	// AnonymousActor is used when the request carries no actor.
	AnonymousActor = "anonymous"
)

// ActorMiddleware stores the request actor in the request context.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			actor = AnonymousActor
		}

		c.Request = c.Request.WithContext(domain.ContextWithActor(c.Request.Context(), actor))
		c.Next()
	}
}
