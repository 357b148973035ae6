package httputil

import "github.com/gin-gonic/gin"

// Gin context keys populated by the server middleware and read by handlers.
const (
	// ContextActorKey holds the authenticated actor (a mutation domain Actor).
	ContextActorKey = "actor"

	// ContextCorrelationKey holds the correlation id propagated from the
	// X-Correlation-Id request header.
	ContextCorrelationKey = "correlationId"
)

// CorrelationID returns the correlation id stored on the request context, or
// an empty string when the request carried none.
func CorrelationID(c *gin.Context) string {
	return c.GetString(ContextCorrelationKey)
}
