// Package http provides the API server, its router and request middleware.
package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kiwimedia/agentdesk/internal/httputil"
	mutationDomain "github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// Headers set by the authentication gateway in front of this service.
const (
	userEmailHeader = "X-User-Email"
	userRolesHeader = "X-User-Roles"
)

// correlationIDHeader carries the caller-supplied correlation id across
// service boundaries.
const correlationIDHeader = "X-Correlation-Id"

// CustomLoggerMiddleware logs one structured line per request.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("request_id", requestid.Get(c)),
		)
	}
}

// CorrelationMiddleware propagates the caller's correlation id, generating a
// fresh one when the request carries none. The id is stored on the context
// for handlers and echoed back on the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationIDHeader)
		if correlationID == "" {
			correlationID = uuid.Must(uuid.NewV7()).String()
		}

		c.Set(httputil.ContextCorrelationKey, correlationID)
		c.Header(correlationIDHeader, correlationID)

		c.Next()
	}
}

// ActorMiddleware resolves the authenticated actor from the identity headers
// set by the authentication gateway. Requests without an identity are
// rejected before reaching any handler.
func ActorMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetHeader(userEmailHeader)
		if email == "" {
			logger.Warn("request without identity headers",
				slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.ErrorResponse{
				Error:   "unauthorized",
				Message: "Authentication is required",
			})
			return
		}

		c.Set(httputil.ContextActorKey, mutationDomain.Actor{
			User:  email,
			Roles: parseRoles(c.GetHeader(userRolesHeader)),
		})

		c.Next()
	}
}

// parseRoles splits the comma-separated roles header and trims whitespace.
func parseRoles(header string) []string {
	if header == "" {
		return nil
	}

	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			roles = append(roles, trimmed)
		}
	}

	return roles
}
