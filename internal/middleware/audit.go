package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit records an audit log entry after each successful request, e.g. exports and
// manual greeting runs that leave no other trace in the database.
func Audit(repo auditRecorder, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if repo == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if auth, ok := AuthFromContext(c); ok && auth.UserID != "" {
			userID := auth.UserID
			entry.UserID = &userID
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"query":   c.Request.URL.RawQuery,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		if err := repo.CreateAuditLog(context.WithoutCancel(c.Request.Context()), entry); err != nil {
			logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
