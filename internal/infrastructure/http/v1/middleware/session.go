package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"txboundary/internal/infrastructure/storage/postgres"
	"txboundary/pkg/logger"
)

// Session binds a database session to the request context, so every
// transaction boundary crossed while serving the request shares it.
// A transaction still open when the handler returns is rolled back.
func Session(txm *postgres.TxManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := txm.Bind(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			s := postgres.SessionFromContext(ctx)
			if s == nil || !s.IsActive() {
				return
			}
			logger.Warn(ctx, "transaction left open by request, rolling back", "session", s.String())
			if err := s.Rollback(context.WithoutCancel(ctx)); err != nil {
				logger.Error(ctx, "rollback failed", "error", err)
			}
		}()

		c.Next()
	}
}
