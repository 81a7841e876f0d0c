package middleware

import (
	"github.com/gin-gonic/gin"

	"txboundary/internal/core/apperror"
	"txboundary/internal/infrastructure/http/v1/dto"
	"txboundary/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		writeError(c, c.Errors.Last().Err)
	}
}

// writeError resolves err to an AppError and writes it. Unknown errors and
// transaction failures are logged with their cause and reported generically.
func writeError(c *gin.Context, err error) {
	appErr := apperror.Resolve(err)
	if appErr.Err != nil {
		logger.Error(c.Request.Context(), "request error",
			"code", appErr.Code,
			"cause", appErr.Err,
		)
	}

	details := appErr.Details
	if appErr.Code == apperror.CodeInternal || appErr.Code == apperror.CodeTransaction {
		details = map[string]any{"request_id": c.GetString("request_id")}
	}

	c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: details,
	})
}
