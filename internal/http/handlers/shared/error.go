package shared

import (
	"github.com/pixgo-gateway/internal/http/response"
	"github.com/pixgo-gateway/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog logger carrying the request_id
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError writes the envelope and logs the cause when there is one
func RespondError(c *gin.Context, status int, code, msg string, err error) {
	RespondAppError(c, response.WrapError(status, code, msg, err))
}

// RespondAppError writes a prepared AppError
func RespondAppError(c *gin.Context, appErr *response.AppError) {
	if appErr.Err != nil {
		RequestLog(c).Errorw("handler_error",
			"status", appErr.Status,
			"code", appErr.Code,
			"message", appErr.Message,
			"path", c.Request.URL.Path,
			"error", appErr.Err,
		)
	}
	response.AbortWithError(c, appErr)
}
