package public

import (
	"time"

	"github.com/pixgo-gateway/internal/http/response"

	"github.com/gin-gonic/gin"
)

// Health GET /
func (h *Handler) Health(c *gin.Context) {
	response.SuccessWithMsg(c, "PixGo API is running", gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
