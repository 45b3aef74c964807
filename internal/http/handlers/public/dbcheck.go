package public

import (
	"net/http"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/http/handlers/shared"
	"github.com/pixgo-gateway/internal/http/response"

	"github.com/gin-gonic/gin"
)

// TestDB GET /test-db
func (h *Handler) TestDB(c *gin.Context) {
	status, err := h.StoreProbe.Probe(c.Request.Context())
	if err != nil {
		shared.RequestLog(c).Errorw("store_probe_failed", "dialect", status.Dialect, "error", err)
		response.Error(c, http.StatusInternalServerError, err.Error(), "Database connection failed")
		return
	}
	msg := "Database connection OK"
	if !status.TableExists {
		msg += " (table " + constants.PaymentsTableName + " not found)"
	}
	response.SuccessWithMsg(c, msg, status)
}
