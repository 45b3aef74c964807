package public

import (
	"io"
	"net/http"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/http/response"
	"github.com/pixgo-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20

// ProviderWebhook POST /webhook/:provider
func (h *Handler) ProviderWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidPayload, "Invalid payload")
		return
	}
	result, err := h.PaymentService.HandleWebhook(c.Request.Context(), service.WebhookInput{
		Provider:    c.Param("provider"),
		Body:        body,
		EventHeader: c.GetHeader(constants.HeaderWebhookEvent),
		Timestamp:   c.GetHeader(constants.HeaderWebhookTimestamp),
		Signature:   c.GetHeader(constants.HeaderWebhookSignature),
	})
	if err != nil {
		respondWithMappedError(c, err, webhookErrorRules)
		return
	}
	response.Success(c, result)
}
