package public

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/http/handlers/shared"
	"github.com/pixgo-gateway/internal/http/response"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

const maxCreateBodyBytes = 1 << 20

// createdPaymentView create response data
type createdPaymentView struct {
	ID         string       `json:"id"`
	PaymentID  string       `json:"payment_id"`
	ExternalID string       `json:"external_id"`
	Amount     models.Money `json:"amount"`
	Status     string       `json:"status"`
	QRCode     string       `json:"qr_code"`
	QRImageURL string       `json:"qr_image_url"`
	ExpiresAt  *time.Time   `json:"expires_at"`
}

func newCreatedPaymentView(p *models.PixPayment) createdPaymentView {
	return createdPaymentView{
		ID:         p.ID,
		PaymentID:  p.PaymentID,
		ExternalID: p.ExternalID,
		Amount:     p.Amount,
		Status:     p.Status,
		QRCode:     p.QRCode,
		QRImageURL: p.QRImageURL,
		ExpiresAt:  p.ExpiresAt,
	}
}

// CreatePayment POST /api/create-payment
func (h *Handler) CreatePayment(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCreateBodyBytes))
	if err != nil {
		respondWithMappedError(c, service.ErrInvalidJSON, paymentErrorRules)
		return
	}
	input, err := service.DecodeCreatePaymentInput(raw)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules)
		return
	}
	if key := strings.TrimSpace(c.GetHeader(constants.HeaderIdempotencyKey)); key != "" {
		input.IdempotencyKey = key
	}
	input.Scheme = shared.RequestScheme(c)
	input.Host = c.Request.Host

	result, err := h.PaymentService.CreatePayment(c.Request.Context(), input)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules)
		return
	}
	view := newCreatedPaymentView(result.Payment)
	if result.Replayed {
		response.SuccessWithMsg(c, "Payment already created", view)
		return
	}
	response.Created(c, "Payment created successfully", view)
}

// GetPayment GET /api/payment/:id
func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules)
		return
	}
	response.Success(c, payment)
}

// GetPaymentStatus GET /api/payment/:id/status
func (h *Handler) GetPaymentStatus(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	result, err := h.PaymentService.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules)
		return
	}
	response.Success(c, result)
}

// GetPaymentQRCode GET /api/payment/:id/qrcode
func (h *Handler) GetPaymentQRCode(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	size := cast.ToInt(c.Query("size"))
	png, err := h.PaymentService.RenderQRCode(c.Request.Context(), id, size)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// paymentIDParam rejects identifiers outside the accepted charset with a route 404
func paymentIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !shared.ValidPaymentID(id) {
		response.NotFound(c, "Route not found: "+c.Request.URL.Path)
		c.Abort()
		return "", false
	}
	return id, true
}
