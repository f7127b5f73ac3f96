package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
	"github.com/qs3c/ainexus_server/internal/pkg/stripe"
	"github.com/qs3c/ainexus_server/internal/service"
)

const (
	maxWebhookBodySize = 64 << 10

	headerRazorpaySignature = "X-Razorpay-Signature"
	headerRazorpayEventID   = "X-Razorpay-Event-Id"
)

type WebhookHandler struct {
	webhookService *service.WebhookService
}

func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// Stripe 接收 Stripe 事件，签名基于原始 body
// POST /api/v1/stripe/webhook
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}

	err := h.webhookService.HandleStripe(c.Request.Context(), payload, c.GetHeader(stripe.SignatureHeader))
	if err != nil {
		writeWebhookError(c, err)
		return
	}

	response.Success(c, dto.WebhookAck{Received: true})
}

// Razorpay 接收 Razorpay 事件
// POST /api/v1/razorpay/webhook
func (h *WebhookHandler) Razorpay(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}

	err := h.webhookService.HandleRazorpay(c.Request.Context(), payload,
		c.GetHeader(headerRazorpaySignature), c.GetHeader(headerRazorpayEventID))
	if err != nil {
		writeWebhookError(c, err)
		return
	}

	response.Success(c, dto.WebhookAck{Received: true})
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLargeError(c, "")
			return nil, false
		}
		response.ParamError(c, "")
		return nil, false
	}
	return payload, true
}

func writeWebhookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingStripeSignature), errors.Is(err, service.ErrInvalidSignature):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, service.ErrWebhookFailed.Error())
	}
}
