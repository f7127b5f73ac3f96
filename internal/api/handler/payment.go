package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
	"github.com/qs3c/ainexus_server/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// VerifyRazorpayPayment 校验 Razorpay 支付凭证
// POST /api/v1/razorpay/verify-payment
func (h *PaymentHandler) VerifyRazorpayPayment(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, service.ErrMissingFields.Error())
		return
	}

	resp, err := h.paymentService.VerifyRazorpayPayment(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields),
			errors.Is(err, service.ErrInvalidPaymentSignature),
			errors.Is(err, service.ErrInvalidPlan):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, service.ErrVerificationFailed.Error())
		}
		return
	}

	response.Success(c, resp)
}
