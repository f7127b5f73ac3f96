package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
	"github.com/qs3c/ainexus_server/internal/service"
)

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

// CreateStripeCheckout 创建 Stripe Checkout 会话
// POST /api/v1/stripe/create-checkout
func (h *CheckoutHandler) CreateStripeCheckout(c *gin.Context) {
	var req dto.StripeCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, service.ErrMissingFields.Error())
		return
	}

	resp, err := h.checkoutService.CreateStripeCheckout(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields), errors.Is(err, service.ErrInvalidPlan):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, service.ErrCheckoutFailed.Error())
		}
		return
	}

	response.Success(c, resp)
}

// CreateRazorpayOrder 创建 Razorpay 订单
// POST /api/v1/razorpay/create-order
func (h *CheckoutHandler) CreateRazorpayOrder(c *gin.Context) {
	var req dto.RazorpayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, service.ErrMissingFields.Error())
		return
	}

	resp, err := h.checkoutService.CreateRazorpayOrder(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields),
			errors.Is(err, service.ErrInvalidPlan),
			errors.Is(err, service.ErrAmountMismatch):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, service.ErrOrderFailed.Error())
		}
		return
	}

	response.Success(c, resp)
}
