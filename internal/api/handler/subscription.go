package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
	"github.com/qs3c/ainexus_server/internal/service"
)

type SubscriptionHandler struct {
	quotaService *service.QuotaService
}

func NewSubscriptionHandler(quotaService *service.QuotaService) *SubscriptionHandler {
	return &SubscriptionHandler{
		quotaService: quotaService,
	}
}

// Status 查询钱包订阅状态
// GET /api/v1/subscription/status?wallet=0x...
func (h *SubscriptionHandler) Status(c *gin.Context) {
	status, err := h.quotaService.GetStatus(c.Query("wallet"))
	if err != nil {
		if errors.Is(err, service.ErrWalletRequired) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, service.ErrStatusFailed.Error())
		return
	}

	response.Success(c, status)
}

// Upload 上传 agent 时扣减一次配额
// POST /api/v1/subscription/upload
func (h *SubscriptionHandler) Upload(c *gin.Context) {
	var req dto.ConsumeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, service.ErrMissingFields.Error())
		return
	}

	resp, err := h.quotaService.Consume(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrNoActiveSubscription),
			errors.Is(err, service.ErrSubscriptionExpired),
			errors.Is(err, service.ErrQuotaExhausted):
			response.QuotaError(c, err.Error())
		default:
			response.ServerError(c, service.ErrUploadFailed.Error())
		}
		return
	}

	response.Success(c, resp)
}
