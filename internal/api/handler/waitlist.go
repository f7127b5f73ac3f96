package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
	"github.com/qs3c/ainexus_server/internal/service"
)

type WaitlistHandler struct {
	waitlistService *service.WaitlistService
}

func NewWaitlistHandler(waitlistService *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{
		waitlistService: waitlistService,
	}
}

// Join 加入候补名单
// POST /api/v1/waitlist
func (h *WaitlistHandler) Join(c *gin.Context) {
	var req dto.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, service.ErrMissingFields.Error())
		return
	}

	resp, err := h.waitlistService.Join(c.Request.Context(), &req, service.ClientInfo{
		IPAddress: clientIP(c),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields), errors.Is(err, service.ErrInvalidEmail):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrAlreadyOnWaitlist):
			response.DuplicateError(c, err.Error())
		default:
			response.ServerError(c, service.ErrJoinFailed.Error())
		}
		return
	}

	response.Success(c, resp)
}

// Stats 候补名单统计（管理员）
// GET /api/v1/waitlist/stats
func (h *WaitlistHandler) Stats(c *gin.Context) {
	stats, err := h.waitlistService.Stats()
	if err != nil {
		response.ServerError(c, "Failed to fetch waitlist stats")
		return
	}

	response.Success(c, stats)
}

// clientIP 优先取代理转发的第一跳
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	return c.ClientIP()
}
