package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/plan"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
)

type PlansHandler struct {
	catalog  *plan.Catalog
	currency string
}

func NewPlansHandler(catalog *plan.Catalog, currency string) *PlansHandler {
	if currency == "" {
		currency = "INR"
	}
	return &PlansHandler{catalog: catalog, currency: currency}
}

// List 获取套餐目录
// GET /api/v1/plans
func (h *PlansHandler) List(c *gin.Context) {
	entries := h.catalog.All()
	plans := make([]dto.PlanInfo, len(entries))

	for i, p := range entries {
		plans[i] = dto.PlanInfo{
			PlanID:        p.PlanID,
			BillingPeriod: p.BillingPeriod,
			Price:         p.Price,
			Currency:      h.currency,
			UploadQuota:   p.UploadQuota,
			StripePriceID: p.StripePriceID,
		}
	}

	response.Success(c, plans)
}
