package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/admissions-api/internal/service"
	"github.com/campushq/admissions-api/pkg/response"
)

// DashboardHandler serves cached aggregate views for the admin dashboard.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Dashboard statistics
// @Description Returns funnel, roster and revenue aggregates. Served from cache when warm.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, cached, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"cache": cacheState(cached)})
}

// RecentActivity godoc
// @Summary Recent activity feed
// @Description Returns the latest enquiries and admissions for the dashboard feed
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/recent-activities [get]
func (h *DashboardHandler) RecentActivity(c *gin.Context) {
	activity, cached, err := h.dashboard.RecentActivity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil, map[string]interface{}{"cache": cacheState(cached)})
}

func cacheState(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
