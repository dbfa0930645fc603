package handler

import (
	"net/http"

	"insurance-backend/internal/middleware"
	"insurance-backend/internal/model"
	"insurance-backend/internal/service"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	statsService service.StatsService
}

// NewStatsHandler sets up the routing dependencies for dashboard endpoints
func NewStatsHandler(statsService service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *StatsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", middleware.RequireRole(model.RoleReviewer, model.RoleAdmin), h.Dashboard)
}

// Dashboard handles GET /dashboard
// @Summary      Back-office dashboard
// @Description  Proposal counts by kind and review status, premium collected, queue depth and active policy count
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.DashboardResponse}
// @Failure      500  {object}  response.Response
// @Router       /dashboard [get]
func (h *StatsHandler) Dashboard(c *gin.Context) {
	res, err := h.statsService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
