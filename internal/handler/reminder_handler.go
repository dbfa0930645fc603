package handler

import (
	"net/http"
	"os"

	"insurance-backend/internal/middleware"
	"insurance-backend/internal/model"
	"insurance-backend/internal/service"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReminderHandler struct {
	reminderService service.ReminderService
}

// NewReminderHandler sets up the routing dependencies for the scheduled scan endpoints
func NewReminderHandler(reminderService service.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup.
// Every scan is idempotent, so an aggressive scheduler is harmless.
func (h *ReminderHandler) RegisterRoutes(router *gin.RouterGroup) {
	scans := router.Group("/scans", cronOrAdmin())
	{
		scans.POST("/run", h.RunAll)
		scans.POST("/unpaid-reminders", h.ScanUnpaid)
		scans.POST("/lapse-unpaid", h.LapseUnpaid)
		scans.POST("/expiry-milestones", h.ScanExpiry)
		scans.POST("/expire-policies", h.ExpirePolicies)
	}
}

// cronOrAdmin admits either the external scheduler (shared token header) or
// an authenticated admin.
func cronOrAdmin() gin.HandlerFunc {
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	return func(c *gin.Context) {
		cronToken := os.Getenv("CRON_TOKEN")
		if cronToken != "" && c.GetHeader("X-Cron-Token") == cronToken {
			c.Next()
			return
		}
		adminOnly(c)
	}
}

// RunAll handles POST /scans/run
// @Summary      Run all scheduled scans
// @Description  Runs the unpaid reminder, lapse, expiry milestone and policy expiry scans once
// @Tags         scans
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ScanSummary}
// @Failure      500  {object}  response.Response
// @Router       /scans/run [post]
func (h *ReminderHandler) RunAll(c *gin.Context) {
	summary, err := h.reminderService.RunAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// ScanUnpaid handles POST /scans/unpaid-reminders
// @Summary      Send unpaid payment reminders
// @Tags         scans
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Router       /scans/unpaid-reminders [post]
func (h *ReminderHandler) ScanUnpaid(c *gin.Context) {
	count, err := h.reminderService.ScanUnpaidProposals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]int{"enqueued": count}))
}

// LapseUnpaid handles POST /scans/lapse-unpaid
// @Summary      Lapse unpaid proposals past their reservation window
// @Tags         scans
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Router       /scans/lapse-unpaid [post]
func (h *ReminderHandler) LapseUnpaid(c *gin.Context) {
	count, err := h.reminderService.ExpireUnpaidProposals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]int{"lapsed": count}))
}

// ScanExpiry handles POST /scans/expiry-milestones
// @Summary      Send policy expiry milestone reminders
// @Tags         scans
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Router       /scans/expiry-milestones [post]
func (h *ReminderHandler) ScanExpiry(c *gin.Context) {
	count, err := h.reminderService.ScanPolicyExpiryMilestones(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]int{"enqueued": count}))
}

// ExpirePolicies handles POST /scans/expire-policies
// @Summary      Expire policies past their end date
// @Tags         scans
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Router       /scans/expire-policies [post]
func (h *ReminderHandler) ExpirePolicies(c *gin.Context) {
	count, err := h.reminderService.ExpirePolicies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]int{"expired": count}))
}
