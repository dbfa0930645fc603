package handler

import (
	"net/http"

	"insurance-backend/internal/middleware"
	"insurance-backend/internal/model"
	"insurance-backend/internal/service"
	"insurance-backend/pkg/pagination"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

// NewNotificationHandler sets up the routing dependencies for notification endpoints
func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications",
		middleware.RequireRole(model.RoleCustomer, model.RoleReviewer, model.RoleAdmin))
	{
		notifications.GET("", h.ListMine)
		notifications.POST("/:id/read", h.MarkRead)
	}
}

// ListMine handles GET /notifications
// @Summary      List my notifications
// @Description  Retrieves the authenticated user's in-app notifications, newest first
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        unread  query     bool  false  "Only unread notifications"
// @Param        page    query     int   false  "Page number (default 1)"
// @Param        limit   query     int   false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Router       /notifications [get]
func (h *NotificationHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := h.notificationService.ListMyNotifications(c.Request.Context(), userID, unreadOnly, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"total":         total,
		"page":          params.Page,
		"limit":         params.Limit,
	}))
}

// MarkRead handles POST /notifications/:id/read
// @Summary      Mark a notification read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Notification ID"
// @Success      200  {object}  response.Response
// @Router       /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Notification marked read"))
}
