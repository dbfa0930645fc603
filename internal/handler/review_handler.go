package handler

import (
	"net/http"

	"insurance-backend/internal/middleware"
	"insurance-backend/internal/model"
	"insurance-backend/internal/service"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	reviewService service.ReviewService
}

// NewReviewHandler sets up the routing dependencies for review endpoints
func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ReviewHandler) RegisterRoutes(router *gin.RouterGroup) {
	proposals := router.Group("/proposals")
	{
		proposals.POST("/:id/review", middleware.RequireRole(model.RoleReviewer, model.RoleAdmin), h.Review)
		proposals.POST("/:id/refund", middleware.RequireRole(model.RoleAdmin), h.AdvanceRefund)
	}
}

// Review handles POST /proposals/:id/review
// @Summary      Review a proposal
// @Description  Applies approve, reject or reupload_required to a paid proposal awaiting review
// @Tags         review
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Proposal ID"
// @Param        payload  body      service.ReviewRequest  true  "Review Action Payload"
// @Success      200      {object}  response.Response{data=service.ReviewResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /proposals/{id}/review [post]
func (h *ReviewHandler) Review(c *gin.Context) {
	reviewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.reviewService.Review(c.Request.Context(), reviewerID, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// AdvanceRefund handles POST /proposals/:id/refund
// @Summary      Advance a refund
// @Description  Moves the refund of a rejected proposal to its next state (processed, then closed)
// @Tags         review
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Proposal ID"
// @Success      200  {object}  response.Response{data=service.ReviewResponse}
// @Failure      409  {object}  response.Response
// @Router       /proposals/{id}/refund [post]
func (h *ReviewHandler) AdvanceRefund(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	res, err := h.reviewService.AdvanceRefund(c.Request.Context(), adminID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
