package handler

import (
	"net/http"
	"strconv"

	"insurance-backend/internal/middleware"
	"insurance-backend/internal/model"
	"insurance-backend/internal/service"
	"insurance-backend/pkg/pagination"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PolicyHandler struct {
	policyService service.PolicyService
}

// NewPolicyHandler sets up the routing dependencies for policy endpoints
func NewPolicyHandler(policyService service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policyService: policyService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *PolicyHandler) RegisterRoutes(router *gin.RouterGroup) {
	policies := router.Group("/policies")
	{
		policies.POST("/issue", middleware.RequireRole(model.RoleAdmin), h.Issue)
		policies.POST("/:id/renew", middleware.RequireRole(model.RoleAdmin), h.Renew)
		policies.GET("/mine", middleware.RequireRole(model.RoleCustomer), h.ListMine)
	}
}

// Issue handles POST /policies/issue
// @Summary      Issue a policy
// @Description  Issues the policy for an approved, paid proposal and assigns the final policy number
// @Tags         policies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.IssuePolicyRequest  true  "Issue Policy Payload"
// @Success      201      {object}  response.Response{data=service.IssuePolicyResponse}
// @Failure      409      {object}  response.Response
// @Router       /policies/issue [post]
func (h *PolicyHandler) Issue(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.IssuePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.policyService.Issue(c.Request.Context(), adminID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Renew handles POST /policies/:id/renew
// @Summary      Renew a motor policy
// @Description  Supersedes an expiring or expired motor policy with a fresh one-year term
// @Tags         policies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Policy ID"
// @Success      201  {object}  response.Response{data=service.IssuePolicyResponse}
// @Failure      409  {object}  response.Response
// @Router       /policies/{id}/renew [post]
func (h *PolicyHandler) Renew(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	policyID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid policy id"))
		return
	}

	res, err := h.policyService.Renew(c.Request.Context(), adminID, uint(policyID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListMine handles GET /policies/mine
// @Summary      List my policies
// @Description  Retrieves the authenticated customer's policies, newest first
// @Tags         policies
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Router       /policies/mine [get]
func (h *PolicyHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	policies, total, err := h.policyService.ListMyPolicies(c.Request.Context(), userID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"policies": policies,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}
