package handler

import (
	"net/http"

	"insurance-backend/internal/middleware"
	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"
	"insurance-backend/internal/service"
	"insurance-backend/pkg/pagination"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProposalHandler struct {
	proposalService service.ProposalService
}

// NewProposalHandler sets up the routing dependencies for proposal endpoints
func NewProposalHandler(proposalService service.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposalService: proposalService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ProposalHandler) RegisterRoutes(router *gin.RouterGroup) {
	proposals := router.Group("/proposals")
	{
		proposals.POST("/motor", middleware.RequireRole(model.RoleCustomer), h.SubmitMotor)
		proposals.POST("/travel", middleware.RequireRole(model.RoleCustomer), h.SubmitTravel)
		proposals.GET("/mine", middleware.RequireRole(model.RoleCustomer), h.ListMine)
		proposals.GET("/:id", middleware.RequireRole(model.RoleCustomer, model.RoleReviewer, model.RoleAdmin), h.GetByID)
		proposals.POST("/:id/documents", middleware.RequireRole(model.RoleCustomer), h.ResubmitDocs)

		proposals.GET("/review-queue", middleware.RequireRole(model.RoleReviewer, model.RoleAdmin), h.ListReviewQueue)
	}
}

// SubmitMotor handles POST /proposals/motor
// @Summary      Submit a motor proposal
// @Description  Validates the vehicle details, quotes the premium and stores the proposal awaiting payment
// @Tags         proposals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitMotorProposalRequest  true  "Motor Proposal Payload"
// @Success      201      {object}  response.Response{data=service.SubmitProposalResponse}
// @Failure      400      {object}  response.Response
// @Router       /proposals/motor [post]
func (h *ProposalHandler) SubmitMotor(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.SubmitMotorProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.proposalService.SubmitMotor(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// SubmitTravel handles POST /proposals/travel
// @Summary      Submit a travel proposal
// @Description  Validates the trip details, quotes the slab premium and stores the proposal awaiting payment
// @Tags         proposals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitTravelProposalRequest  true  "Travel Proposal Payload"
// @Success      201      {object}  response.Response{data=service.SubmitProposalResponse}
// @Failure      400      {object}  response.Response
// @Router       /proposals/travel [post]
func (h *ProposalHandler) SubmitTravel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.SubmitTravelProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.proposalService.SubmitTravel(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListMine handles GET /proposals/mine
// @Summary      List my proposals
// @Description  Retrieves the authenticated customer's proposals with optional kind/status filters
// @Tags         proposals
// @Produce      json
// @Security     BearerAuth
// @Param        kind           query     string  false  "Proposal kind filter"
// @Param        review_status  query     string  false  "Review status filter"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Router       /proposals/mine [get]
func (h *ProposalHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	filter := repository.ProposalFilter{
		Kind:         c.Query("kind"),
		ReviewStatus: c.Query("review_status"),
		Page:         params.Page,
		Limit:        params.Limit,
	}

	proposals, total, err := h.proposalService.ListMyProposals(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"proposals": proposals,
		"total":     total,
		"page":      params.Page,
		"limit":     params.Limit,
	}))
}

// ListReviewQueue handles GET /proposals/review-queue
// @Summary      List the review queue
// @Description  Retrieves paid proposals awaiting review, for back-office staff
// @Tags         proposals
// @Produce      json
// @Security     BearerAuth
// @Param        kind   query     string  false  "Proposal kind filter"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Router       /proposals/review-queue [get]
func (h *ProposalHandler) ListReviewQueue(c *gin.Context) {
	params := pagination.Parse(c)
	filter := repository.ProposalFilter{
		Kind:  c.Query("kind"),
		Page:  params.Page,
		Limit: params.Limit,
	}

	proposals, total, err := h.proposalService.ListReviewQueue(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"proposals": proposals,
		"total":     total,
		"page":      params.Page,
		"limit":     params.Limit,
	}))
}

// GetByID handles GET /proposals/:id
// @Summary      Get proposal by ID
// @Description  Fetch a single proposal; customers only see their own
// @Tags         proposals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Proposal ID"
// @Success      200  {object}  response.Response{data=service.ProposalResponse}
// @Failure      404  {object}  response.Response
// @Router       /proposals/{id} [get]
func (h *ProposalHandler) GetByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	role, _ := c.Get("userRole")
	staff := role == model.RoleReviewer || role == model.RoleAdmin

	proposal, err := h.proposalService.GetProposal(c.Request.Context(), userID, c.Param("id"), staff)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, proposal))
}

// ResubmitDocs handles POST /proposals/:id/documents
// @Summary      Resubmit requested documents
// @Description  Attaches fresh document references and returns the proposal to the review queue
// @Tags         proposals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Proposal ID"
// @Param        payload  body      service.ResubmitDocsRequest true  "Document paths"
// @Success      200      {object}  response.Response{data=service.ProposalResponse}
// @Failure      409      {object}  response.Response
// @Router       /proposals/{id}/documents [post]
func (h *ProposalHandler) ResubmitDocs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.ResubmitDocsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	proposal, err := h.proposalService.ResubmitDocs(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, proposal))
}
