package handler

import (
	"log"
	"net/http"

	"insurance-backend/internal/middleware"
	"insurance-backend/internal/model"
	"insurance-backend/internal/service"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler sets up the routing dependencies for payment endpoints
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/payments")
	{
		payments.POST("/initiate", middleware.RequireRole(model.RoleCustomer), h.Initiate)
	}

	// Server-to-server webhook from the payment gateway; authenticated by
	// signature, not by JWT.
	router.POST("/payments/webhook", h.Webhook)
}

// Initiate handles POST /payments/initiate
// @Summary      Initiate a premium payment
// @Description  Creates a pending payment for a proposal and returns the gateway checkout parameters
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.InitiatePaymentRequest  true  "Payment Initiation Payload"
// @Success      201      {object}  response.Response{data=service.InitiatePaymentResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /payments/initiate [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.paymentService.InitiatePayment(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Webhook handles POST /payments/webhook
//
// The gateway retries on any non-200, so this endpoint always acknowledges
// once the payload has been read; processing errors are logged and resolved
// through the audit trail rather than a retry storm.
// @Summary      Payment gateway webhook
// @Description  Receives the signed form-encoded payment result from the gateway
// @Tags         payments
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		log.Printf("webhook: failed to parse form: %v", err)
		c.JSON(http.StatusOK, response.Success(http.StatusOK, "ignored"))
		return
	}

	form := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			form[key] = values[0]
		}
	}

	if err := h.paymentService.HandleCallback(c.Request.Context(), form); err != nil {
		log.Printf("webhook: callback rejected: %v", err)
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "ok"))
}
