package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/modaline/store-api/internal/service"
	"github.com/modaline/store-api/internal/utils"
	"github.com/modaline/store-api/pkg/iyzico"
)

// PaymentHandler handles the storefront 3DS payment endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Initiate3DS handles POST /v1/payments/3ds/initialize
func (h *PaymentHandler) Initiate3DS(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result := h.payments.Initiate3DS(c.Request.Context(), &req)
	if !result.Success {
		status := 402
		switch result.ErrorCode {
		case utils.ErrInvalidAmount.Error(), utils.ErrMissingCard.Error():
			status = 400
		}
		utils.Error(c, status, result.ErrorCode, result.ErrorMessage)
		return
	}

	// The redirect artifact is being handed to the browser with this response.
	h.payments.MarkRedirected(c.Request.Context(), result.ConversationID)

	utils.Success(c, 201, "Payment initialized", result)
}

// Callback handles POST /v1/payments/3ds/callback, the browser's return from
// the issuing bank. The gateway posts form-encoded fields here.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var payload iyzico.CallbackPayload
	if err := c.ShouldBind(&payload); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid callback payload")
		return
	}

	result := h.payments.HandleCallback(c.Request.Context(), &payload)
	if result.ErrorCode == "SESSION_NOT_FOUND" {
		utils.Error(c, 404, result.ErrorCode, result.ErrorMessage)
		return
	}

	// Terminal sessions also land here; the callback is acknowledged either way.
	utils.Success(c, 200, "Callback recorded", result)
}

// Complete3DS handles POST /v1/payments/3ds/complete
func (h *PaymentHandler) Complete3DS(c *gin.Context) {
	var req struct {
		PaymentID string `json:"paymentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "paymentId is required")
		return
	}

	result := h.payments.Complete3DS(c.Request.Context(), req.PaymentID)
	if !result.Success {
		status := 402
		if result.ErrorCode == "SESSION_NOT_FOUND" {
			status = 404
		}
		utils.Error(c, status, result.ErrorCode, result.ErrorMessage)
		return
	}

	utils.Success(c, 200, "Payment completed", result)
}

// GetStatus handles GET /v1/payments/:paymentId/status
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	paymentID := c.Param("paymentId")
	token := c.Query("token")
	conversationID := c.Query("conversationId")

	result := h.payments.CheckStatus(c.Request.Context(), paymentID, token, conversationID)
	if !result.Success {
		utils.Error(c, 402, result.ErrorCode, result.ErrorMessage)
		return
	}

	utils.Success(c, 200, "Payment status retrieved", result)
}

// TestConnection handles GET /v1/payments/test-connection
func (h *PaymentHandler) TestConnection(c *gin.Context) {
	result := h.payments.TestConnection(c.Request.Context())
	if !result.Success {
		utils.Error(c, 502, result.ErrorCode, result.ErrorMessage)
		return
	}

	utils.Success(c, 200, "Gateway connection verified", result)
}
