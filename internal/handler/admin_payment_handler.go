package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modaline/store-api/internal/repository"
	"github.com/modaline/store-api/internal/utils"
)

// AdminPaymentHandler handles the admin audit-query HTTP endpoints.
type AdminPaymentHandler struct {
	paymentRepo *repository.PaymentRepository
}

// NewAdminPaymentHandler constructs an AdminPaymentHandler.
func NewAdminPaymentHandler(paymentRepo *repository.PaymentRepository) *AdminPaymentHandler {
	return &AdminPaymentHandler{paymentRepo: paymentRepo}
}

// ListPayments handles GET /v1/admin/payments
func (h *AdminPaymentHandler) ListPayments(c *gin.Context) {
	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	limit := 50
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	sessions, err := h.paymentRepo.ListSessions(limit, (page-1)*limit)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve payments")
		return
	}
	total, err := h.paymentRepo.CountSessions()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve payments")
		return
	}

	utils.SuccessWithPagination(c, 200, "Payments retrieved", sessions, page, limit, total)
}

// GetPaymentRecords handles GET /v1/admin/payments/:conversationId/records
func (h *AdminPaymentHandler) GetPaymentRecords(c *gin.Context) {
	conversationID := c.Param("conversationId")

	session, err := h.paymentRepo.GetSessionByConversationID(conversationID)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve payment")
		return
	}
	if session == nil {
		utils.Error(c, 404, "SESSION_NOT_FOUND", "Payment session not found")
		return
	}

	records, err := h.paymentRepo.ListTransactionRecords(conversationID)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve records")
		return
	}
	events, err := h.paymentRepo.ListDebugEvents(conversationID, 200)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve events")
		return
	}

	utils.Success(c, 200, "Payment records retrieved", gin.H{
		"session": session,
		"records": records,
		"events":  events,
	})
}
