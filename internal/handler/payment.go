package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
)

// UpdatePayment handles PUT /api/bookings/:id/payment
func (h *BookingHandler) UpdatePayment(c *gin.Context) {
	var req PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.PaymentStatus == "" {
		badRequest(c, "paymentStatus is required")
		return
	}

	b, err := h.bookingService.UpdatePaymentStatus(c.Request.Context(), actor(c), c.Param("id"), domain.PaymentStatus(req.PaymentStatus))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(b))
}

// Unwaive handles POST /api/bookings/:id/unwaive. Leaving WAIVED is its own
// audited action and needs a reason.
func (h *BookingHandler) Unwaive(c *gin.Context) {
	var req PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	b, err := h.bookingService.Unwaive(c.Request.Context(), actor(c), c.Param("id"), domain.PaymentStatus(req.PaymentStatus), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(b))
}
