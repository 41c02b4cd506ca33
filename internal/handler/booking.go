package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
	checkInService *service.CheckInService
	receiptService *service.ReceiptService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService, checkInService *service.CheckInService, receiptService *service.ReceiptService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		checkInService: checkInService,
		receiptService: receiptService,
	}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	TripInstanceID string `json:"tripInstanceId"`
	GuestID        string `json:"guestId"`
	GuestName      string `json:"guestName"`
	GuestEmail     string `json:"guestEmail"`
	FromSeq        int    `json:"fromSeq"`
	ToSeq          int    `json:"toSeq"`
	Seats          int    `json:"seats"`
	Bags           int    `json:"bags"`
	PaymentMethod  string `json:"paymentMethod"`
	Notes          string `json:"notes"`
}

// DecisionRequest is the body of the confirm and reject endpoints.
type DecisionRequest struct {
	FrontdeskUserID string `json:"frontdeskUserId"`
	BookingID       string `json:"bookingId"`
	Reason          string `json:"reason"`
}

// CancelRequest is the HTTP request body for cancelling a booking.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// PaymentStatusRequest is the body of the payment and unwaive endpoints.
type PaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus"`
	Reason        string `json:"reason"`
}

// BookingResponse is the HTTP response for booking data.
type BookingResponse struct {
	ID                 string  `json:"id"`
	HotelID            string  `json:"hotelId"`
	TripInstanceID     string  `json:"tripInstanceId"`
	GuestID            string  `json:"guestId"`
	GuestName          string  `json:"guestName"`
	GuestEmail         string  `json:"guestEmail,omitempty"`
	Seats              int     `json:"seats"`
	Bags               int     `json:"bags"`
	FromSeq            int     `json:"fromSeq"`
	ToSeq              int     `json:"toSeq"`
	Pickup             string  `json:"pickup"`
	Dropoff            string  `json:"dropoff"`
	Status             string  `json:"status"`
	PaymentStatus      string  `json:"paymentStatus"`
	PaymentMethod      string  `json:"paymentMethod"`
	PricePerPerson     float64 `json:"pricePerPerson"`
	TotalPrice         float64 `json:"totalPrice"`
	Notes              string  `json:"notes,omitempty"`
	RejectionReason    string  `json:"rejectionReason,omitempty"`
	CancellationReason string  `json:"cancellationReason,omitempty"`
	CancelledBy        string  `json:"cancelledBy,omitempty"`
	ConfirmedBy        string  `json:"confirmedBy,omitempty"`
	CreatedAt          string  `json:"createdAt"`
	VerifiedAt         string  `json:"verifiedAt,omitempty"`
	CancelledAt        string  `json:"cancelledAt,omitempty"`
	CheckedInAt        string  `json:"checkedInAt,omitempty"`
}

// BookingEventResponse is one entry of a booking's history.
type BookingEventResponse struct {
	Kind      string `json:"kind"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	ActorID   string `json:"actorId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// QRResponse is the HTTP response for a booking's check-in code.
type QRResponse struct {
	BookingID string `json:"bookingId"`
	QRData    string `json:"qrData"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		HotelID:            b.HotelID,
		TripInstanceID:     b.TripInstanceID,
		GuestID:            b.GuestID,
		GuestName:          b.GuestName,
		GuestEmail:         b.GuestEmail,
		Seats:              b.Seats,
		Bags:               b.Bags,
		FromSeq:            b.FromSeq,
		ToSeq:              b.ToSeq,
		Pickup:             b.Pickup,
		Dropoff:            b.Dropoff,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		PaymentMethod:      string(b.PaymentMethod),
		PricePerPerson:     b.PricePerPerson,
		TotalPrice:         b.TotalPrice,
		Notes:              b.Notes,
		RejectionReason:    b.RejectionReason,
		CancellationReason: b.CancellationReason,
		CancelledBy:        b.CancelledBy,
		ConfirmedBy:        b.ConfirmedBy,
		CreatedAt:          formatTime(b.CreatedAt),
		VerifiedAt:         formatTime(b.VerifiedAt),
		CancelledAt:        formatTime(b.CancelledAt),
		CheckedInAt:        formatTime(b.CheckedInAt),
	}
}

// Create handles POST /api/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.TripInstanceID == "" {
		badRequest(c, "tripInstanceId is required")
		return
	}

	b, err := h.bookingService.Create(c.Request.Context(), actor(c), service.CreateBookingRequest{
		TripInstanceID: req.TripInstanceID,
		GuestID:        req.GuestID,
		GuestName:      req.GuestName,
		GuestEmail:     req.GuestEmail,
		FromSeq:        req.FromSeq,
		ToSeq:          req.ToSeq,
		Seats:          req.Seats,
		Bags:           req.Bags,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toBookingResponse(b))
}

// Get handles GET /api/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.bookingService.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(b))
}

// List handles GET /api/bookings?status=&tripInstanceId=&hotelId=&cursor=
func (h *BookingHandler) List(c *gin.Context) {
	page, err := h.bookingService.List(c.Request.Context(), actor(c), service.ListBookingsRequest{
		HotelID:        c.Query("hotelId"),
		Status:         domain.BookingStatus(c.Query("status")),
		TripInstanceID: c.Query("tripInstanceId"),
		Page:           pageRequest(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newPageResponse(page, toBookingResponse))
}

// Confirm handles POST /api/bookings/confirm
func (h *BookingHandler) Confirm(c *gin.Context) {
	req, ok := h.bindDecision(c)
	if !ok {
		return
	}
	if _, err := h.bookingService.Confirm(c.Request.Context(), actor(c), req.BookingID); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{})
}

// Reject handles POST /api/bookings/reject
func (h *BookingHandler) Reject(c *gin.Context) {
	req, ok := h.bindDecision(c)
	if !ok {
		return
	}
	if _, err := h.bookingService.Reject(c.Request.Context(), actor(c), req.BookingID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{})
}

// bindDecision parses a confirm/reject body. The acting user always comes
// from the session; a frontdeskUserId naming someone else is refused.
func (h *BookingHandler) bindDecision(c *gin.Context) (DecisionRequest, bool) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return req, false
	}
	if req.BookingID == "" {
		badRequest(c, "bookingId is required")
		return req, false
	}
	if req.FrontdeskUserID != "" && req.FrontdeskUserID != actor(c).UserID {
		respondError(c, service.ErrRoleNotAllowed)
		return req, false
	}
	return req, true
}

// Cancel handles POST /api/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	b, err := h.bookingService.Cancel(c.Request.Context(), actor(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(b))
}

// Events handles GET /api/bookings/:id/events
func (h *BookingHandler) Events(c *gin.Context) {
	history, err := h.bookingService.Events(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]BookingEventResponse, 0, len(history))
	for _, e := range history {
		out = append(out, BookingEventResponse{
			Kind:      string(e.Kind),
			From:      e.From,
			To:        e.To,
			ActorID:   e.ActorID,
			Reason:    e.Reason,
			CreatedAt: formatTime(e.CreatedAt),
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"items": out})
}

// QR handles GET /api/bookings/:id/qr
func (h *BookingHandler) QR(c *gin.Context) {
	qr, err := h.checkInService.IssueQR(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, QRResponse{BookingID: qr.BookingID, QRData: qr.Payload})
}

// Receipt handles GET /api/bookings/:id/receipt. It serves a PDF unless the
// client asks for text/plain.
func (h *BookingHandler) Receipt(c *gin.Context) {
	r, err := h.receiptService.GenerateReceipt(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.NegotiateFormat("application/pdf", "text/plain") == "text/plain" {
		c.String(http.StatusOK, h.receiptService.FormatReceipt(r))
		return
	}

	pdf, filename, err := h.receiptService.RenderPDF(r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
