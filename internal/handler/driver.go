package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/service"
)

// DriverHandler handles the driver app's check-in and tracking requests.
type DriverHandler struct {
	checkInService *service.CheckInService
	shuttleService *service.ShuttleService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(checkInService *service.CheckInService, shuttleService *service.ShuttleService) *DriverHandler {
	return &DriverHandler{
		checkInService: checkInService,
		shuttleService: shuttleService,
	}
}

// CheckQRRequest is the HTTP request body for verifying a scanned code.
type CheckQRRequest struct {
	QRData string `json:"qrData"`
}

// ConfirmCheckInRequest is the HTTP request body for boarding a passenger.
type ConfirmCheckInRequest struct {
	Token string `json:"token"`
}

// UpdateLocationRequest is the HTTP request body for updating shuttle location.
type UpdateLocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// SelectShuttleRequest is the HTTP request body for a driver taking a shuttle.
type SelectShuttleRequest struct {
	ShuttleID string `json:"shuttleId"`
}

// PassengerResponse is what the driver app shows for a scanned booking.
type PassengerResponse struct {
	BookingID     string  `json:"bookingId"`
	GuestName     string  `json:"guestName"`
	Seats         int     `json:"seats"`
	Bags          int     `json:"bags"`
	Pickup        string  `json:"pickup"`
	Dropoff       string  `json:"dropoff"`
	PaymentStatus string  `json:"paymentStatus"`
	PaymentMethod string  `json:"paymentMethod"`
	TotalPrice    float64 `json:"totalPrice"`
	Token         string  `json:"token,omitempty"`
	ExpiresAt     string  `json:"expiresAt,omitempty"`
	CheckedInAt   string  `json:"checkedInAt,omitempty"`
}

// CheckInResponse is the reply of check-qr and confirm-checkin.
type CheckInResponse struct {
	Success   bool              `json:"success"`
	Passenger PassengerResponse `json:"passenger"`
}

// CheckQR handles POST /driver/check-qr
func (h *DriverHandler) CheckQR(c *gin.Context) {
	var req CheckQRRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QRData == "" {
		badRequest(c, "qrData is required")
		return
	}

	res, err := h.checkInService.CheckQR(c.Request.Context(), actor(c), req.QRData)
	if err != nil {
		respondError(c, err)
		return
	}

	p := res.Passenger
	respondJSON(c, http.StatusOK, CheckInResponse{
		Success: true,
		Passenger: PassengerResponse{
			BookingID:     p.BookingID,
			GuestName:     p.GuestName,
			Seats:         p.Seats,
			Bags:          p.Bags,
			Pickup:        p.Pickup,
			Dropoff:       p.Dropoff,
			PaymentStatus: string(p.PaymentStatus),
			PaymentMethod: string(p.PaymentMethod),
			TotalPrice:    p.TotalPrice,
			Token:         res.Handle,
			ExpiresAt:     formatTime(res.ExpiresAt),
		},
	})
}

// ConfirmCheckIn handles POST /driver/confirm-checkin
func (h *DriverHandler) ConfirmCheckIn(c *gin.Context) {
	var req ConfirmCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		badRequest(c, "token is required")
		return
	}

	b, err := h.checkInService.ConfirmCheckIn(c.Request.Context(), actor(c), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CheckInResponse{
		Success: true,
		Passenger: PassengerResponse{
			BookingID:     b.ID,
			GuestName:     b.GuestName,
			Seats:         b.Seats,
			Bags:          b.Bags,
			Pickup:        b.Pickup,
			Dropoff:       b.Dropoff,
			PaymentStatus: string(b.PaymentStatus),
			PaymentMethod: string(b.PaymentMethod),
			TotalPrice:    b.TotalPrice,
			CheckedInAt:   formatTime(b.CheckedInAt),
		},
	})
}

// UpdateLocation handles POST /driver/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		badRequest(c, "lat and lng are required")
		return
	}

	if err := h.shuttleService.ReportPosition(c.Request.Context(), actor(c), *req.Lat, *req.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AvailableShuttles handles GET /driver/shuttles
func (h *DriverHandler) AvailableShuttles(c *gin.Context) {
	rows, err := h.shuttleService.AvailableShuttles(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]ShuttleAvailabilityResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, ShuttleAvailabilityResponse{
			ShuttleResponse:     toShuttleResponse(r.Shuttle),
			CurrentlyAssignedTo: r.CurrentlyAssignedTo,
			IsAssignedToMe:      r.IsAssignedToMe,
			TripCountToday:      r.TripCountToday,
			TotalBookingsToday:  r.TotalBookingsToday,
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"shuttles": out})
}

// SelectShuttle handles POST /driver/shuttle. The driver takes the shuttle,
// displacing whoever drove it.
func (h *DriverHandler) SelectShuttle(c *gin.Context) {
	var req SelectShuttleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ShuttleID == "" {
		badRequest(c, "shuttleId is required")
		return
	}

	a := actor(c)
	res, err := h.shuttleService.AssignDriver(c.Request.Context(), a, service.AssignDriverRequest{
		DriverID:   a.UserID,
		DriverName: a.Name,
		ShuttleID:  req.ShuttleID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toAssignmentResultResponse(res))
}

// ReleaseShuttle handles DELETE /driver/shuttle
func (h *DriverHandler) ReleaseShuttle(c *gin.Context) {
	removed, err := h.shuttleService.UnassignDriver(c.Request.Context(), actor(c), actor(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"unassigned": removed})
}
