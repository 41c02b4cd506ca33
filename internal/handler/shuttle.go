package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/service"
)

// ShuttleHandler handles fleet administration.
type ShuttleHandler struct {
	shuttleService *service.ShuttleService
}

// NewShuttleHandler creates a new ShuttleHandler.
func NewShuttleHandler(shuttleService *service.ShuttleService) *ShuttleHandler {
	return &ShuttleHandler{shuttleService: shuttleService}
}

// ShuttleRequest is the HTTP request body for creating or updating a shuttle.
type ShuttleRequest struct {
	HotelID       string `json:"hotelId"`
	VehicleNumber string `json:"vehicleNumber"`
	TotalSeats    int    `json:"totalSeats"`
}

// AssignDriverRequest is the HTTP request body for assigning a driver.
type AssignDriverRequest struct {
	DriverID   string `json:"driverId"`
	DriverName string `json:"driverName"`
	ShuttleID  string `json:"shuttleId"`
}

// ShuttleResponse is the HTTP response for shuttle data.
type ShuttleResponse struct {
	ID            string `json:"id"`
	HotelID       string `json:"hotelId"`
	VehicleNumber string `json:"vehicleNumber"`
	TotalSeats    int    `json:"totalSeats"`
	CreatedAt     string `json:"createdAt"`
}

// ShuttleAvailabilityResponse is one row of the driver's shuttle picker.
type ShuttleAvailabilityResponse struct {
	ShuttleResponse
	CurrentlyAssignedTo string `json:"currentlyAssignedTo,omitempty"`
	IsAssignedToMe      bool   `json:"isAssignedToMe"`
	TripCountToday      int    `json:"tripCountToday"`
	TotalBookingsToday  int    `json:"totalBookingsToday"`
}

// AssignmentResponse is one driver-shuttle pairing.
type AssignmentResponse struct {
	DriverID   string `json:"driverId"`
	DriverName string `json:"driverName,omitempty"`
	ShuttleID  string `json:"shuttleId"`
	AssignedAt string `json:"assignedAt"`
}

// AssignmentResultResponse is the reply of an assignment.
type AssignmentResultResponse struct {
	Assignment        AssignmentResponse `json:"assignment"`
	DisplacedDriverID string             `json:"displacedDriverId,omitempty"`
	PreviousShuttleID string             `json:"previousShuttleId,omitempty"`
	TripCountToday    int                `json:"tripCountToday"`
}

func toShuttleResponse(s *domain.Shuttle) ShuttleResponse {
	return ShuttleResponse{
		ID:            s.ID,
		HotelID:       s.HotelID,
		VehicleNumber: s.VehicleNumber,
		TotalSeats:    s.TotalSeats,
		CreatedAt:     formatTime(s.CreatedAt),
	}
}

func toAssignmentResponse(a *domain.DriverAssignment) AssignmentResponse {
	return AssignmentResponse{
		DriverID:   a.DriverID,
		DriverName: a.DriverName,
		ShuttleID:  a.ShuttleID,
		AssignedAt: formatTime(a.AssignedAt),
	}
}

func toAssignmentResultResponse(r *service.AssignmentResult) AssignmentResultResponse {
	return AssignmentResultResponse{
		Assignment:        toAssignmentResponse(r.Assignment),
		DisplacedDriverID: r.DisplacedDriverID,
		PreviousShuttleID: r.PreviousShuttleID,
		TripCountToday:    r.TripCountToday,
	}
}

func bindShuttle(c *gin.Context) (service.ShuttleRequest, bool) {
	var req ShuttleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return service.ShuttleRequest{}, false
	}
	return service.ShuttleRequest{
		HotelID:       req.HotelID,
		VehicleNumber: req.VehicleNumber,
		TotalSeats:    req.TotalSeats,
	}, true
}

// Create handles POST /api/shuttles
func (h *ShuttleHandler) Create(c *gin.Context) {
	req, ok := bindShuttle(c)
	if !ok {
		return
	}
	s, err := h.shuttleService.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toShuttleResponse(s))
}

// List handles GET /api/shuttles?hotelId=
func (h *ShuttleHandler) List(c *gin.Context) {
	shuttles, err := h.shuttleService.List(c.Request.Context(), actor(c), c.Query("hotelId"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]ShuttleResponse, 0, len(shuttles))
	for _, s := range shuttles {
		out = append(out, toShuttleResponse(s))
	}
	respondJSON(c, http.StatusOK, gin.H{"items": out})
}

// Get handles GET /api/shuttles/:id
func (h *ShuttleHandler) Get(c *gin.Context) {
	s, err := h.shuttleService.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toShuttleResponse(s))
}

// Update handles PUT /api/shuttles/:id
func (h *ShuttleHandler) Update(c *gin.Context) {
	req, ok := bindShuttle(c)
	if !ok {
		return
	}
	s, err := h.shuttleService.Update(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toShuttleResponse(s))
}

// Delete handles DELETE /api/shuttles/:id
func (h *ShuttleHandler) Delete(c *gin.Context) {
	if err := h.shuttleService.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Assign handles POST /api/assignments
func (h *ShuttleHandler) Assign(c *gin.Context) {
	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.shuttleService.AssignDriver(c.Request.Context(), actor(c), service.AssignDriverRequest{
		DriverID:   req.DriverID,
		DriverName: req.DriverName,
		ShuttleID:  req.ShuttleID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toAssignmentResultResponse(res))
}

// Unassign handles DELETE /api/assignments/:driverId
func (h *ShuttleHandler) Unassign(c *gin.Context) {
	removed, err := h.shuttleService.UnassignDriver(c.Request.Context(), actor(c), c.Param("driverId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"unassigned": removed})
}

// Assignments handles GET /api/assignments?hotelId=
func (h *ShuttleHandler) Assignments(c *gin.Context) {
	list, err := h.shuttleService.ListAssignments(c.Request.Context(), actor(c), c.Query("hotelId"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]AssignmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAssignmentResponse(a))
	}
	respondJSON(c, http.StatusOK, gin.H{"items": out})
}
