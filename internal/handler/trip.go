package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/service"
)

// TripHandler handles HTTP requests for trip instances and their legs.
type TripHandler struct {
	tripService *service.TripService
	loc         *time.Location
}

// NewTripHandler creates a new TripHandler. loc is the hotel time zone used
// for the time-of-day fields.
func NewTripHandler(tripService *service.TripService, loc *time.Location) *TripHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TripHandler{tripService: tripService, loc: loc}
}

// StartTripRequest is the HTTP request body for starting a trip.
type StartTripRequest struct {
	Direction      string `json:"direction"`
	TripInstanceID string `json:"tripInstanceId"`
}

// EndTripRequest is the HTTP request body for ending a trip.
type EndTripRequest struct {
	Direction   string `json:"direction"`
	Acknowledge bool   `json:"acknowledge"`
}

// TransitionRequest is the HTTP request body for a phase change.
type TransitionRequest struct {
	Phase string `json:"phase"`
}

// MaterializeRequest is the HTTP request body for creating a day's instances.
type MaterializeRequest struct {
	HotelID string `json:"hotelId"`
	Date    string `json:"date"`
}

// RouteResponse is one leg of a trip instance.
type RouteResponse struct {
	ID            string  `json:"id"`
	Seq           int     `json:"seq"`
	StartLocation string  `json:"startLocation"`
	EndLocation   string  `json:"endLocation"`
	Charges       float64 `json:"charges"`
	SeatHeld      int     `json:"seatHeld"`
	SeatsOccupied int     `json:"seatsOccupied"`
	Completed     bool    `json:"completed"`
	Skipped       bool    `json:"skipped"`
	CanBeSkipped  bool    `json:"canBeSkipped"`
	CompletedAt   string  `json:"completedAt,omitempty"`
}

// PositionResponse is the last reported shuttle position.
type PositionResponse struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ReportedAt string  `json:"reportedAt"`
}

// NextStopResponse is the ETA at the end of the current leg.
type NextStopResponse struct {
	RouteInstanceID string  `json:"routeInstanceId"`
	Location        string  `json:"location"`
	DistanceKm      float64 `json:"distanceKm"`
	ETA             string  `json:"eta"`
}

// TripInstanceResponse is the HTTP response for trip instance data.
type TripInstanceResponse struct {
	ID                 string            `json:"id"`
	HotelID            string            `json:"hotelId"`
	TripID             string            `json:"tripId"`
	TripName           string            `json:"tripName"`
	Direction          string            `json:"direction"`
	ShuttleID          string            `json:"shuttleId"`
	DriverID           string            `json:"driverId,omitempty"`
	ScheduledDate      string            `json:"scheduledDate"`
	ScheduledStart     string            `json:"scheduledStart"`
	ScheduledEnd       string            `json:"scheduledEnd"`
	ScheduledStartTime string            `json:"scheduledStartTime"`
	ScheduledEndTime   string            `json:"scheduledEndTime"`
	ActualStart        string            `json:"actualStart,omitempty"`
	ActualEnd          string            `json:"actualEnd,omitempty"`
	Status             string            `json:"status"`
	Phase              string            `json:"phase"`
	Capacity           int               `json:"capacity"`
	SeatHeld           int               `json:"seatHeld"`
	SeatsOccupied      int               `json:"seatsOccupied"`
	BookingCount       int               `json:"bookingCount"`
	TotalPersons       int               `json:"totalPersons"`
	TotalBags          int               `json:"totalBags"`
	PendingBookings    int               `json:"pendingBookings"`
	ConfirmedBookings  int               `json:"confirmedBookings"`
	CheckedIn          int               `json:"checkedIn"`
	Routes             []RouteResponse   `json:"routes"`
	Position           *PositionResponse `json:"position,omitempty"`
	NextStop           *NextStopResponse `json:"nextStop,omitempty"`
}

// EndTripResponse is the HTTP response for ending a trip.
type EndTripResponse struct {
	Trip              TripInstanceResponse `json:"trip"`
	CompletedBookings int                  `json:"completedBookings"`
	CancelledBookings int                  `json:"cancelledBookings"`
	NoShows           int                  `json:"noShows"`
}

func (h *TripHandler) toInstance(inst *domain.TripInstance) TripInstanceResponse {
	resp := TripInstanceResponse{
		ID:                 inst.ID,
		HotelID:            inst.HotelID,
		TripID:             inst.TripID,
		TripName:           inst.TripName,
		Direction:          string(inst.Direction),
		ShuttleID:          inst.ShuttleID,
		DriverID:           inst.DriverID,
		ScheduledDate:      inst.ScheduledDate,
		ScheduledStart:     formatTime(inst.ScheduledStart),
		ScheduledEnd:       formatTime(inst.ScheduledEnd),
		ScheduledStartTime: epochTimeOfDay(inst.ScheduledStart, h.loc),
		ScheduledEndTime:   epochTimeOfDay(inst.ScheduledEnd, h.loc),
		ActualStart:        formatTime(inst.ActualStart),
		ActualEnd:          formatTime(inst.ActualEnd),
		Status:             string(inst.Status),
		Phase:              string(inst.Phase),
		Capacity:           inst.Capacity,
		SeatHeld:           inst.SeatHeld,
		SeatsOccupied:      inst.SeatsOccupied,
		Routes:             make([]RouteResponse, 0, len(inst.Routes)),
	}
	for _, r := range inst.Routes {
		resp.Routes = append(resp.Routes, RouteResponse{
			ID:            r.ID,
			Seq:           r.Seq,
			StartLocation: r.StartLocation,
			EndLocation:   r.EndLocation,
			Charges:       r.Charges,
			SeatHeld:      r.SeatHeld,
			SeatsOccupied: r.SeatsOccupied,
			Completed:     r.Completed,
			Skipped:       r.Skipped,
			CanBeSkipped:  r.CanBeSkipped,
			CompletedAt:   formatTime(r.CompletedAt),
		})
	}
	return resp
}

func (h *TripHandler) toView(v *service.TripInstanceView) TripInstanceResponse {
	resp := h.toInstance(v.Instance)
	resp.BookingCount = v.Summary.BookingCount
	resp.TotalPersons = v.Summary.TotalPersons
	resp.TotalBags = v.Summary.TotalBags
	resp.PendingBookings = v.Summary.Pending
	resp.ConfirmedBookings = v.Summary.Confirmed
	resp.CheckedIn = v.Summary.CheckedIn
	if v.Position != nil {
		resp.Position = &PositionResponse{
			Lat:        v.Position.Lat,
			Lng:        v.Position.Lng,
			ReportedAt: formatTime(v.Position.ReportedAt),
		}
	}
	if v.NextStop != nil {
		resp.NextStop = &NextStopResponse{
			RouteInstanceID: v.NextStop.RouteInstanceID,
			Location:        v.NextStop.Location,
			DistanceKm:      v.NextStop.DistanceKm,
			ETA:             formatTime(v.NextStop.ETA),
		}
	}
	return resp
}

func (h *TripHandler) toViews(views []*service.TripInstanceView) []TripInstanceResponse {
	out := make([]TripInstanceResponse, 0, len(views))
	for _, v := range views {
		out = append(out, h.toView(v))
	}
	return out
}

// Current handles GET /trips/current. It answers {"trip": null} when the
// driver has nothing running.
func (h *TripHandler) Current(c *gin.Context) {
	view, err := h.tripService.Current(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if view == nil {
		respondJSON(c, http.StatusOK, gin.H{"trip": nil})
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"trip": h.toView(view)})
}

// Available handles GET /trips/available?direction=
func (h *TripHandler) Available(c *gin.Context) {
	views, err := h.tripService.Available(c.Request.Context(), actor(c), domain.Direction(c.Query("direction")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"trips": h.toViews(views)})
}

// Start handles POST /trips/start. A tripInstanceId starts that instance;
// otherwise the earliest startable one in the direction is picked.
func (h *TripHandler) Start(c *gin.Context) {
	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	var (
		inst *domain.TripInstance
		err  error
	)
	if req.TripInstanceID != "" {
		inst, err = h.tripService.StartInstance(c.Request.Context(), actor(c), req.TripInstanceID)
	} else {
		inst, err = h.tripService.Start(c.Request.Context(), actor(c), domain.Direction(req.Direction))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"trip": h.toInstance(inst)})
}

// End handles POST /trips/:id/end
func (h *TripHandler) End(c *gin.Context) {
	var req EndTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	summary, err := h.tripService.End(c.Request.Context(), actor(c), c.Param("id"), req.Acknowledge)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, EndTripResponse{
		Trip:              h.toInstance(summary.Instance),
		CompletedBookings: summary.CompletedBookings,
		CancelledBookings: summary.CancelledBookings,
		NoShows:           summary.NoShows,
	})
}

// Transition handles POST /trips/:id/transition
func (h *TripHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	inst, err := h.tripService.TransitionPhase(c.Request.Context(), actor(c), c.Param("id"), domain.TripPhase(req.Phase))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"trip": h.toInstance(inst)})
}

// CompleteLeg handles POST /trips/legs/:routeId/complete
func (h *TripHandler) CompleteLeg(c *gin.Context) {
	view, err := h.tripService.CompleteLeg(c.Request.Context(), actor(c), c.Param("routeId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"trip": h.toView(view)})
}

// SkipLeg handles POST /trips/legs/:routeId/skip
func (h *TripHandler) SkipLeg(c *gin.Context) {
	view, err := h.tripService.SkipLeg(c.Request.Context(), actor(c), c.Param("routeId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"trip": h.toView(view)})
}

// List handles GET /api/trip-instances?date=&hotelId=&cursor=
func (h *TripHandler) List(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().In(h.loc).Format(domain.DateLayout)
	}
	page, err := h.tripService.List(c.Request.Context(), actor(c), c.Query("hotelId"), date, pageRequest(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newPageResponse(page, h.toView))
}

// Get handles GET /api/trip-instances/:id
func (h *TripHandler) Get(c *gin.Context) {
	view, err := h.tripService.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, h.toView(view))
}

// Materialize handles POST /api/trip-instances/materialize
func (h *TripHandler) Materialize(c *gin.Context) {
	var req MaterializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	created, err := h.tripService.Materialize(c.Request.Context(), actor(c), req.HotelID, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]TripInstanceResponse, 0, len(created))
	for _, inst := range created {
		out = append(out, h.toInstance(inst))
	}
	respondJSON(c, http.StatusOK, gin.H{"created": out})
}

// Cancel handles POST /api/trip-instances/:id/cancel
func (h *TripHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	inst, err := h.tripService.Cancel(c.Request.Context(), actor(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, h.toInstance(inst))
}
