package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/service"
)

// ScheduleHandler handles trip templates.
type ScheduleHandler struct {
	scheduleService *service.ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduleService *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

// StopPayload is one stop of a trip template.
type StopPayload struct {
	LocationID string  `json:"locationId"`
	Charges    float64 `json:"charges"`
}

// SlotPayload is one daily slot of a trip template.
type SlotPayload struct {
	ID        string `json:"id,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	ShuttleID string `json:"shuttleId,omitempty"`
}

// TripTemplateRequest is the HTTP request body for creating or updating a trip.
type TripTemplateRequest struct {
	HotelID   string        `json:"hotelId"`
	Name      string        `json:"name"`
	Stops     []StopPayload `json:"stops"`
	TripSlots []SlotPayload `json:"tripSlots"`
}

// TripTemplateStop is one stop in a trip template response.
type TripTemplateStop struct {
	LocationID   string  `json:"locationId"`
	LocationName string  `json:"locationName"`
	LocationType string  `json:"locationType"`
	Charges      float64 `json:"charges"`
}

// TripTemplateResponse is the HTTP response for a trip template.
type TripTemplateResponse struct {
	ID        string             `json:"id"`
	HotelID   string             `json:"hotelId"`
	Name      string             `json:"name"`
	Direction string             `json:"direction"`
	Stops     []TripTemplateStop `json:"stops"`
	TripSlots []SlotPayload      `json:"tripSlots"`
	CreatedAt string             `json:"createdAt"`
}

func toTripTemplateResponse(t *domain.Trip) TripTemplateResponse {
	resp := TripTemplateResponse{
		ID:        t.ID,
		HotelID:   t.HotelID,
		Name:      t.Name,
		Direction: string(t.Direction()),
		Stops:     make([]TripTemplateStop, 0, len(t.Stops)),
		TripSlots: make([]SlotPayload, 0, len(t.Slots)),
		CreatedAt: formatTime(t.CreatedAt),
	}
	for _, s := range t.Stops {
		resp.Stops = append(resp.Stops, TripTemplateStop{
			LocationID:   s.LocationID,
			LocationName: s.LocationName,
			LocationType: string(s.LocationType),
			Charges:      s.Charges,
		})
	}
	for _, s := range t.Slots {
		resp.TripSlots = append(resp.TripSlots, SlotPayload{
			ID:        s.ID,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			ShuttleID: s.ShuttleID,
		})
	}
	return resp
}

func bindTripTemplate(c *gin.Context) (service.TripRequest, bool) {
	var req TripTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return service.TripRequest{}, false
	}
	out := service.TripRequest{HotelID: req.HotelID, Name: req.Name}
	for _, s := range req.Stops {
		out.Stops = append(out.Stops, service.StopInput{LocationID: s.LocationID, Charges: s.Charges})
	}
	for _, s := range req.TripSlots {
		out.Slots = append(out.Slots, service.SlotInput{
			ID:        s.ID,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			ShuttleID: s.ShuttleID,
		})
	}
	return out, true
}

// Create handles POST /api/trips
func (h *ScheduleHandler) Create(c *gin.Context) {
	req, ok := bindTripTemplate(c)
	if !ok {
		return
	}
	trip, err := h.scheduleService.CreateTrip(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toTripTemplateResponse(trip))
}

// Update handles PUT /api/trips/:id
func (h *ScheduleHandler) Update(c *gin.Context) {
	req, ok := bindTripTemplate(c)
	if !ok {
		return
	}
	trip, err := h.scheduleService.UpdateTrip(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toTripTemplateResponse(trip))
}

// Get handles GET /api/trips/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	trip, err := h.scheduleService.GetTrip(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toTripTemplateResponse(trip))
}

// List handles GET /api/trips?hotelId=
func (h *ScheduleHandler) List(c *gin.Context) {
	trips, err := h.scheduleService.ListTrips(c.Request.Context(), actor(c), c.Query("hotelId"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]TripTemplateResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, toTripTemplateResponse(t))
	}
	respondJSON(c, http.StatusOK, gin.H{"items": out})
}

// Delete handles DELETE /api/trips/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.scheduleService.DeleteTrip(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
