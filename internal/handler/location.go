package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/service"
)

// LocationHandler handles the location registry.
type LocationHandler struct {
	locationService *service.LocationService
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(locationService *service.LocationService) *LocationHandler {
	return &LocationHandler{locationService: locationService}
}

// CreateLocationRequest is the HTTP request body for creating a location.
type CreateLocationRequest struct {
	HotelID string  `json:"hotelId"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Type    string  `json:"type"`
}

// UpdateLocationFieldsRequest carries optional location changes.
type UpdateLocationFieldsRequest struct {
	Name    *string  `json:"name"`
	Address *string  `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Type    *string  `json:"type"`
}

// ImportLocationRequest is the HTTP request body for importing a public location.
type ImportLocationRequest struct {
	HotelID  string `json:"hotelId"`
	SourceID string `json:"sourceId"`
}

// LocationResponse is the HTTP response for location data.
type LocationResponse struct {
	ID         string  `json:"id"`
	HotelID    string  `json:"hotelId,omitempty"`
	Name       string  `json:"name"`
	Address    string  `json:"address,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Type       string  `json:"type"`
	ClonedFrom string  `json:"clonedFrom,omitempty"`
	CreatedAt  string  `json:"createdAt"`
}

func toLocationResponse(l *domain.Location) LocationResponse {
	return LocationResponse{
		ID:         l.ID,
		HotelID:    l.HotelID,
		Name:       l.Name,
		Address:    l.Address,
		Lat:        l.Lat,
		Lng:        l.Lng,
		Type:       string(l.Type),
		ClonedFrom: l.ClonedFrom,
		CreatedAt:  formatTime(l.CreatedAt),
	}
}

// Create handles POST /api/locations
func (h *LocationHandler) Create(c *gin.Context) {
	var req CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	loc, err := h.locationService.Create(c.Request.Context(), actor(c), service.CreateLocationRequest{
		HotelID: req.HotelID,
		Name:    req.Name,
		Address: req.Address,
		Lat:     req.Lat,
		Lng:     req.Lng,
		Type:    domain.LocationType(req.Type),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toLocationResponse(loc))
}

// Import handles POST /api/locations/import
func (h *LocationHandler) Import(c *gin.Context) {
	var req ImportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SourceID == "" {
		badRequest(c, "sourceId is required")
		return
	}
	loc, err := h.locationService.Import(c.Request.Context(), actor(c), req.HotelID, req.SourceID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toLocationResponse(loc))
}

// List handles GET /api/locations?hotelId=&public=true
func (h *LocationHandler) List(c *gin.Context) {
	locs, err := h.locationService.List(c.Request.Context(), actor(c), c.Query("hotelId"), c.Query("public") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]LocationResponse, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationResponse(l))
	}
	respondJSON(c, http.StatusOK, gin.H{"items": out})
}

// Get handles GET /api/locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	loc, err := h.locationService.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toLocationResponse(loc))
}

// Update handles PATCH /api/locations/:id
func (h *LocationHandler) Update(c *gin.Context) {
	var req UpdateLocationFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	u := domain.LocationUpdate{Name: req.Name, Address: req.Address, Lat: req.Lat, Lng: req.Lng}
	if req.Type != nil {
		t := domain.LocationType(*req.Type)
		u.Type = &t
	}

	loc, err := h.locationService.Update(c.Request.Context(), actor(c), c.Param("id"), u)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toLocationResponse(loc))
}

// Delete handles DELETE /api/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	if err := h.locationService.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
