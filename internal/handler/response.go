package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/middleware"
	"shuttle/internal/repository"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PageResponse is the envelope of every cursor-paginated list.
type PageResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	IsDone     bool   `json:"isDone"`
}

func newPageResponse[S, T any](p repository.Page[S], convert func(S) T) PageResponse[T] {
	items := make([]T, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, convert(it))
	}
	return PageResponse[T]{Items: items, NextCursor: p.NextCursor, IsDone: p.IsDone}
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps error kinds to HTTP status codes. Specific
// sentinels wrap one kind, so matching the kind covers all of them.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	// A spent token is a state conflict; an unknown or expired one is bad input.
	case errors.Is(err, domain.ErrTokenAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrBookingNotEligible):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrSchedulingConflict),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

func actor(c *gin.Context) domain.Actor {
	return middleware.ActorFrom(c)
}

func pageRequest(c *gin.Context) repository.PageRequest {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return repository.PageRequest{Cursor: c.Query("cursor"), Limit: limit}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// epochTimeOfDay renders the wall-clock time of t in loc on 1970-01-01 UTC,
// the form the dashboards read bare times of day in.
func epochTimeOfDay(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	local := t.In(loc)
	return domain.ClockTime(local.Hour()*60 + local.Minute()).EpochString()
}
