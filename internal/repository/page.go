package repository

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Page sizes used by the list endpoints.
const (
	BookingPageSize      = 20
	TripInstancePageSize = 10
	MaxPageSize          = 100
)

// PageRequest asks for the page after Cursor. An empty cursor starts at the top.
type PageRequest struct {
	Cursor string
	Limit  int
}

// Size clamps the requested limit, falling back to def.
func (r PageRequest) Size(def int) int {
	if r.Limit <= 0 {
		return def
	}
	if r.Limit > MaxPageSize {
		return MaxPageSize
	}
	return r.Limit
}

// Page is one page of a keyset-paginated list.
type Page[T any] struct {
	Items      []T
	NextCursor string
	IsDone     bool
}

// Cursor is a keyset position: the sort timestamp and id of the last item seen.
type Cursor struct {
	At time.Time
	ID string
}

// EncodeCursor produces an opaque cursor string.
func EncodeCursor(at time.Time, id string) string {
	raw := strconv.FormatInt(at.UnixNano(), 10) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{At: time.Unix(0, n).UTC(), ID: id}, nil
}

// NewPage builds a page from up to size+1 fetched items; the extra item only
// signals that another page exists.
func NewPage[T any](items []T, size int, key func(T) (time.Time, string)) Page[T] {
	if len(items) <= size {
		return Page[T]{Items: items, IsDone: true}
	}
	items = items[:size]
	at, id := key(items[len(items)-1])
	return Page[T]{Items: items, NextCursor: EncodeCursor(at, id)}
}
