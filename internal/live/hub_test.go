package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"shuttle/internal/domain"
	"shuttle/internal/events"
)

type fakeAuth map[string]domain.Actor

func (f fakeAuth) ValidateToken(token string) (domain.Actor, error) {
	a, ok := f[token]
	if !ok {
		return domain.Actor{}, errors.New("bad token")
	}
	return a, nil
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestHub_PublishScopedToHotel(t *testing.T) {
	auth := fakeAuth{
		"desk-a": {UserID: "u-a", Role: domain.RoleFrontdesk, HotelID: "hotel-a"},
		"desk-b": {UserID: "u-b", Role: domain.RoleFrontdesk, HotelID: "hotel-b"},
	}
	hub := NewHub(auth, nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	connA := dial(t, srv, "desk-a")
	connB := dial(t, srv, "desk-b")

	var ack map[string]string
	readJSON(t, connA, &ack)
	if ack["status"] != "authenticated" {
		t.Fatalf("unexpected ack %v", ack)
	}
	readJSON(t, connB, &ack)

	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	e := events.Event{ID: "e-1", Kind: events.BookingConfirmed, HotelID: "hotel-a", SubjectID: "b-1"}
	if err := hub.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var got events.Event
	readJSON(t, connA, &got)
	if got.ID != "e-1" || got.Kind != events.BookingConfirmed {
		t.Errorf("unexpected event %+v", got)
	}

	_ = connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, msg, err := connB.ReadMessage(); err == nil {
		t.Errorf("hotel-b client received %s", msg)
	}
}

func TestHub_RejectsInvalidToken(t *testing.T) {
	hub := NewHub(fakeAuth{}, nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "nope")
	var resp map[string]string
	readJSON(t, conn, &resp)
	if resp["error"] == "" {
		t.Errorf("expected error response, got %v", resp)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", hub.ClientCount())
	}
}

func TestReceives(t *testing.T) {
	e := events.Event{HotelID: "h-1"}
	testCases := []struct {
		name  string
		actor domain.Actor
		want  bool
	}{
		{"same hotel staff", domain.Actor{Role: domain.RoleHotelAdmin, HotelID: "h-1"}, true},
		{"driver of hotel", domain.Actor{Role: domain.RoleDriver, HotelID: "h-1"}, true},
		{"other hotel", domain.Actor{Role: domain.RoleFrontdesk, HotelID: "h-2"}, false},
		{"super admin", domain.Actor{Role: domain.RoleSuperAdmin}, true},
		{"guest", domain.Actor{Role: domain.RoleGuest, HotelID: "h-1"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := receives(tc.actor, e); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEventJSONShape(t *testing.T) {
	b, _ := json.Marshal(events.Event{Kind: events.TripStarted, HotelID: "h"})
	if !strings.Contains(string(b), `"type":"trip.started"`) {
		t.Errorf("unexpected payload %s", b)
	}
}
