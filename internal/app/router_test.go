package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/auth"
	"shuttle/internal/domain"
	"shuttle/internal/handler"
	"shuttle/internal/metrics"
	"shuttle/internal/repository/memory"
	"shuttle/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	admin  = domain.Actor{UserID: "admin-1", Name: "Ada", Role: domain.RoleHotelAdmin, HotelID: "hotel-1"}
	desk   = domain.Actor{UserID: "desk-1", Name: "Dee", Role: domain.RoleFrontdesk, HotelID: "hotel-1"}
	driver = domain.Actor{UserID: "driver-1", Name: "Dan", Role: domain.RoleDriver, HotelID: "hotel-1"}
)

// testServer is the full HTTP stack on the in-memory store, with every
// clock stopped at 06:45 UTC on the service date.
type testServer struct {
	t        *testing.T
	router   *gin.Engine
	sessions *auth.JWTService
}

const serviceDate = "2026-03-02"

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	now := func() time.Time { return time.Date(2026, 3, 2, 6, 45, 0, 0, time.UTC) }
	store := memory.NewStore()
	stores := NewStores(nil)
	collector := metrics.NewCollector()
	sessions := auth.NewJWTService("test-secret", "")
	signer := auth.NewQRSigner("qr-secret")

	notifications := service.NewNotificationService(collector)
	shuttles := service.NewShuttleService(store, stores.Locks, stores.Positions, notifications, time.UTC, time.Second)
	shuttles.SetClock(now)
	trips := service.NewTripService(store, stores.Positions, stores.Views, notifications, collector, service.TripSettings{
		Location: time.UTC, StartLead: 30 * time.Minute, AverageSpeedKmh: 40,
	})
	trips.SetClock(now)
	bookings := service.NewBookingService(store, stores.Views, notifications, collector)
	bookings.SetClock(now)
	checkIns := service.NewCheckInService(store, stores.Handles, signer, stores.Views, notifications, collector, 90*time.Second)
	checkIns.SetClock(now)
	receipts := service.NewReceiptService(store, time.UTC)
	receipts.SetClock(now)

	router := NewRouter(RouterDeps{
		BookingHandler:  handler.NewBookingHandler(bookings, checkIns, receipts),
		TripHandler:     handler.NewTripHandler(trips, time.UTC),
		DriverHandler:   handler.NewDriverHandler(checkIns, shuttles),
		ShuttleHandler:  handler.NewShuttleHandler(shuttles),
		LocationHandler: handler.NewLocationHandler(service.NewLocationService(store)),
		ScheduleHandler: handler.NewScheduleHandler(service.NewScheduleService(store)),
		Sessions:        sessions,
		ResponseCache:   stores.Responses,
		Metrics:         collector,
	})
	return &testServer{t: t, router: router, sessions: sessions}
}

func (s *testServer) do(as domain.Actor, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as.UserID != "" {
		token, err := s.sessions.GenerateToken(as, time.Hour)
		if err != nil {
			s.t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// must performs the request and decodes the reply, failing unless the
// status matches.
func (s *testServer) must(as domain.Actor, method, path string, body any, status int) map[string]any {
	s.t.Helper()
	w := s.do(as, method, path, body)
	if w.Code != status {
		s.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, w.Code, w.Body.String())
	}
	out := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			s.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return out
}

type fleet struct {
	airportID, hotelID, shuttleID, tripID, instanceID string
}

func (s *testServer) seed(seats int) fleet {
	s.t.Helper()
	var f fleet
	f.airportID = s.must(admin, http.MethodPost, "/api/locations", map[string]any{
		"name": "Airport", "lat": 25.2532, "lng": 55.3657, "type": "AIRPORT",
	}, http.StatusCreated)["id"].(string)
	f.hotelID = s.must(admin, http.MethodPost, "/api/locations", map[string]any{
		"name": "Hotel", "lat": 25.1972, "lng": 55.2744, "type": "HOTEL",
	}, http.StatusCreated)["id"].(string)
	f.shuttleID = s.must(admin, http.MethodPost, "/api/shuttles", map[string]any{
		"vehicleNumber": "S1", "totalSeats": seats,
	}, http.StatusCreated)["id"].(string)
	f.tripID = s.must(admin, http.MethodPost, "/api/trips", map[string]any{
		"name":      "Airport↔Hotel",
		"stops":     []map[string]any{{"locationId": f.airportID, "charges": 25}, {"locationId": f.hotelID}},
		"tripSlots": []map[string]any{{"startTime": "07:00", "endTime": "08:00", "shuttleId": f.shuttleID}},
	}, http.StatusCreated)["id"].(string)
	s.must(admin, http.MethodPost, "/api/assignments", map[string]any{
		"driverId": driver.UserID, "driverName": driver.Name, "shuttleId": f.shuttleID,
	}, http.StatusOK)

	created := s.must(admin, http.MethodPost, "/api/trip-instances/materialize", map[string]any{
		"date": serviceDate,
	}, http.StatusOK)["created"].([]any)
	if len(created) != 1 {
		s.t.Fatalf("expected one instance, got %d", len(created))
	}
	f.instanceID = created[0].(map[string]any)["id"].(string)
	return f
}

func (s *testServer) book(f fleet, seats int) string {
	s.t.Helper()
	return s.must(desk, http.MethodPost, "/api/bookings", map[string]any{
		"tripInstanceId": f.instanceID, "guestName": "Walk In", "seats": seats,
	}, http.StatusCreated)["id"].(string)
}

func TestRouter_HealthAndAuth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	if w := s.do(domain.Actor{}, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("expected health 200, got %d", w.Code)
	}
	if w := s.do(domain.Actor{}, http.MethodGet, "/api/bookings", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a session, got %d", w.Code)
	}
	if w := s.do(desk, http.MethodGet, "/trips/current", nil); w.Code != http.StatusForbidden {
		t.Errorf("expected driver routes to refuse frontdesk, got %d", w.Code)
	}
	w := s.do(domain.Actor{}, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "shuttle_http_request_duration_seconds") {
		t.Errorf("expected metrics exposition, got %d", w.Code)
	}
}

func TestRouter_ConfirmRejectContract(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	f := s.seed(6)

	first := s.book(f, 4)
	second := s.book(f, 3)

	reply := s.must(desk, http.MethodPost, "/api/bookings/confirm", map[string]any{
		"frontdeskUserId": desk.UserID, "bookingId": first,
	}, http.StatusOK)
	if len(reply) != 0 {
		t.Errorf("expected empty object, got %v", reply)
	}

	over := s.must(desk, http.MethodPost, "/api/bookings/confirm", map[string]any{"bookingId": second}, http.StatusConflict)
	if over["error"] == "" {
		t.Error("expected an error message for the capacity rejection")
	}
	if got := s.must(desk, http.MethodGet, "/api/bookings/"+second, nil, http.StatusOK)["status"]; got != "PENDING" {
		t.Errorf("expected second booking to stay PENDING, got %v", got)
	}

	s.must(desk, http.MethodPost, "/api/bookings/reject", map[string]any{"bookingId": first, "reason": "late"}, http.StatusConflict)
	s.must(desk, http.MethodPost, "/api/bookings/reject", map[string]any{"bookingId": second, "reason": ""}, http.StatusBadRequest)
	s.must(desk, http.MethodPost, "/api/bookings/reject", map[string]any{
		"frontdeskUserId": "someone-else", "bookingId": second, "reason": "full",
	}, http.StatusForbidden)
	s.must(desk, http.MethodPost, "/api/bookings/reject", map[string]any{"bookingId": second, "reason": "full"}, http.StatusOK)

	inst := s.must(desk, http.MethodGet, "/api/trip-instances/"+f.instanceID, nil, http.StatusOK)
	if inst["seatHeld"].(float64) != 4 {
		t.Errorf("expected seatHeld 4 after rejecting the other booking, got %v", inst["seatHeld"])
	}
	if inst["scheduledStartTime"] != "1970-01-01T07:00:00.000Z" {
		t.Errorf("expected epoch time of day, got %v", inst["scheduledStartTime"])
	}

	s.must(desk, http.MethodGet, "/api/bookings/missing", nil, http.StatusNotFound)
}

func TestRouter_PaymentAndPaging(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	f := s.seed(6)

	id := s.book(f, 1)
	s.must(desk, http.MethodPut, "/api/bookings/"+id+"/payment", map[string]any{"paymentStatus": "PAID"}, http.StatusConflict)
	s.must(desk, http.MethodPost, "/api/bookings/confirm", map[string]any{"bookingId": id}, http.StatusOK)
	paid := s.must(desk, http.MethodPut, "/api/bookings/"+id+"/payment", map[string]any{"paymentStatus": "PAID"}, http.StatusOK)
	if paid["paymentStatus"] != "PAID" {
		t.Errorf("expected PAID, got %v", paid["paymentStatus"])
	}
	s.must(desk, http.MethodPut, "/api/bookings/"+id+"/payment", map[string]any{"paymentStatus": "BOGUS"}, http.StatusBadRequest)

	for i := 0; i < 2; i++ {
		s.book(f, 1)
	}
	page := s.must(desk, http.MethodGet, "/api/bookings?limit=2", nil, http.StatusOK)
	if len(page["items"].([]any)) != 2 || page["isDone"] != false || page["nextCursor"] == "" {
		t.Fatalf("unexpected first page %v", page)
	}
	rest := s.must(desk, http.MethodGet, "/api/bookings?limit=2&cursor="+page["nextCursor"].(string), nil, http.StatusOK)
	if len(rest["items"].([]any)) != 1 || rest["isDone"] != true {
		t.Errorf("unexpected last page %v", rest)
	}

	history := s.must(desk, http.MethodGet, "/api/bookings/"+id+"/events", nil, http.StatusOK)["items"].([]any)
	if len(history) != 3 {
		t.Errorf("expected created, confirmed and paid entries, got %d", len(history))
	}
}

func TestRouter_IdempotentCreate(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	f := s.seed(6)

	body := map[string]any{"tripInstanceId": f.instanceID, "guestName": "Retry", "seats": 1}
	first := s.do(desk, http.MethodPost, "/api/bookings", body, "Idempotency-Key", "abc")
	again := s.do(desk, http.MethodPost, "/api/bookings", body, "Idempotency-Key", "abc")
	if first.Code != http.StatusCreated || again.Code != http.StatusCreated {
		t.Fatalf("expected both 201, got %d and %d", first.Code, again.Code)
	}
	if first.Body.String() != again.Body.String() {
		t.Error("expected the replay to return the same booking")
	}

	list := s.must(desk, http.MethodGet, "/api/bookings", nil, http.StatusOK)["items"].([]any)
	if len(list) != 1 {
		t.Errorf("expected one booking, got %d", len(list))
	}
}

func TestRouter_SchedulingConflictMessage(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	f := s.seed(6)

	reply := s.must(admin, http.MethodPost, "/api/trips", map[string]any{
		"name":      "Overlap",
		"stops":     []map[string]any{{"locationId": f.hotelID}, {"locationId": f.airportID}},
		"tripSlots": []map[string]any{{"startTime": "07:30", "endTime": "08:30", "shuttleId": f.shuttleID}},
	}, http.StatusConflict)

	lines := regexp.MustCompile(`(?m)^\d+\. .*$`).FindAllString(reply["error"].(string), -1)
	if len(lines) != 1 {
		t.Errorf("expected one numbered conflict line, got %q", reply["error"])
	}
}

func TestRouter_DriverBoardsPassenger(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	f := s.seed(6)

	id := s.book(f, 2)
	s.must(desk, http.MethodPost, "/api/bookings/confirm", map[string]any{"bookingId": id}, http.StatusOK)
	qr := s.must(desk, http.MethodGet, "/api/bookings/"+id+"/qr", nil, http.StatusOK)["qrData"].(string)

	if cur := s.must(driver, http.MethodGet, "/trips/current", nil, http.StatusOK); cur["trip"] != nil {
		t.Fatalf("expected no running trip, got %v", cur["trip"])
	}
	available := s.must(driver, http.MethodGet, "/trips/available", nil, http.StatusOK)["trips"].([]any)
	if len(available) != 1 {
		t.Fatalf("expected one available trip, got %d", len(available))
	}
	s.must(driver, http.MethodPost, "/trips/start", map[string]any{"direction": "FROM_AIRPORT"}, http.StatusOK)

	checked := s.must(driver, http.MethodPost, "/driver/check-qr", map[string]any{"qrData": qr}, http.StatusOK)
	passenger := checked["passenger"].(map[string]any)
	if checked["success"] != true || passenger["bookingId"] != id || passenger["token"] == "" {
		t.Fatalf("unexpected check-qr reply %v", checked)
	}

	handle := passenger["token"].(string)
	s.must(driver, http.MethodPost, "/driver/confirm-checkin", map[string]any{"token": handle}, http.StatusOK)
	s.must(driver, http.MethodPost, "/driver/confirm-checkin", map[string]any{"token": handle}, http.StatusConflict)
	s.must(driver, http.MethodPost, "/driver/confirm-checkin", map[string]any{"token": "nope"}, http.StatusBadRequest)

	s.must(driver, http.MethodPost, "/driver/location", map[string]any{"lat": 25.22, "lng": 55.31}, http.StatusNoContent)
	cur := s.must(driver, http.MethodGet, "/trips/current", nil, http.StatusOK)["trip"].(map[string]any)
	if cur["seatsOccupied"].(float64) != 2 || cur["nextStop"] == nil {
		t.Errorf("expected 2 boarded and a next stop ETA, got %v", cur)
	}

	s.must(driver, http.MethodPost, "/trips/"+f.instanceID+"/transition", map[string]any{"phase": "RETURN"}, http.StatusOK)
	s.must(driver, http.MethodPost, "/trips/"+f.instanceID+"/transition", map[string]any{"phase": "RETURN"}, http.StatusConflict)
	ended := s.must(driver, http.MethodPost, "/trips/"+f.instanceID+"/end", map[string]any{"direction": "FROM_AIRPORT"}, http.StatusOK)
	if ended["completedBookings"].(float64) != 1 {
		t.Errorf("expected one completed booking, got %v", ended)
	}
}

func TestRouter_ReceiptPDF(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	f := s.seed(6)

	id := s.book(f, 2)
	s.must(desk, http.MethodGet, "/api/bookings/"+id+"/receipt", nil, http.StatusConflict)
	s.must(desk, http.MethodPost, "/api/bookings/confirm", map[string]any{"bookingId": id}, http.StatusOK)

	w := s.do(desk, http.MethodGet, "/api/bookings/"+id+"/receipt", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("expected a PDF, got %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("expected PDF magic bytes")
	}

	w = s.do(desk, http.MethodGet, "/api/bookings/"+id+"/receipt", nil, "Accept", "text/plain")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Walk In") {
		t.Errorf("expected a text receipt naming the guest, got %d %q", w.Code, w.Body.String())
	}
}
