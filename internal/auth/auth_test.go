package auth

import (
	"errors"
	"testing"
	"time"

	"shuttle/internal/domain"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "hotel-idp")
	actor := domain.Actor{UserID: "u-1", Name: "Dana", Role: domain.RoleFrontdesk, HotelID: "h-1"}

	token, err := svc.GenerateToken(actor, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got != actor {
		t.Errorf("expected %+v, got %+v", actor, got)
	}
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", "")
	other := NewJWTService("other-secret", "")

	foreign, _ := other.GenerateToken(domain.Actor{UserID: "u-1", Role: domain.RoleDriver, HotelID: "h-1"}, time.Hour)
	expired, _ := svc.GenerateToken(domain.Actor{UserID: "u-1", Role: domain.RoleDriver, HotelID: "h-1"}, -time.Hour)
	noHotel, _ := svc.GenerateToken(domain.Actor{UserID: "u-1", Role: domain.RoleDriver}, time.Hour)
	badRole, _ := svc.GenerateToken(domain.Actor{UserID: "u-1", Role: "PILOT", HotelID: "h-1"}, time.Hour)

	testCases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"staff without hotel", noHotel},
		{"unknown role", badRole},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tc.token); !errors.Is(err, ErrInvalidSession) {
				t.Errorf("expected ErrInvalidSession, got %v", err)
			}
		})
	}
}

func TestJWTService_SuperAdminWithoutHotel(t *testing.T) {
	svc := NewJWTService("secret", "")
	token, _ := svc.GenerateToken(domain.Actor{UserID: "root", Role: domain.RoleSuperAdmin}, time.Hour)

	actor, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !actor.CanAccessHotel("any-hotel") {
		t.Error("expected super admin to access any hotel")
	}
}

func TestQRSigner_RoundTrip(t *testing.T) {
	signer := NewQRSigner("qr-secret")
	token := &domain.CheckInToken{ID: "tok-1", BookingID: "b-1", IssuedAt: time.Now()}

	payload, err := signer.Sign(token, "h-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	got, err := signer.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.TokenID != "tok-1" || got.BookingID != "b-1" || got.HotelID != "h-1" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestQRSigner_TamperedPayload(t *testing.T) {
	signer := NewQRSigner("qr-secret")
	forger := NewQRSigner("guessed")
	token := &domain.CheckInToken{ID: "tok-1", BookingID: "b-1", IssuedAt: time.Now()}

	forged, _ := forger.Sign(token, "h-1")
	for _, payload := range []string{"", "hello", forged} {
		if _, err := signer.Parse(payload); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("payload %q: expected ErrTokenInvalid, got %v", payload, err)
		}
	}
}
