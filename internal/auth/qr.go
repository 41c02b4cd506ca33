package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shuttle/internal/domain"
)

// qrClaims is the body of a check-in QR payload: the booking as subject and
// the check-in token id as JWT id.
type qrClaims struct {
	HotelID string `json:"hid"`
	jwt.RegisteredClaims
}

// QRPayload is what a scanned QR code decodes to.
type QRPayload struct {
	TokenID   string
	BookingID string
	HotelID   string
}

// QRSigner signs and verifies check-in QR payloads.
type QRSigner struct {
	secret []byte
}

// NewQRSigner creates a QRSigner.
func NewQRSigner(secret string) *QRSigner {
	return &QRSigner{secret: []byte(secret)}
}

// Sign encodes a token into a QR payload. Payloads do not expire: the token
// status is the source of truth for whether a code is still usable.
func (s *QRSigner) Sign(token *domain.CheckInToken, hotelID string) (string, error) {
	claims := &qrClaims{
		HotelID: hotelID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       token.ID,
			Subject:  token.BookingID,
			IssuedAt: jwt.NewNumericDate(token.IssuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies a scanned payload. Any failure is domain.ErrTokenInvalid.
func (s *QRSigner) Parse(payload string) (QRPayload, error) {
	token, err := jwt.ParseWithClaims(payload, &qrClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(time.Minute))
	if err != nil {
		return QRPayload{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*qrClaims)
	if !ok || !token.Valid || claims.ID == "" || claims.Subject == "" {
		return QRPayload{}, domain.ErrTokenInvalid
	}
	return QRPayload{TokenID: claims.ID, BookingID: claims.Subject, HotelID: claims.HotelID}, nil
}
