// Package auth validates session tokens issued by the external identity
// provider and signs the QR payloads used for check-in.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shuttle/internal/domain"
)

// ErrInvalidSession is returned for a missing, malformed or expired session token.
var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims is the session token body shared with the identity provider.
type SessionClaims struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
	HotelID string `json:"hotel_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTService validates HS256 session tokens.
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService creates a JWTService. An empty issuer skips the issuer check.
func NewJWTService(secret, issuer string) *JWTService {
	return &JWTService{secret: []byte(secret), issuer: issuer}
}

// GenerateToken signs a session for the actor. Production sessions come from
// the identity provider; this is used by tests and local tooling.
func (s *JWTService) GenerateToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:  actor.UserID,
		Name:    actor.Name,
		Role:    string(actor.Role),
		HotelID: actor.HotelID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken checks the signature and expiry and returns the caller.
func (s *JWTService) ValidateToken(tokenString string) (domain.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return domain.Actor{}, ErrInvalidSession
	}

	role := domain.Role(claims.Role)
	if claims.UserID == "" || !role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: missing user or unknown role", ErrInvalidSession)
	}
	if role != domain.RoleSuperAdmin && claims.HotelID == "" {
		return domain.Actor{}, fmt.Errorf("%w: hotel required for role %s", ErrInvalidSession, role)
	}

	return domain.Actor{
		UserID:  claims.UserID,
		Name:    claims.Name,
		Role:    role,
		HotelID: claims.HotelID,
	}, nil
}
