package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/auth"
	"shuttle/internal/domain"
	"shuttle/internal/redis"
	"shuttle/internal/repository"
)

// CheckInService issues boarding QR codes and redeems them in two steps:
// CheckQR verifies a scan and hands out a short-lived handle, ConfirmCheckIn
// consumes the token behind the handle.
type CheckInService struct {
	store               repository.Store
	handleStore         redis.HandleStoreInterface
	signer              *auth.QRSigner
	viewCache           redis.ViewCacheInterface // optional
	notificationService *NotificationService
	metrics             Metrics
	handleTTL           time.Duration
	now                 Clock
}

// NewCheckInService creates a new CheckInService.
func NewCheckInService(
	store repository.Store,
	handleStore redis.HandleStoreInterface,
	signer *auth.QRSigner,
	viewCache redis.ViewCacheInterface,
	notificationService *NotificationService,
	metrics Metrics,
	handleTTL time.Duration,
) *CheckInService {
	if handleTTL <= 0 {
		handleTTL = 90 * time.Second
	}
	return &CheckInService{
		store:               store,
		handleStore:         handleStore,
		signer:              signer,
		viewCache:           viewCache,
		notificationService: notificationService,
		metrics:             metricsOrNoop(metrics),
		handleTTL:           handleTTL,
		now:                 time.Now,
	}
}

// SetClock replaces the service clock.
func (s *CheckInService) SetClock(c Clock) { s.now = clockOrNow(c) }

// QRCode is the payload a guest shows at boarding.
type QRCode struct {
	BookingID string
	TokenID   string
	Payload   string
}

// IssueQR returns the signed QR payload of a confirmed booking.
func (s *CheckInService) IssueQR(ctx context.Context, actor domain.Actor, bookingID string) (*QRCode, error) {
	repos := s.store.Repositories()
	b, err := repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingRead(actor, b); err != nil {
		return nil, err
	}
	if b.Status != domain.BookingStatusConfirmed {
		return nil, ErrBookingNotBoardable
	}
	token, err := repos.CheckIns.GetByBookingID(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrUnknownToken
	}
	if err := token.Usable(); err != nil {
		return nil, err
	}

	payload, err := s.signer.Sign(token, b.HotelID)
	if err != nil {
		return nil, err
	}
	return &QRCode{BookingID: b.ID, TokenID: token.ID, Payload: payload}, nil
}

// PassengerSummary is what the driver sees after a successful scan.
type PassengerSummary struct {
	BookingID     string
	GuestName     string
	Seats         int
	Bags          int
	Pickup        string
	Dropoff       string
	PaymentStatus domain.PaymentStatus
	PaymentMethod domain.PaymentMethod
	TotalPrice    float64
}

// CheckQRResult carries the verification handle for ConfirmCheckIn.
type CheckQRResult struct {
	Handle    string
	ExpiresAt time.Time
	Passenger PassengerSummary
}

// CheckQR verifies a scanned payload for the calling driver. Nothing is
// written to the database: the VERIFIED state only exists as the handle.
func (s *CheckInService) CheckQR(ctx context.Context, actor domain.Actor, payload string) (result *CheckQRResult, err error) {
	defer func() { s.recordResult("verified", err) }()

	if err := requireRole(actor, "", domain.RoleDriver); err != nil {
		return nil, err
	}
	p, err := s.signer.Parse(payload)
	if err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	token, err := repos.CheckIns.GetByID(ctx, p.TokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}
	if token.BookingID != p.BookingID {
		return nil, ErrUnknownToken
	}
	if err := token.Usable(); err != nil {
		return nil, err
	}

	b, err := repos.Bookings.GetByID(ctx, token.BookingID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, b.HotelID, domain.RoleDriver); err != nil {
		return nil, err
	}
	inst, err := repos.TripInstances.GetByID(ctx, b.TripInstanceID)
	if err != nil {
		return nil, err
	}
	if err := boardable(actor, b, inst); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	handle := uuid.New().String()
	if err := s.handleStore.SaveHandle(ctx, handle, &redis.VerifiedCheckIn{
		TokenID:        token.ID,
		BookingID:      b.ID,
		TripInstanceID: inst.ID,
		DriverID:       actor.UserID,
		VerifiedAt:     now,
	}, s.handleTTL); err != nil {
		return nil, err
	}

	return &CheckQRResult{
		Handle:    handle,
		ExpiresAt: now.Add(s.handleTTL),
		Passenger: PassengerSummary{
			BookingID:     b.ID,
			GuestName:     b.GuestName,
			Seats:         b.Seats,
			Bags:          b.Bags,
			Pickup:        b.Pickup,
			Dropoff:       b.Dropoff,
			PaymentStatus: b.PaymentStatus,
			PaymentMethod: b.PaymentMethod,
			TotalPrice:    b.TotalPrice,
		},
	}, nil
}

// ConfirmCheckIn redeems a verification handle. The token moves from ISSUED
// to CONSUMED under a row lock, taken after the trip instance and booking
// locks, so two confirmations of the same code cannot both board the passenger.
func (s *CheckInService) ConfirmCheckIn(ctx context.Context, actor domain.Actor, handle string) (booking *domain.Booking, err error) {
	defer func() { s.recordResult("consumed", err) }()

	if err := requireRole(actor, "", domain.RoleDriver); err != nil {
		return nil, err
	}
	v, err := s.handleStore.GetHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, redis.ErrHandleNotFound) {
			return nil, ErrVerificationExpired
		}
		return nil, err
	}
	if v.DriverID != actor.UserID {
		return nil, ErrVerificationExpired
	}

	now := s.now().UTC()
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, inst, err := lockBookingWithTrip(ctx, repos, v.BookingID)
		if err != nil {
			return err
		}
		token, err := repos.CheckIns.GetForUpdate(ctx, v.TokenID)
		if err != nil {
			return err
		}
		if err := token.Consume(actor.UserID, now); err != nil {
			return err
		}
		if err := boardable(actor, b, inst); err != nil {
			return err
		}
		if err := inst.OccupySeats(b.FromSeq, b.ToSeq, b.Seats); err != nil {
			return err
		}
		b.CheckedInAt = now

		if err := repos.CheckIns.Update(ctx, token); err != nil {
			return err
		}
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		if err := repos.TripInstances.Update(ctx, inst); err != nil {
			return err
		}
		if err := repos.Bookings.AppendEvent(ctx, &domain.BookingEvent{
			ID:        uuid.New().String(),
			BookingID: b.ID,
			Kind:      domain.BookingEventCheckedIn,
			From:      string(domain.CheckInIssued),
			To:        string(domain.CheckInConsumed),
			ActorID:   actor.UserID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateTripView(ctx, s.viewCache, booking.TripInstanceID)
	s.notificationService.NotifyCheckIn(ctx, booking, actor.UserID)
	return booking, nil
}

// boardable checks that b can board inst with the calling driver.
func boardable(actor domain.Actor, b *domain.Booking, inst *domain.TripInstance) error {
	if b.CheckedIn() {
		return domain.ErrTokenAlreadyUsed
	}
	if b.Status != domain.BookingStatusConfirmed {
		return ErrBookingNotBoardable
	}
	if inst.Status != domain.TripStatusInProgress || inst.DriverID != actor.UserID {
		return ErrNotOnRunningTrip
	}
	return nil
}

func (s *CheckInService) recordResult(success string, err error) {
	switch {
	case err == nil:
		s.metrics.CheckInResult(success)
	case errors.Is(err, domain.ErrTokenAlreadyUsed):
		s.metrics.CheckInResult("already_used")
	case errors.Is(err, domain.ErrTokenInvalid):
		s.metrics.CheckInResult("invalid")
	case errors.Is(err, domain.ErrBookingNotEligible):
		s.metrics.CheckInResult("not_eligible")
	default:
		s.metrics.CheckInResult("error")
	}
}
