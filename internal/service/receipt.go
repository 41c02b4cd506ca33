package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	store repository.Store
	loc   *time.Location
	now   Clock
}

// NewReceiptService creates a new ReceiptService. Times are printed in loc.
func NewReceiptService(store repository.Store, loc *time.Location) *ReceiptService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReceiptService{store: store, loc: loc, now: time.Now}
}

// SetClock replaces the service clock.
func (s *ReceiptService) SetClock(c Clock) { s.now = clockOrNow(c) }

// ReceiptLine is one priced leg of a booking.
type ReceiptLine struct {
	From    string
	To      string
	Charges float64
}

// Receipt is the printable fare breakdown of a confirmed booking.
type Receipt struct {
	Number         string
	BookingID      string
	GuestName      string
	TripName       string
	VehicleNumber  string
	ScheduledStart time.Time
	Lines          []ReceiptLine
	Seats          int
	PricePerPerson float64
	TotalPrice     float64
	PaymentMethod  domain.PaymentMethod
	PaymentStatus  domain.PaymentStatus
	IssuedAt       time.Time
}

// GenerateReceipt builds the receipt of a confirmed booking.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, actor domain.Actor, bookingID string) (*Receipt, error) {
	repos := s.store.Repositories()
	b, err := repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingRead(actor, b); err != nil {
		return nil, err
	}
	if b.Status != domain.BookingStatusConfirmed {
		return nil, domain.ErrBookingNotConfirmed
	}
	inst, err := repos.TripInstances.GetByID(ctx, b.TripInstanceID)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Number:         "R-" + strings.ToUpper(shortID(b.ID)),
		BookingID:      b.ID,
		GuestName:      b.GuestName,
		TripName:       inst.TripName,
		ScheduledStart: inst.ScheduledStart.In(s.loc),
		Seats:          b.Seats,
		PricePerPerson: b.PricePerPerson,
		TotalPrice:     b.TotalPrice,
		PaymentMethod:  b.PaymentMethod,
		PaymentStatus:  b.PaymentStatus,
		IssuedAt:       s.now().In(s.loc),
	}
	if sh, err := repos.Shuttles.GetByID(ctx, inst.ShuttleID); err == nil {
		receipt.VehicleNumber = sh.VehicleNumber
	}
	for _, leg := range inst.Routes {
		if b.SpansLeg(leg.Seq) {
			receipt.Lines = append(receipt.Lines, ReceiptLine{
				From:    leg.StartLocation,
				To:      leg.EndLocation,
				Charges: leg.Charges,
			})
		}
	}
	return receipt, nil
}

// FormatReceipt formats the receipt as plain text (for email/print).
func (s *ReceiptService) FormatReceipt(r *Receipt) string {
	var sb strings.Builder
	sb.WriteString("=====================================\n")
	sb.WriteString("        SHUTTLE RECEIPT\n")
	sb.WriteString("=====================================\n")
	fmt.Fprintf(&sb, "Receipt No: %s\n", r.Number)
	fmt.Fprintf(&sb, "Booking ID: %s\n", r.BookingID)
	fmt.Fprintf(&sb, "Guest:      %s\n", r.GuestName)
	fmt.Fprintf(&sb, "Trip:       %s\n", r.TripName)
	if r.VehicleNumber != "" {
		fmt.Fprintf(&sb, "Shuttle:    %s\n", r.VehicleNumber)
	}
	fmt.Fprintf(&sb, "Departure:  %s\n\n", r.ScheduledStart.Format("Jan 02, 2006 3:04 PM"))

	sb.WriteString("ROUTE\n")
	sb.WriteString("-------------------------------------\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&sb, "%s -> %s   %s\n", l.From, l.To, formatAmount(l.Charges))
	}
	sb.WriteString("\nFARE\n")
	sb.WriteString("-------------------------------------\n")
	fmt.Fprintf(&sb, "Per person:  %s\n", formatAmount(r.PricePerPerson))
	fmt.Fprintf(&sb, "Seats:       %d\n", r.Seats)
	fmt.Fprintf(&sb, "TOTAL:       %s\n\n", formatAmount(r.TotalPrice))
	sb.WriteString("PAYMENT\n")
	sb.WriteString("-------------------------------------\n")
	fmt.Fprintf(&sb, "Method: %s\n", r.PaymentMethod)
	fmt.Fprintf(&sb, "Status: %s\n", r.PaymentStatus)
	sb.WriteString("=====================================\n")
	return sb.String()
}

// RenderPDF lays the receipt out on an A4 page and returns the document
// with a suggested file name.
func (s *ReceiptService) RenderPDF(r *Receipt) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Shuttle Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "SHUTTLE RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	header := []string{
		"Receipt No : " + r.Number,
		"Issued     : " + r.IssuedAt.Format("2006-01-02 15:04"),
		"Guest      : " + r.GuestName,
		"Trip       : " + r.TripName,
		"Departure  : " + r.ScheduledStart.Format("2006-01-02 15:04"),
	}
	if r.VehicleNumber != "" {
		header = append(header, "Shuttle    : "+r.VehicleNumber)
	}
	for _, line := range header {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Route")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for i, l := range r.Lines {
		pdf.MultiCell(0, 6, fmt.Sprintf("%d) %s - %s   %s", i+1, l.From, l.To, formatAmount(l.Charges)), "", "", false)
	}
	pdf.Ln(4)

	pdf.Cell(0, 6, fmt.Sprintf("Per person: %s  x %d seat(s)", formatAmount(r.PricePerPerson), r.Seats))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+formatAmount(r.TotalPrice))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Payment: %s (%s)", r.PaymentMethod, r.PaymentStatus), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "receipt-" + strings.ToLower(r.Number) + ".pdf", nil
}

func formatAmount(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
