package notify

import (
	"strings"
	"testing"
	"time"

	"terra_viajes/internal/domain"
)

func TestNewEvent_CarriesTripTitle(t *testing.T) {
	b := domain.Booking{
		ID: 3, Token: "tok-3",
		CustomerName: "Marta", CustomerEmail: "marta@x.com",
		ExpiresAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Trip:      &domain.TripSummary{Title: "Costa Rica Esencial"},
	}
	e := NewEvent(EventBookingPaid, b)
	if e.TripTitle != "Costa Rica Esencial" || e.Token != "tok-3" || e.CustomerEmail != "marta@x.com" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestRender_PerEventType(t *testing.T) {
	e := BookingEvent{
		Type:         EventBookingPaid,
		CustomerName: "Marta",
		TripTitle:    "Costa Rica Esencial",
		ExpiresAt:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	subject, body := render(e)
	if !strings.Contains(subject, "Pago confirmado") {
		t.Fatalf("unexpected subject: %q", subject)
	}
	if !strings.Contains(body, "Costa Rica Esencial") || !strings.Contains(body, "01/09/2026") {
		t.Fatalf("unexpected body: %q", body)
	}

	if s, _ := render(BookingEvent{Type: "unknown"}); s != "" {
		t.Fatalf("unknown events must render nothing, got %q", s)
	}

	// trip title fallback
	_, body = render(BookingEvent{Type: EventBookingExpired, CustomerName: "Luis"})
	if !strings.Contains(body, "tu viaje") {
		t.Fatalf("expected generic trip fallback, got %q", body)
	}
}
