package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Sender renders and dispatches status-change emails. Delivery transport
// is a collaborator boundary; here the rendered message is logged.
type Sender struct{}

func NewSender() *Sender { return &Sender{} }

func (s *Sender) Send(ctx context.Context, e BookingEvent) error {
	subject, body := render(e)
	if subject == "" {
		log.Debug().Str("type", e.Type).Msg("no email template for event, skipping")
		return nil
	}
	log.Info().
		Str("to", e.CustomerEmail).
		Str("subject", subject).
		Str("body", body).
		Msg("email dispatched")
	return nil
}

func render(e BookingEvent) (subject, body string) {
	trip := e.TripTitle
	if trip == "" {
		trip = "tu viaje"
	}
	switch e.Type {
	case EventBookingCreated:
		return "Hemos recibido tu reserva",
			fmt.Sprintf("Hola %s, tu reserva para %s está registrada. Completa el pago para continuar.", e.CustomerName, trip)
	case EventBookingPaid:
		return "Pago confirmado: completa los datos de tus pasajeros",
			fmt.Sprintf("Hola %s, el pago de %s está confirmado. Usa tu enlace para completar los datos de los pasajeros antes del %s.",
				e.CustomerName, trip, e.ExpiresAt.Format("02/01/2006"))
	case EventDetailsCompleted:
		return "Datos de pasajeros recibidos",
			fmt.Sprintf("Hola %s, hemos recibido los datos de todos los pasajeros de %s. ¡Buen viaje!", e.CustomerName, trip)
	case EventBookingExpired:
		return "Tu enlace de reserva ha expirado",
			fmt.Sprintf("Hola %s, el enlace para %s ha expirado. Contáctanos para generar uno nuevo.", e.CustomerName, trip)
	}
	return "", ""
}
