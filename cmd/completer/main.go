// completer drives one booking completion session from the command
// line: it resolves the link, waits for payment if needed, and when a
// passenger manifest file is given fills the form and submits it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"terra_viajes/internal/adapters/observability"
	"terra_viajes/internal/adapters/store"
	"terra_viajes/internal/completion"
	"terra_viajes/internal/domain"
	"terra_viajes/internal/shared"
)

func main() {
	var (
		token    = flag.String("token", "", "booking token from the completion link")
		orderID  = flag.String("order", "", "order id from the completion link")
		manifest = flag.String("passengers", "", "path to a JSON passenger manifest to submit")
		maxPolls = flag.Int("max-polls", 0, "give up after N payment polls (0 = wait forever)")
	)
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "completer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := store.New(cfg.StoreBase, cfg.StoreRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("store client")
	}

	formReached := make(chan struct{})
	terminal := make(chan completion.State, 1)

	m := completion.NewMachine(
		completion.NewResolver(client),
		completion.Link{Token: *token, OrderID: *orderID},
		completion.WithInterval(cfg.PollInterval),
		completion.WithMaxAttempts(*maxPolls),
		completion.WithOnChange(func(s completion.State) {
			log.Info().Str("state", string(s)).Msg("session state")
			switch s {
			case completion.StateForm:
				close(formReached)
			case completion.StateError, completion.StateExpired,
				completion.StateCompleted, completion.StateSuccess:
				select {
				case terminal <- s:
				default:
				}
			}
		}),
	)
	defer m.Stop()

	switch st := m.Start(ctx); st {
	case completion.StateForm:
		// onChange already closed formReached
	case completion.StateWaitingPayment:
		log.Info().Msg("awaiting payment confirmation")
	case completion.StateCompleted:
		log.Info().Msg("passenger details were already submitted")
		return
	case completion.StateExpired:
		log.Error().Msg("this booking link has expired")
		os.Exit(1)
	case completion.StateError:
		log.Fatal().Err(m.Err()).Msg("could not resolve the booking link")
	}

	select {
	case <-ctx.Done():
		return
	case s := <-terminal:
		if s != completion.StateCompleted {
			log.Error().Err(m.Err()).Str("state", string(s)).Msg("session ended without reaching the form")
			os.Exit(1)
		}
		return
	case <-formReached:
	}

	if *manifest == "" {
		log.Info().Int("passengers", m.Booking().Seats()).
			Msg("payment confirmed; re-run with -passengers to submit the manifest")
		return
	}
	if err := fillAndSubmit(ctx, m.Collector(), *manifest); err != nil {
		log.Fatal().Err(err).Msg("submit failed")
	}
	log.Info().Msg("passenger details submitted")
}

// fillAndSubmit feeds the manifest file through the form one record at a
// time, so each step gets the same validation an interactive user would.
func fillAndSubmit(ctx context.Context, col *completion.Collector, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var ps []domain.Passenger
	if err := json.Unmarshal(raw, &ps); err != nil {
		return err
	}
	if want := len(col.Passengers()); len(ps) != want {
		return fmt.Errorf("manifest has %d passengers, booking needs %d", len(ps), want)
	}

	for i, p := range ps {
		p := p
		col.UpdateActive(func(dst *domain.Passenger) {
			role, adult := dst.Role, dst.IsAdult
			*dst = p
			dst.Role, dst.IsAdult = role, adult
		})
		if i < len(ps)-1 {
			if err := col.Next(); err != nil {
				return err
			}
		}
	}
	return col.Submit(ctx)
}
