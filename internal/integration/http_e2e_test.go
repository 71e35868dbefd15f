//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	httpserver "terra_viajes/internal/adapters/http_server"
	redisad "terra_viajes/internal/adapters/redis"
	storeclient "terra_viajes/internal/adapters/store"
	"terra_viajes/internal/app"
	"terra_viajes/internal/completion"
	"terra_viajes/internal/domain"
	mysqlrepo "terra_viajes/internal/storage/mysql"
)

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// startStack boots MySQL in docker, miniredis in-process, and the full
// HTTP server wired exactly as cmd/api does it.
func startStack(t *testing.T) (*httptest.Server, *app.BookingCommands, *sql.DB) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=viajes",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "viajes")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)

	repo := mysqlrepo.New(db)
	queries := app.NewStatusService(repo, cache, 15*time.Minute)
	commands := app.NewBookingCommands(repo, cache, nil, "", 72*time.Hour, 30*time.Second)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Q: queries, C: commands, AdminKey: ""})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)

	return ts, commands, db
}

// TestCompletion_EndToEnd drives the whole journey over the real wire:
// create a booking, open its link while unpaid, watch the poller pick up
// the payment, fill the passenger form and submit it.
func TestCompletion_EndToEnd(t *testing.T) {
	ts, commands, db := startStack(t)
	ctx := context.Background()

	repo := mysqlrepo.New(db)
	trip := domain.TripSummary{ID: 1, Title: "Costa Azul", Price: 899, PriceDisplay: "899 €", Duration: "5 días"}
	if err := repo.UpsertTrip(ctx, &trip); err != nil {
		t.Fatalf("UpsertTrip: %v", err)
	}

	booking, err := commands.CreateBooking(ctx, app.CreateBookingInput{
		TripID: 1, CustomerName: "Juan Pérez", CustomerEmail: "juan@example.com",
		Adults: 1, Children: 1,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	client, err := storeclient.New(ts.URL, 100)
	if err != nil {
		t.Fatalf("store client: %v", err)
	}

	transitions := make(chan completion.State, 16)
	m := completion.NewMachine(
		completion.NewResolver(client),
		completion.Link{Token: booking.Token},
		completion.WithInterval(50*time.Millisecond),
		completion.WithOnChange(func(s completion.State) { transitions <- s }),
	)
	defer m.Stop()

	if st := m.Start(ctx); st != completion.StateWaitingPayment {
		t.Fatalf("expected waiting_payment on open, got %s (err %v)", st, m.Err())
	}

	// payment lands while the session is polling
	if _, err := commands.MarkPaid(ctx, booking.Token); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	waitFor(t, transitions, completion.StateForm)

	col := m.Collector()
	if col == nil {
		t.Fatal("collector missing after reaching the form")
	}
	ps := col.Passengers()
	if len(ps) != 2 || ps[0].FullName != "Juan Pérez" {
		t.Fatalf("manifest not seeded from booking: %+v", ps)
	}
	if got := col.Label(1); got != "Niño 1" {
		t.Fatalf("expected child label, got %q", got)
	}

	col.UpdateActive(func(p *domain.Passenger) {
		p.Phone = "+34600000000"
		p.Nationality = "ES"
	})
	if err := col.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	col.UpdateActive(func(p *domain.Passenger) { p.FullName = "Niña Pérez" })

	if err := col.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, transitions, completion.StateSuccess)

	// the store persisted the whole batch atomically
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM passengers p JOIN bookings b ON b.id = p.booking_id WHERE b.token = ?`, booking.Token).Scan(&count); err != nil {
		t.Fatalf("count passengers: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 passenger rows, got %d", count)
	}

	// reopening the link now resolves straight to completed
	m2 := completion.NewMachine(completion.NewResolver(client), completion.Link{Token: booking.Token})
	if st := m2.Start(ctx); st != completion.StateCompleted {
		t.Fatalf("expected completed on reopen, got %s", st)
	}
}

func waitFor(t *testing.T, ch <-chan completion.State, want completion.State) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case s := <-ch:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}
