//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

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

func startMySQL(t *testing.T) *sql.DB {
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
	return db
}

func seedTrip(t *testing.T, repo *mysqlrepo.Repo) domain.TripSummary {
	t.Helper()
	dep := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	trip := domain.TripSummary{
		ID:            1,
		Title:         "Ruta Maya",
		Price:         1499,
		PriceDisplay:  "1.499 €",
		DepartureDate: &dep,
		Duration:      "8 días",
	}
	if err := repo.UpsertTrip(context.Background(), &trip); err != nil {
		t.Fatalf("UpsertTrip: %v", err)
	}
	return trip
}

func TestRepo_MySQL_BookingLifecycle(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	seedTrip(t, repo)

	b := domain.Booking{
		Token:         "tok-lifecycle",
		TripID:        1,
		CustomerName:  "Juan Pérez",
		CustomerEmail: "juan@example.com",
		Adults:        2,
		Children:      1,
		TotalPrice:    4497,
		Currency:      "EUR",
		ExpiresAt:     time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second),
	}
	if err := repo.Create(ctx, &b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.ID == 0 {
		t.Fatal("Create did not set the booking id")
	}

	// fresh booking waits for payment
	got, err := repo.GetByToken(ctx, "tok-lifecycle")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if got.DerivedStatus() != domain.StatusWaitingPayment {
		t.Fatalf("expected waiting_payment, got %s", got.DerivedStatus())
	}
	if _, err := repo.GetByOrderID(ctx, b.ID); err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}

	// completion is refused until the payment flag flips
	ps := []domain.Passenger{
		{FullName: "Juan Pérez", Email: "juan@example.com", Phone: "+34600000000", IsAdult: true, Role: domain.RoleLead},
		{FullName: "Ana Pérez", IsAdult: true},
		{FullName: "Niña Pérez"},
	}
	if err := repo.CompleteDetails(ctx, "tok-lifecycle", ps); !errors.Is(err, domain.ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending before payment, got %v", err)
	}

	paid, err := repo.MarkPaid(ctx, "tok-lifecycle")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if !paid.PaymentCompleted || paid.DerivedStatus() != domain.StatusReady {
		t.Fatalf("expected ready after payment, got %+v", paid)
	}

	// marking paid twice is idempotent
	if _, err := repo.MarkPaid(ctx, "tok-lifecycle"); err != nil {
		t.Fatalf("second MarkPaid must be idempotent, got %v", err)
	}

	if err := repo.CompleteDetails(ctx, "tok-lifecycle", ps); err != nil {
		t.Fatalf("CompleteDetails: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM passengers WHERE booking_id = ?`, b.ID).Scan(&count); err != nil {
		t.Fatalf("count passengers: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 passenger rows, got %d", count)
	}

	// a second submission hits the guard
	if err := repo.CompleteDetails(ctx, "tok-lifecycle", ps); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}

	got, err = repo.GetByToken(ctx, "tok-lifecycle")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if got.DerivedStatus() != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.DerivedStatus())
	}

	if _, err := repo.GetByToken(ctx, "no-such-token"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_MySQL_Expiry(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	seedTrip(t, repo)

	overdue := domain.Booking{
		Token: "tok-overdue", TripID: 1,
		CustomerName: "Luisa Gómez", CustomerEmail: "luisa@example.com",
		Adults: 1, TotalPrice: 1499, Currency: "EUR",
		ExpiresAt: time.Now().Add(-time.Hour).UTC(),
	}
	fresh := domain.Booking{
		Token: "tok-fresh", TripID: 1,
		CustomerName: "Pedro Ruiz", CustomerEmail: "pedro@example.com",
		Adults: 1, TotalPrice: 1499, Currency: "EUR",
		ExpiresAt: time.Now().Add(72 * time.Hour).UTC(),
	}
	for _, b := range []*domain.Booking{&overdue, &fresh} {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("Create %s: %v", b.Token, err)
		}
	}

	// expiry is derived even before the sweep flips the stored flag
	got, err := repo.GetByToken(ctx, "tok-overdue")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if got.DerivedStatus() != domain.StatusExpired {
		t.Fatalf("expected derived expired, got %s", got.DerivedStatus())
	}

	// paying an expired booking is refused
	if _, err := repo.MarkPaid(ctx, "tok-overdue"); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired on payment, got %v", err)
	}

	swept, err := repo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if len(swept) != 1 || swept[0].Token != "tok-overdue" {
		t.Fatalf("unexpected sweep result: %+v", swept)
	}

	// second sweep finds nothing new
	swept, err = repo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		t.Fatalf("second ExpireOverdue: %v", err)
	}
	if len(swept) != 0 {
		t.Fatalf("sweep must be idempotent, got %+v", swept)
	}
}

func TestRepo_MySQL_Trips(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	trip := seedTrip(t, repo)

	got, err := repo.GetTrip(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if got.Title != "Ruta Maya" || got.DepartureDate == nil {
		t.Fatalf("unexpected trip: %+v", got)
	}

	trip.Title = "Ruta Maya 2027"
	trip.Price = 1599
	if err := repo.UpsertTrip(ctx, &trip); err != nil {
		t.Fatalf("UpsertTrip update: %v", err)
	}
	got, err = repo.GetTrip(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetTrip after update: %v", err)
	}
	if got.Title != "Ruta Maya 2027" || got.Price != 1599 {
		t.Fatalf("upsert did not update: %+v", got)
	}

	if _, err := repo.GetTrip(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
