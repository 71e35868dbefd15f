package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"terra_viajes/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func scanBooking(row interface{ Scan(...any) error }) (domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(
		&b.ID, &b.Token, &b.TripID, &b.CustomerName, &b.CustomerEmail,
		&b.Adults, &b.Children, &b.TotalPrice, &b.Currency,
		&b.DetailsCompleted, &b.PaymentCompleted, &b.IsExpired, &b.ExpiresAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *Repo) GetByToken(ctx context.Context, token string) (domain.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, getBookingByTokenSQL, token))
}

func (r *Repo) GetByOrderID(ctx context.Context, orderID int64) (domain.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, getBookingByIDSQL, orderID))
}

func (r *Repo) List(ctx context.Context, limit int) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, listBookingsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, b *domain.Booking) error {
	res, err := r.db.ExecContext(ctx, insertBookingSQL,
		b.Token, b.TripID, b.CustomerName, b.CustomerEmail,
		b.Adults, b.Children, b.TotalPrice, b.Currency, b.ExpiresAt)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) MarkPaid(ctx context.Context, token string) (domain.Booking, error) {
	res, err := r.db.ExecContext(ctx, markPaidSQL, token)
	if err != nil {
		return domain.Booking{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// distinguish why the guard refused the update
		b, err := r.GetByToken(ctx, token)
		if err != nil {
			return domain.Booking{}, err
		}
		switch b.DerivedStatus() {
		case domain.StatusCompleted:
			return domain.Booking{}, domain.ErrAlreadyCompleted
		case domain.StatusExpired:
			return domain.Booking{}, domain.ErrExpired
		default:
			return b, nil // already paid: idempotent
		}
	}
	return r.GetByToken(ctx, token)
}

// CompleteDetails atomically flips details_completed and stores the full
// passenger batch. The guard clause enforces the precedence order server
// side; a refused update is mapped back to the matching domain error.
func (r *Repo) CompleteDetails(ctx context.Context, token string, ps []domain.Passenger) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, completeDetailsSQL, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		b, err := r.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		switch b.DerivedStatus() {
		case domain.StatusCompleted:
			return domain.ErrAlreadyCompleted
		case domain.StatusExpired:
			return domain.ErrExpired
		default:
			return domain.ErrPaymentPending
		}
	}

	var bookingID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE token = ?`, token).Scan(&bookingID); err != nil {
		return err
	}

	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*17)
	for i, p := range ps {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			bookingID, i,
			p.FullName, p.Email, p.Phone, p.Nationality, p.BirthDate,
			p.PassportNumber, p.PassportCountry, p.PassportExpiry, p.SocialHandle,
			p.EmergencyName, p.EmergencyPhone, p.DietaryNotes,
			p.Allergies, p.Notes, p.IsAdult,
		)
	}
	if _, err := tx.ExecContext(ctx, insertPassengersPrefix+strings.Join(values, ","), args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) ExpireOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, selectOverdueSQL, now)
	if err != nil {
		return nil, err
	}
	var overdue []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		overdue = append(overdue, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(overdue) == 0 {
		return nil, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, markExpiredSQL, now); err != nil {
		return nil, err
	}
	return overdue, tx.Commit()
}

func (r *Repo) GetTrip(ctx context.Context, id int64) (domain.TripSummary, error) {
	var t domain.TripSummary
	var dep sql.NullTime
	err := r.db.QueryRowContext(ctx, getTripSQL, id).
		Scan(&t.ID, &t.Title, &t.Price, &t.PriceDisplay, &dep, &t.Duration)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.TripSummary{}, domain.ErrNotFound
		}
		return domain.TripSummary{}, err
	}
	if dep.Valid {
		d := dep.Time
		t.DepartureDate = &d
	}
	return t, nil
}

func (r *Repo) UpsertTrip(ctx context.Context, t *domain.TripSummary) error {
	var dep any
	if t.DepartureDate != nil {
		dep = *t.DepartureDate
	}
	_, err := r.db.ExecContext(ctx, upsertTripSQL,
		t.ID, t.Title, t.Price, t.PriceDisplay, dep, t.Duration)
	return err
}
