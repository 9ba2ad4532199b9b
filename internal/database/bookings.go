package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"
)

const bookingColumns = `id, property_id, customer_id, start_date, end_date, status, guest_count,
        total_amount, amount_paid, notes, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b          models.Booking
		start, end string
		status     string
	)
	err := row.Scan(
		&b.ID, &b.PropertyID, &b.CustomerID, &start, &end, &status, &b.GuestCount,
		&b.TotalAmount, &b.AmountPaid, &b.Notes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if b.StartDate, err = models.ParseDate(start); err != nil {
		return nil, err
	}
	if b.EndDate, err = models.ParseDate(end); err != nil {
		return nil, err
	}
	b.Status = models.Status(status)
	return &b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.PropertyID,
		booking.CustomerID,
		booking.StartDate.Format(models.DateLayout),
		booking.EndDate.Format(models.DateLayout),
		string(booking.Status),
		booking.GuestCount,
		booking.TotalAmount,
		booking.AmountPaid,
		booking.Notes,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "booking", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// UpdateBooking writes every mutable column, guarded by the booking version.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings
              SET property_id = ?, customer_id = ?, start_date = ?, end_date = ?, status = ?, guest_count = ?,
                  total_amount = ?, amount_paid = ?, notes = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		booking.PropertyID,
		booking.CustomerID,
		booking.StartDate.Format(models.DateLayout),
		booking.EndDate.Format(models.DateLayout),
		string(booking.Status),
		booking.GuestCount,
		booking.TotalAmount,
		booking.AmountPaid,
		booking.Notes,
		now,
		booking.ID,
		booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if err := db.checkVersionedWrite(ctx, result, booking.ID); err != nil {
		return err
	}

	booking.UpdatedAt = now
	booking.Version++
	return nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id string, version int64, status models.Status) error {
	query := `UPDATE bookings SET status = ?, updated_at = ?, version = version + 1 WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, string(status), time.Now().UTC(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return db.checkVersionedWrite(ctx, result, id)
}

func (db *DB) checkVersionedWrite(ctx context.Context, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check booking existence: %w", err)
	}
	if exists == 0 {
		return &domain.NotFoundError{Kind: "booking", ID: id}
	}
	return domain.ErrConcurrentModification
}

// DeleteBooking physically removes a booking. Administrative only.
func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{Kind: "booking", ID: id}
	}
	return nil
}

func (db *DB) GetAllBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY start_date, id`
	return db.queryBookings(ctx, query)
}

// GetActiveBookings returns bookings that hold their dates.
func (db *DB) GetActiveBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status IN (?, ?) ORDER BY property_id, start_date`
	return db.queryBookings(ctx, query, string(models.StatusPending), string(models.StatusConfirmed))
}

// GetBookingsByDateRange returns bookings whose closed range [start, end]
// touches [from, to]. It is a superset of both the half-open and the
// calendar display semantics; callers narrow it further.
func (db *DB) GetBookingsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE start_date <= ? AND end_date >= ?
              ORDER BY start_date, id`
	return db.queryBookings(ctx, query, to.Format(models.DateLayout), from.Format(models.DateLayout))
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}
