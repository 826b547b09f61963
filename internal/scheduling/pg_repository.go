package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxConn is the subset of *pgxpool.Pool the repository needs, so tests can pass a pgxmock pool.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool pgxConn
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithConn(conn pgxConn) *PgRepository {
	return &PgRepository{pool: conn}
}

const windowColumns = `id, seq, window_date, start_minute, end_minute, window_type, created_at`

const bookingColumns = `id, reference, booking_date, start_minute, duration_minutes, booking_type, source,
	label, service_code, client_name, client_email, client_phone, details, status, payment_id,
	amount_cents, currency, refund_status, cancel_reason, canceled_at, created_at, updated_at`

// Helpers

func scanWindow(row pgx.Row) (*Window, error) {
	var w Window
	var windowType string

	err := row.Scan(
		&w.ID,
		&w.Seq,
		&w.Date,
		&w.Start,
		&w.End,
		&windowType,
		&w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}

	w.Type = WindowType(windowType)
	return &w, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var bookingType, source, status, refundStatus string
	var details []byte
	var canceledAt *time.Time

	err := row.Scan(
		&b.ID,
		&b.Reference,
		&b.Date,
		&b.Time,
		&b.Duration,
		&bookingType,
		&source,
		&b.Label,
		&b.ServiceCode,
		&b.Client.Name,
		&b.Client.Email,
		&b.Client.Phone,
		&details,
		&status,
		&b.PaymentID,
		&b.AmountCents,
		&b.Currency,
		&refundStatus,
		&b.CancelReason,
		&canceledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Type = WindowType(bookingType)
	b.Source = Source(source)
	b.Status = BookingStatus(status)
	b.RefundStatus = RefundStatus(refundStatus)
	b.CanceledAt = canceledAt
	if len(details) > 0 {
		b.Details = details
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isExclusionViolation matches SQLSTATE 23P01, raised by the no-overlap constraints.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// Windows

func (r *PgRepository) ListWindows(ctx context.Context, date time.Time) ([]Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE window_date = $1
		ORDER BY start_minute, seq
	`, date)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	var result []Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
	`, id)
	return scanWindow(row)
}

// InsertWindows writes all windows in one transaction. The exclusion
// constraint rejects any overlap with stored windows or within the batch.
func (r *PgRepository) InsertWindows(ctx context.Context, windows []Window) ([]Window, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert windows: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result := make([]Window, 0, len(windows))
	for _, w := range windows {
		id := w.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO availability_windows (id, window_date, start_minute, end_minute, window_type)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+windowColumns+`
		`, id, w.Date, w.Start, w.End, string(w.Type))

		inserted, err := scanWindow(row)
		if err != nil {
			if isExclusionViolation(err) {
				return nil, ErrDuplicateOverlap
			}
			return nil, fmt.Errorf("insert window: %w", err)
		}
		result = append(result, *inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert windows: %w", err)
	}
	return result, nil
}

func (r *PgRepository) UpdateWindow(ctx context.Context, id uuid.UUID, start, end int) (*Window, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update window: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanWindow(tx.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}

	var stranded bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE status = 'booked'
			  AND booking_date = $1
			  AND booking_type = $2
			  AND start_minute >= $3 AND start_minute < $4
			  AND (start_minute < $5 OR start_minute + duration_minutes > $6)
		)
	`, current.Date, string(current.Type), current.Start, current.End, start, end).Scan(&stranded)
	if err != nil {
		return nil, fmt.Errorf("check dependent bookings: %w", err)
	}
	if stranded {
		return nil, ErrHasActiveBookings
	}

	updated, err := scanWindow(tx.QueryRow(ctx, `
		UPDATE availability_windows
		SET start_minute = $2,
		    end_minute = $3
		WHERE id = $1
		RETURNING `+windowColumns, id, start, end))
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrDuplicateOverlap
		}
		return nil, fmt.Errorf("update window: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update window: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) DeleteWindowIfUnbooked(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete window: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	w, err := scanWindow(tx.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return err
	}

	var booked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE status = 'booked'
			  AND booking_date = $1
			  AND booking_type = $2
			  AND start_minute >= $3 AND start_minute < $4
		)
	`, w.Date, string(w.Type), w.Start, w.End).Scan(&booked)
	if err != nil {
		return fmt.Errorf("check dependent bookings: %w", err)
	}
	if booked {
		return ErrHasActiveBookings
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete window: %w", err)
	}
	return nil
}

// Bookings

// InsertBooking is a single statement: the covering-window check and the
// insert happen together, and the exclusion constraint rejects overlaps.
func (r *PgRepository) InsertBooking(ctx context.Context, b Booking) (*Booking, error) {
	id := b.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	refund := b.RefundStatus
	if refund == "" {
		refund = RefundNone
	}
	var details []byte
	if len(b.Details) > 0 {
		details = b.Details
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (
			id, reference, booking_date, start_minute, duration_minutes, booking_type, source,
			label, service_code, client_name, client_email, client_phone, details, status,
			payment_id, amount_cents, currency, refund_status, created_at, updated_at
		)
		SELECT $1, $2, $3::date, $4::int, $5::int, $6::text, $7, $8, $9, $10, $11, $12, $13, 'booked',
		       $14, $15, $16, $17, now(), now()
		WHERE EXISTS (
			SELECT 1 FROM availability_windows
			WHERE window_date = $3::date
			  AND window_type = $6::text
			  AND start_minute <= $4::int
			  AND end_minute >= $4::int + $5::int
			FOR SHARE
		)
		RETURNING `+bookingColumns,
		id, b.Reference, b.Date, b.Time, b.Duration, string(b.Type), string(b.Source),
		b.Label, b.ServiceCode, b.Client.Name, b.Client.Email, b.Client.Phone, details,
		b.PaymentID, b.AmountCents, b.Currency, string(refund),
	)

	inserted, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrOutsideAvailability
		}
		if isExclusionViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return inserted, nil
}

func (r *PgRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) GetBookingByReference(ctx context.Context, ref string) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE reference = $1
	`, ref)
	return scanBooking(row)
}

func (r *PgRepository) ListBookings(ctx context.Context, date time.Time, includeCanceled bool) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE booking_date = $1
		  AND ($2 OR status = 'booked')
		ORDER BY start_minute, created_at
	`, date, includeCanceled)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	return collectBookings(rows)
}

// CancelBooking only transitions active bookings; the bool reports whether anything changed.
func (r *PgRepository) CancelBooking(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'canceled',
		    cancel_reason = $2,
		    canceled_at = $3,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'booked'
		RETURNING `+bookingColumns, id, reason, at)

	b, err := scanBooking(row)
	if err == nil {
		return b, true, nil
	}
	if !errors.Is(err, ErrBookingNotFound) {
		return nil, false, fmt.Errorf("cancel booking: %w", err)
	}

	existing, err := r.GetBooking(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PgRepository) SetRefundStatus(ctx context.Context, id uuid.UUID, status RefundStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET refund_status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns, id, string(status))
	return scanBooking(row)
}
