package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var windowCols = []string{"id", "seq", "window_date", "start_minute", "end_minute", "window_type", "created_at"}

var bookingCols = []string{
	"id", "reference", "booking_date", "start_minute", "duration_minutes", "booking_type", "source",
	"label", "service_code", "client_name", "client_email", "client_phone", "details", "status", "payment_id",
	"amount_cents", "currency", "refund_status", "cancel_reason", "canceled_at", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, newPgRepositoryWithConn(mock)
}

func bookingRow(b Booking) []any {
	return []any{
		b.ID, b.Reference, b.Date, b.Time, b.Duration, string(b.Type), string(b.Source),
		b.Label, b.ServiceCode, b.Client.Name, b.Client.Email, b.Client.Phone, []byte(b.Details), string(b.Status), b.PaymentID,
		b.AmountCents, b.Currency, string(b.RefundStatus), b.CancelReason, b.CanceledAt, b.CreatedAt, b.UpdatedAt,
	}
}

func sampleBooking(t *testing.T) Booking {
	now := time.Now().UTC()
	id := uuid.New()
	date := mustDate(t, "2025-06-10")
	return Booking{
		ID:           id,
		Reference:    NewReference(date, id),
		Date:         date,
		Time:         560,
		Duration:     20,
		Type:         WindowRegular,
		Source:       SourceClientBooking,
		ServiceCode:  "live-20",
		Client:       Client{Name: "Asha", Email: "asha@example.com"},
		Details:      []byte(`{"question":"career"}`),
		Status:       BookingBooked,
		PaymentID:    "pi_123",
		AmountCents:  6600,
		Currency:     "EUR",
		RefundStatus: RefundNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPgListWindows(t *testing.T) {
	mock, repo := newMockRepo(t)
	date := mustDate(t, "2025-06-10")
	now := time.Now().UTC()

	rows := pgxmock.NewRows(windowCols).
		AddRow(uuid.New(), int64(1), date, 540, 720, "regular", now).
		AddRow(uuid.New(), int64(2), date, 1200, 1320, "emergency", now)
	mock.ExpectQuery("FROM availability_windows").WithArgs(date).WillReturnRows(rows)

	windows, err := repo.ListWindows(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "09:00-12:00", windows[0].Range())
	assert.Equal(t, WindowEmergency, windows[1].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetWindowNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery("FROM availability_windows").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetWindow(context.Background(), id)
	require.ErrorIs(t, err, ErrWindowNotFound)
}

func TestPgInsertWindowsMapsExclusionViolation(t *testing.T) {
	mock, repo := newMockRepo(t)
	date := mustDate(t, "2025-06-10")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO availability_windows").
		WithArgs(pgxmock.AnyArg(), date, 720, 780, "regular").
		WillReturnError(&pgconn.PgError{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})
	mock.ExpectRollback()

	_, err := repo.InsertWindows(context.Background(), []Window{{Date: date, Start: 720, End: 780, Type: WindowRegular}})
	require.ErrorIs(t, err, ErrDuplicateOverlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertWindowsCommits(t *testing.T) {
	mock, repo := newMockRepo(t)
	date := mustDate(t, "2025-06-10")
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO availability_windows").
		WithArgs(pgxmock.AnyArg(), date, 540, 600, "regular").
		WillReturnRows(pgxmock.NewRows(windowCols).AddRow(uuid.New(), int64(7), date, 540, 600, "regular", now))
	mock.ExpectQuery("INSERT INTO availability_windows").
		WithArgs(pgxmock.AnyArg(), date, 660, 720, "regular").
		WillReturnRows(pgxmock.NewRows(windowCols).AddRow(uuid.New(), int64(8), date, 660, 720, "regular", now))
	mock.ExpectCommit()

	windows, err := repo.InsertWindows(context.Background(), []Window{
		{Date: date, Start: 540, End: 600, Type: WindowRegular},
		{Date: date, Start: 660, End: 720, Type: WindowRegular},
	})
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, int64(8), windows[1].Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDeleteWindowBlockedByBookings(t *testing.T) {
	mock, repo := newMockRepo(t)
	date := mustDate(t, "2025-06-10")
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM availability_windows").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(windowCols).AddRow(id, int64(1), date, 540, 720, "regular", time.Now()))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(date, "regular", 540, 720).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.DeleteWindowIfUnbooked(context.Background(), id)
	require.ErrorIs(t, err, ErrHasActiveBookings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDeleteWindow(t *testing.T) {
	mock, repo := newMockRepo(t)
	date := mustDate(t, "2025-06-10")
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM availability_windows").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(windowCols).AddRow(id, int64(1), date, 540, 720, "regular", time.Now()))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(date, "regular", 540, 720).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("DELETE FROM availability_windows").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteWindowIfUnbooked(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectLockedWindow(mock pgxmock.PgxPoolIface, id uuid.UUID, date time.Time) {
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(windowCols).AddRow(id, int64(1), date, 540, 720, "regular", time.Now()))
}

func TestPgUpdateWindow(t *testing.T) {
	mock, repo := newMockRepo(t)
	date := mustDate(t, "2025-06-10")
	id := uuid.New()

	expectLockedWindow(mock, id, date)
	mock.ExpectQuery("SELECT EXISTS").WithArgs(date, "regular", 540, 720, 480, 660).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("UPDATE availability_windows").WithArgs(id, 480, 660).
		WillReturnRows(pgxmock.NewRows(windowCols).AddRow(id, int64(1), date, 480, 660, "regular", time.Now()))
	mock.ExpectCommit()

	w, err := repo.UpdateWindow(context.Background(), id, 480, 660)
	require.NoError(t, err)
	assert.Equal(t, "08:00-11:00", w.Range())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateWindowErrors(t *testing.T) {
	date := mustDate(t, "2025-06-10")

	t.Run("strands a booking", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := uuid.New()

		expectLockedWindow(mock, id, date)
		mock.ExpectQuery("SELECT EXISTS").WithArgs(date, "regular", 540, 720, 600, 720).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := repo.UpdateWindow(context.Background(), id, 600, 720)
		require.ErrorIs(t, err, ErrHasActiveBookings)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overlaps a sibling", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := uuid.New()

		expectLockedWindow(mock, id, date)
		mock.ExpectQuery("SELECT EXISTS").WithArgs(date, "regular", 540, 720, 540, 780).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("UPDATE availability_windows").WithArgs(id, 540, 780).
			WillReturnError(&pgconn.PgError{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})
		mock.ExpectRollback()

		_, err := repo.UpdateWindow(context.Background(), id, 540, 780)
		require.ErrorIs(t, err, ErrDuplicateOverlap)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing window", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs(id).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.UpdateWindow(context.Background(), id, 540, 600)
		require.ErrorIs(t, err, ErrWindowNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgSetRefundStatus(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := sampleBooking(t)

	refunded := b
	refunded.RefundStatus = RefundRefunded
	mock.ExpectQuery("SET refund_status").WithArgs(b.ID, "refunded").
		WillReturnRows(pgxmock.NewRows(bookingCols).AddRow(bookingRow(refunded)...))

	got, err := repo.SetRefundStatus(context.Background(), b.ID, RefundRefunded)
	require.NoError(t, err)
	assert.Equal(t, RefundRefunded, got.RefundStatus)

	missing := uuid.New()
	mock.ExpectQuery("SET refund_status").WithArgs(missing, "failed").WillReturnError(pgx.ErrNoRows)

	_, err = repo.SetRefundStatus(context.Background(), missing, RefundFailed)
	require.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertBooking(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := sampleBooking(t)

	mock.ExpectQuery("INSERT INTO bookings").WithArgs(anyArgs(17)...).
		WillReturnRows(pgxmock.NewRows(bookingCols).AddRow(bookingRow(b)...))

	got, err := repo.InsertBooking(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, SourceClientBooking, got.Source)
	assert.Equal(t, "asha@example.com", got.Client.Email)
	assert.JSONEq(t, `{"question":"career"}`, string(got.Details))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertBookingErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"overlap", &pgconn.PgError{Code: "23P01"}, ErrSlotConflict},
		{"no covering window", pgx.ErrNoRows, ErrOutsideAvailability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			mock.ExpectQuery("INSERT INTO bookings").WithArgs(anyArgs(17)...).WillReturnError(tt.err)

			_, err := repo.InsertBooking(context.Background(), sampleBooking(t))
			require.ErrorIs(t, err, tt.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgCancelBookingIdempotent(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := sampleBooking(t)
	at := time.Now().UTC()

	canceled := b
	canceled.Status = BookingCanceled
	canceled.CanceledAt = &at
	canceled.CancelReason = "client request"

	mock.ExpectQuery("UPDATE bookings").WithArgs(b.ID, "client request", at).
		WillReturnRows(pgxmock.NewRows(bookingCols).AddRow(bookingRow(canceled)...))

	got, changed, err := repo.CancelBooking(context.Background(), b.ID, "client request", at)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, BookingCanceled, got.Status)

	mock.ExpectQuery("UPDATE bookings").WithArgs(b.ID, "again", at).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM bookings").WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingCols).AddRow(bookingRow(canceled)...))

	got, changed, err = repo.CancelBooking(context.Background(), b.ID, "again", at)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "client request", got.CancelReason)

	missing := uuid.New()
	mock.ExpectQuery("UPDATE bookings").WithArgs(missing, "", at).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM bookings").WithArgs(missing).WillReturnError(pgx.ErrNoRows)

	_, _, err = repo.CancelBooking(context.Background(), missing, "", at)
	require.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListBookings(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := sampleBooking(t)

	mock.ExpectQuery("FROM bookings").WithArgs(b.Date, false).
		WillReturnRows(pgxmock.NewRows(bookingCols).AddRow(bookingRow(b)...))

	bookings, err := repo.ListBookings(context.Background(), b.Date, false)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, b.Reference, bookings[0].Reference)
	require.NoError(t, mock.ExpectationsWereMet())
}
