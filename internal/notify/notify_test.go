package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
)

func sampleBooking(t *testing.T) scheduling.Booking {
	t.Helper()
	date, err := timeutil.ParseDate("2026-03-02")
	require.NoError(t, err)
	id := uuid.New()
	return scheduling.Booking{
		ID:          id,
		Reference:   scheduling.NewReference(date, id),
		Date:        date,
		Time:        9*60 + 20,
		Duration:    20,
		Type:        scheduling.WindowRegular,
		Source:      scheduling.SourceClientBooking,
		ServiceCode: "live-20",
		Client:      scheduling.Client{Name: "Ada", Email: "ada@example.com"},
		Status:      scheduling.BookingBooked,
		AmountCents: 6600,
		Currency:    "EUR",
	}
}

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "booking.confirmed.v1", "agg-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	_, err = store.Insert(ctx, "booking.confirmed.v1", "agg-1", map[string]string{"foo": "bar"})
	require.NoError(t, err)

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "event_type", "aggregate_id", "payload", "attempts", "created_at"}).
		AddRow(id, "booking.confirmed.v1", "agg-1", []byte(`{"foo":"bar"}`), 0, now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10), maxAttempts).WillReturnRows(rows)

	entries, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.JSONEq(t, `{"foo":"bar"}`, string(entries[0].Payload))

	mock.ExpectExec("UPDATE outbox").WithArgs(id, "boom").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.MarkFailed(ctx, id, "boom"))

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

type recordingSender struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestDelivererDeliversAndRetries(t *testing.T) {
	ctx := context.Background()
	outbox := NewMemoryOutbox()
	emitter := NewOutboxEmitter(outbox)
	b := sampleBooking(t)

	require.NoError(t, emitter.Emit(ctx, scheduling.EventBookingConfirmed, b))
	assert.Equal(t, 1, outbox.Pending())

	failing := HandlerFunc(func(ctx context.Context, e Entry) error { return errors.New("smtp down") })
	d := NewDeliverer(outbox, failing, nil)
	n, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, outbox.Pending())

	pending, err := outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	sender := &recordingSender{}
	d = NewDeliverer(outbox, NewEmailHandler(sender, "reader@example.com", time.UTC, nil), nil)
	n, err = d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, outbox.Pending())
	require.Len(t, sender.sent, 2)
}

func TestMemoryOutboxGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	outbox := NewMemoryOutbox()
	id, err := outbox.Insert(ctx, "x", "agg", struct{}{})
	require.NoError(t, err)

	for i := 0; i < maxAttempts; i++ {
		require.NoError(t, outbox.MarkFailed(ctx, id, "nope"))
	}
	pending, err := outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEmailHandlerConfirmation(t *testing.T) {
	ctx := context.Background()
	b := sampleBooking(t)
	payload, err := json.Marshal(NewBookingEvent(b, time.Now()))
	require.NoError(t, err)

	sender := &recordingSender{}
	h := NewEmailHandler(sender, "reader@example.com", time.UTC, nil)
	require.NoError(t, h.Handle(ctx, Entry{ID: uuid.New(), EventType: scheduling.EventBookingConfirmed, Payload: payload}))

	require.Len(t, sender.sent, 2)
	client, admin := sender.sent[0], sender.sent[1]
	assert.Equal(t, "ada@example.com", client.To)
	assert.Contains(t, client.Subject, b.Reference)
	assert.Contains(t, client.Body, "66.00 EUR")
	assert.Equal(t, "reader@example.com", admin.To)
	assert.Equal(t, "NEW BOOKING: Ada", admin.Subject)
	require.Len(t, client.Attachments, 1)
	assert.Equal(t, "invite.ics", client.Attachments[0].Filename)
}

func TestEmailHandlerSkipsOtherEvents(t *testing.T) {
	sender := &recordingSender{}
	h := NewEmailHandler(sender, "reader@example.com", time.UTC, nil)
	require.NoError(t, h.Handle(context.Background(), Entry{EventType: "something.else.v1", Payload: []byte(`{}`)}))
	assert.Empty(t, sender.sent)
}

func TestEmailHandlerReportsSendFailure(t *testing.T) {
	b := sampleBooking(t)
	payload, err := json.Marshal(NewBookingEvent(b, time.Now()))
	require.NoError(t, err)

	h := NewEmailHandler(&recordingSender{err: errors.New("rejected")}, "", time.UTC, nil)
	err = h.Handle(context.Background(), Entry{EventType: scheduling.EventBookingConfirmed, Payload: payload})
	assert.Error(t, err)
}

func TestBuildInvite(t *testing.T) {
	b := sampleBooking(t)
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	data, err := BuildInvite(NewBookingEvent(b, time.Now()), "reader@example.com", loc, time.Now())
	require.NoError(t, err)

	cal, err := ics.ParseCalendar(strings.NewReader(string(data)))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)

	start, err := events[0].GetStartAt()
	require.NoError(t, err)
	// 09:20 IST is 03:50 UTC.
	assert.Equal(t, time.Date(2026, 3, 2, 3, 50, 0, 0, time.UTC), start.UTC())
	end, err := events[0].GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, end.Sub(start))
	assert.Contains(t, string(data), "METHOD:REQUEST")

	b.Status = scheduling.BookingCanceled
	data, err = BuildInvite(NewBookingEvent(b, time.Now()), "", loc, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(data), "METHOD:CANCEL")
	assert.Contains(t, string(data), "STATUS:CANCELLED")
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisherWithWriter(w)
	id := uuid.New()

	err := p.Handle(context.Background(), Entry{
		ID:          id,
		EventType:   scheduling.EventBookingCanceled,
		AggregateID: "booking-1",
		Payload:     []byte(`{"status":"canceled"}`),
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, scheduling.EventBookingCanceled, msg.Topic)
	assert.Equal(t, "booking-1", string(msg.Key))
	assert.Equal(t, id.String(), headerValue(msg.Headers, "event_id"))
	assert.Equal(t, scheduling.EventBookingCanceled, headerValue(msg.Headers, "event_type"))

	w.err = errors.New("broker unavailable")
	assert.Error(t, p.Handle(context.Background(), Entry{ID: id, EventType: "x"}))
}

func TestMultiHandlerJoinsErrors(t *testing.T) {
	calls := 0
	ok := HandlerFunc(func(ctx context.Context, e Entry) error { calls++; return nil })
	bad := HandlerFunc(func(ctx context.Context, e Entry) error { calls++; return errors.New("bad") })

	err := MultiHandler{ok, nil, bad, ok}.Handle(context.Background(), Entry{})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.NoError(t, MultiHandler{ok}.Handle(context.Background(), Entry{}))
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "x@example.com"}, nil))

	s := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "x@example.com"}, nil)
	require.NotNil(t, s)
	assert.Equal(t, "Tarot Readings", s.fromName)

	msg := buildSendGridMessage("Tarot", "x@example.com", EmailMessage{
		To:          "ada@example.com",
		Subject:     "hi",
		Body:        "body",
		Attachments: []Attachment{{Filename: "invite.ics", ContentType: "text/calendar", Content: []byte("BEGIN:VCALENDAR")}},
	})
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invite.ics", msg.Attachments[0].Filename)
	assert.Equal(t, "attachment", msg.Attachments[0].Disposition)
}

func TestNewBookingHandler(t *testing.T) {
	h, closeFn := NewBookingHandler(HandlerConfig{AdminEmail: "reader@example.com"}, nil)
	require.Len(t, h, 1)
	assert.NoError(t, closeFn())

	h, closeFn = NewBookingHandler(HandlerConfig{KafkaBrokers: []string{"localhost:9092"}}, nil)
	require.Len(t, h, 2)
	_, ok := h[1].(*KafkaPublisher)
	assert.True(t, ok)
	assert.NoError(t, closeFn())
}
