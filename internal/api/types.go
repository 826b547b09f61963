package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
)

type WindowRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
	Type  string `json:"type"`
}

type UpdateWindowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type WindowResponse struct {
	ID    uuid.UUID `json:"id"`
	Date  string    `json:"date"`
	Start string    `json:"start"`
	End   string    `json:"end"`
	Type  string    `json:"type"`
	Range string    `json:"range"`
}

type SegmentResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ProposalResponse struct {
	ID       uuid.UUID         `json:"id"`
	Date     string            `json:"date"`
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Type     string            `json:"type"`
	State    string            `json:"state"`
	Overlaps []string          `json:"overlaps,omitempty"`
	Segments []SegmentResponse `json:"segments,omitempty"`
	Windows  []WindowResponse  `json:"windows,omitempty"`
}

type SlotResponse struct {
	Key       string     `json:"key"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	End       string     `json:"end"`
	Duration  int        `json:"duration"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	IsBooked  bool       `json:"is_booked"`
	BookedBy  string     `json:"booked_by,omitempty"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	Source    string     `json:"source,omitempty"`
	NextDay   bool       `json:"next_day,omitempty"`
}

type CheckoutRequest struct {
	ServiceCode    string            `json:"service_code"`
	Date           string            `json:"date"`
	Time           string            `json:"time"`
	Type           string            `json:"type"`
	Client         scheduling.Client `json:"client"`
	Details        json.RawMessage   `json:"details,omitempty"`
	PaymentMethod  string            `json:"payment_method"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

type BlockRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type BookingResponse struct {
	ID           uuid.UUID         `json:"id"`
	Reference    string            `json:"reference"`
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	End          string            `json:"end"`
	Duration     int               `json:"duration"`
	Type         string            `json:"type"`
	Source       string            `json:"source"`
	BookedBy     string            `json:"booked_by"`
	ServiceCode  string            `json:"service_code,omitempty"`
	Client       scheduling.Client `json:"client"`
	Details      json.RawMessage   `json:"details,omitempty"`
	Status       string            `json:"status"`
	AmountCents  int64             `json:"amount_cents,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	RefundStatus string            `json:"refund_status"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	CanceledAt   *time.Time        `json:"canceled_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toWindowResponse(w scheduling.Window) WindowResponse {
	return WindowResponse{
		ID:    w.ID,
		Date:  timeutil.FormatDate(w.Date),
		Start: timeutil.FormatTime(w.Start),
		End:   timeutil.FormatTime(w.End),
		Type:  string(w.Type),
		Range: w.Range(),
	}
}

func toWindowResponses(ws []scheduling.Window) []WindowResponse {
	out := make([]WindowResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWindowResponse(w))
	}
	return out
}

func toProposalResponse(p *scheduling.Proposal) ProposalResponse {
	resp := ProposalResponse{
		ID:    p.ID,
		Date:  timeutil.FormatDate(p.Date),
		Start: timeutil.FormatTime(p.Start),
		End:   timeutil.FormatTime(p.End),
		Type:  string(p.Type),
		State: string(p.State),
	}
	if len(p.Overlaps) > 0 {
		resp.Overlaps = p.OverlapLabels()
	}
	for _, s := range p.Segments {
		resp.Segments = append(resp.Segments, SegmentResponse{
			Start: timeutil.FormatTime(s.Start),
			End:   timeutil.FormatTime(s.End),
		})
	}
	if len(p.Windows) > 0 {
		resp.Windows = toWindowResponses(p.Windows)
	}
	return resp
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		Key:       s.Key().String(),
		Date:      timeutil.FormatDate(s.Date),
		Time:      timeutil.FormatTime(s.Time),
		End:       timeutil.FormatTime(s.End()),
		Duration:  s.Duration,
		Type:      string(s.Type),
		Status:    string(s.Status),
		IsBooked:  s.IsBooked,
		BookedBy:  s.BookedBy,
		BookingID: s.BookingID,
		Source:    string(s.Source),
		NextDay:   s.NextDay,
	}
}

func toBookingResponse(b *scheduling.Booking) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		Reference:    b.Reference,
		Date:         timeutil.FormatDate(b.Date),
		Time:         timeutil.FormatTime(b.Time),
		End:          timeutil.FormatTime(b.End()),
		Duration:     b.Duration,
		Type:         string(b.Type),
		Source:       string(b.Source),
		BookedBy:     b.BookedBy(),
		ServiceCode:  b.ServiceCode,
		Client:       b.Client,
		Details:      b.Details,
		Status:       string(b.Status),
		AmountCents:  b.AmountCents,
		Currency:     b.Currency,
		RefundStatus: string(b.RefundStatus),
		CancelReason: b.CancelReason,
		CanceledAt:   b.CanceledAt,
		CreatedAt:    b.CreatedAt,
	}
}
