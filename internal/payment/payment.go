// Package payment is the boundary to the card processor: charge an amount,
// report success or decline, and refund.
package payment

import (
	"context"
	"errors"
)

var ErrPaymentDeclined = errors.New("payment declined")

type ChargeRequest struct {
	AmountCents    int64
	Currency       string
	ClientRef      string
	Description    string
	PaymentMethod  string
	IdempotencyKey string
	Metadata       map[string]string
}

type ChargeResult struct {
	Success           bool
	ExternalPaymentID string
	Status            string
	DeclineReason     string
}

// Charger reports a decline as Success=false with a nil error. Errors mean
// the processor could not be reached or rejected the request itself.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, externalPaymentID string) error
}
