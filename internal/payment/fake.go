package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DeclinedPaymentMethod makes FakeCharger decline, mirroring Stripe's test card token.
const DeclinedPaymentMethod = "pm_card_chargeDeclined"

// FakeCharger approves every charge except DeclinedPaymentMethod. For local runs and tests.
type FakeCharger struct {
	mu       sync.Mutex
	charges  []ChargeRequest
	refunded map[string]bool
	err      error
}

func NewFakeCharger() *FakeCharger {
	return &FakeCharger{refunded: make(map[string]bool)}
}

// FailWith makes every later call return err.
func (f *FakeCharger) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeCharger) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return ChargeResult{}, f.err
	}
	f.charges = append(f.charges, req)
	if req.PaymentMethod == DeclinedPaymentMethod {
		return ChargeResult{Success: false, Status: "declined", DeclineReason: "card declined"}, nil
	}
	return ChargeResult{
		Success:           true,
		ExternalPaymentID: "fake_" + uuid.NewString(),
		Status:            "succeeded",
	}, nil
}

func (f *FakeCharger) Refund(ctx context.Context, externalPaymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if externalPaymentID == "" {
		return fmt.Errorf("refund: empty payment id")
	}
	f.refunded[externalPaymentID] = true
	return nil
}

func (f *FakeCharger) Charges() []ChargeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChargeRequest(nil), f.charges...)
}

func (f *FakeCharger) Refunded(externalPaymentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refunded[externalPaymentID]
}
