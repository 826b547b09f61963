package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/tarot-booking/pkg/logging"
)

var stripeTracer = otel.Tracer("tarot.internal.payment.stripe")

// StripeCharger confirms a PaymentIntent synchronously with the payment method
// the client collected, and refunds by PaymentIntent id.
type StripeCharger struct {
	api    *client.API
	logger *logging.Logger
}

func NewStripeCharger(secretKey string, logger *logging.Logger) *StripeCharger {
	return newStripeCharger(secretKey, nil, logger)
}

// NewStripeChargerWithBaseURL points the client at another API host (for testing).
func NewStripeChargerWithBaseURL(secretKey, baseURL string, logger *logging.Logger) *StripeCharger {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(strings.TrimRight(baseURL, "/")),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	return newStripeCharger(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, logger)
}

func newStripeCharger(secretKey string, backends *stripe.Backends, logger *logging.Logger) *StripeCharger {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeCharger{
		api:    client.New(secretKey, backends),
		logger: logger,
	}
}

func (c *StripeCharger) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	ctx, span := stripeTracer.Start(ctx, "payment.stripe.Charge")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payment.amount_cents", req.AmountCents),
		attribute.String("payment.currency", req.Currency),
	)

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	params.AddMetadata("client_ref", req.ClientRef)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			c.logger.Info("stripe card declined", "code", stripeErr.Code, "client_ref", req.ClientRef)
			return ChargeResult{Success: false, Status: "declined", DeclineReason: stripeErr.Msg}, nil
		}
		span.RecordError(err)
		c.logger.Error("stripe payment intent failed", "error", err, "client_ref", req.ClientRef)
		return ChargeResult{}, fmt.Errorf("create payment intent: %w", err)
	}

	result := ChargeResult{
		Success:           pi.Status == stripe.PaymentIntentStatusSucceeded,
		ExternalPaymentID: pi.ID,
		Status:            string(pi.Status),
	}
	if !result.Success {
		result.DeclineReason = "payment intent " + string(pi.Status)
	}
	span.SetAttributes(attribute.String("payment.status", result.Status))
	return result, nil
}

func (c *StripeCharger) Refund(ctx context.Context, externalPaymentID string) error {
	ctx, span := stripeTracer.Start(ctx, "payment.stripe.Refund")
	defer span.End()

	params := &stripe.RefundParams{PaymentIntent: stripe.String(externalPaymentID)}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("refund:" + externalPaymentID)

	if _, err := c.api.Refunds.New(params); err != nil {
		span.RecordError(err)
		return fmt.Errorf("create refund for %s: %w", externalPaymentID, err)
	}
	c.logger.Info("stripe refund created", "payment_intent", externalPaymentID)
	return nil
}
