package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"
)

// Capturer settles a previously authorised payment.
type Capturer interface {
	Capture(ctx context.Context, paymentIntentID, idempotencyKey string) error
}

// StripeCapturer captures payment intents using the process-wide stripe.Key.
type StripeCapturer struct {
	Logger *zap.Logger
}

func NewStripeCapturer(logger *zap.Logger) *StripeCapturer {
	return &StripeCapturer{Logger: logger}
}

func (c *StripeCapturer) Capture(ctx context.Context, paymentIntentID, idempotencyKey string) error {
	if paymentIntentID == "" {
		return fmt.Errorf("missing payment intent id")
	}
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := paymentintent.Capture(paymentIntentID, params)
	if err != nil {
		return fmt.Errorf("stripe capture %s: %w", paymentIntentID, err)
	}
	c.Logger.Info("payment captured",
		zap.String("payment_intent", pi.ID),
		zap.String("status", string(pi.Status)),
		zap.Int64("amount_received", pi.AmountReceived))
	return nil
}

// CaptureKey derives a stable idempotency key so a repeated confirmation
// never captures twice.
func CaptureKey(bookingID string) string {
	return "booking-capture-" + bookingID
}
