package notification

import (
	"context"
	"time"

	"bloomdispatch/models"
)

// Dispatcher fans out messages after a transition has been committed.
// Methods never return errors: delivery is best-effort and failures are
// logged where they happen.
type Dispatcher interface {
	// BookingConfirmed notifies the winning provider, the customer and operations.
	BookingConfirmed(ctx context.Context, booking *models.Booking, provider *models.Provider)
	// BookingDeclined tells the customer no provider will take the booking.
	BookingDeclined(ctx context.Context, booking *models.Booking, reason string)
	// AlternatesSought sends accept/decline links to every candidate and tells
	// the customer that alternates are being contacted.
	AlternatesSought(ctx context.Context, booking *models.Booking, candidates []models.Provider, window time.Duration)
}
