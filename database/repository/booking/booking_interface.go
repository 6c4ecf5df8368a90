package bookingRepo

import (
	"context"
	"time"

	"bloomdispatch/models"
)

// TransitionUpdate carries the fields a guarded status transition writes.
type TransitionUpdate struct {
	Status models.BookingStatus
	// RespondingProviderID is written only when non-empty.
	RespondingProviderID string
	UpdatedAt            time.Time
}

// StaleRequestedQuery selects initial occurrences that nobody has answered.
type StaleRequestedQuery struct {
	CreatedBefore            time.Time
	UpdatedBefore            time.Time
	ExcludedReferencePattern string
}

// StaleReassignedQuery selects fan-out bookings that nobody has accepted.
type StaleReassignedQuery struct {
	UpdatedBefore            time.Time
	ExcludedReferencePattern string
}

// BookingRepository is the booking store as seen by the assignment state machine.
// Conditional writes report the number of affected documents; a zero count means
// the precondition no longer held and is never returned as an error.
type BookingRepository interface {
	// GetByReference loads a booking by its human-readable reference code.
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	// GetByID loads a booking by internal id.
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// GetInitialOccurrence loads occurrence 0 of a series.
	GetInitialOccurrence(ctx context.Context, seriesID string) (*models.Booking, error)
	// StampResponseRecorded unconditionally marks that a response attempt began.
	StampResponseRecorded(ctx context.Context, bookingID string, at time.Time) error
	// TransitionStatus applies update only while the booking's status is one of from.
	TransitionStatus(ctx context.Context, bookingID string, from []models.BookingStatus, update TransitionUpdate) (int64, error)
	// ListSeriesFollowers returns other occurrences of a series in one of statuses.
	ListSeriesFollowers(ctx context.Context, seriesID, excludeBookingID string, statuses []models.BookingStatus) ([]models.Booking, error)
	// FindStaleRequested returns sweep candidate set A.
	FindStaleRequested(ctx context.Context, q StaleRequestedQuery) ([]models.Booking, error)
	// FindStaleReassigned returns sweep candidate set B.
	FindStaleReassigned(ctx context.Context, q StaleReassignedQuery) ([]models.Booking, error)
	// ListProviderBookingsBetween returns bookings held by a provider starting in [from, to).
	ListProviderBookingsBetween(ctx context.Context, providerID string, from, to time.Time, statuses []models.BookingStatus, excludeBookingID string) ([]models.Booking, error)
	// MarkPaymentCaptured records a successful capture on the booking.
	MarkPaymentCaptured(ctx context.Context, bookingID string, at time.Time) error
	// AppendHistory inserts an audit entry.
	AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	// ListHistory returns a booking's audit entries oldest first.
	ListHistory(ctx context.Context, bookingID string) ([]models.StatusHistoryEntry, error)
}
