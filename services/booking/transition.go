package booking

import (
	"context"
	"fmt"
	"time"

	bookingRepo "bloomdispatch/database/repository/booking"
	"bloomdispatch/models"
	"bloomdispatch/services/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transition describes one guarded status change.
type Transition struct {
	From []models.BookingStatus
	To   models.BookingStatus
	// RespondingProviderID is set only by explicit responses.
	RespondingProviderID string
	// Actor is the provider that caused the change; empty for the system.
	Actor string
	Note  string
}

// Transitioner applies guarded transitions and the side effects every caller
// shares: the audit entry and the notifications that follow a committed change.
type Transitioner struct {
	Bookings bookingRepo.BookingRepository
	Notifier notification.Dispatcher
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewTransitioner(bookings bookingRepo.BookingRepository, notifier notification.Dispatcher, logger *zap.Logger) *Transitioner {
	return &Transitioner{Bookings: bookings, Notifier: notifier, Logger: logger, Now: time.Now}
}

func (t *Transitioner) now() time.Time {
	if t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}

// Apply runs the conditional update. It returns false without error when the
// booking had already left every status in tr.From. On success b is updated in
// place and a history entry is appended; a failed append is logged because the
// transition itself is already committed.
func (t *Transitioner) Apply(ctx context.Context, b *models.Booking, tr Transition) (bool, error) {
	now := t.now()
	n, err := t.Bookings.TransitionStatus(ctx, b.ID, tr.From, bookingRepo.TransitionUpdate{
		Status:               tr.To,
		RespondingProviderID: tr.RespondingProviderID,
		UpdatedAt:            now,
	})
	if err != nil {
		return false, NewDependencyError(fmt.Sprintf("failed to update booking %s", b.Reference), err)
	}
	if n == 0 {
		t.Logger.Info("transition precondition no longer holds",
			zap.String("booking", b.Reference),
			zap.Any("expected", tr.From),
			zap.String("to", string(tr.To)))
		return false, nil
	}

	// The write is committed; what follows must not be cut short by the caller.
	ctx = AfterCommit(ctx)

	from := b.Status
	b.Status = tr.To
	b.UpdatedAt = &now
	if tr.RespondingProviderID != "" {
		b.RespondingProviderID = tr.RespondingProviderID
	}

	t.Logger.Info("booking transitioned",
		zap.String("booking", b.Reference),
		zap.String("from", string(from)),
		zap.String("to", string(tr.To)),
		zap.String("actor", actorName(tr.Actor)))

	if err := t.appendHistory(ctx, b, tr.To, tr.Actor, tr.Note, now); err != nil {
		t.Logger.Error("failed to append status history",
			zap.String("booking", b.Reference),
			zap.String("status", string(tr.To)),
			zap.Error(err))
	}
	return true, nil
}

// RecordHistory appends an audit entry without touching the booking.
func (t *Transitioner) RecordHistory(ctx context.Context, b *models.Booking, actor, note string) error {
	if err := t.appendHistory(ctx, b, b.Status, actor, note, t.now()); err != nil {
		return NewDependencyError(fmt.Sprintf("failed to record response for booking %s", b.Reference), err)
	}
	return nil
}

// Decline moves b to declined and tells the customer.
func (t *Transitioner) Decline(ctx context.Context, b *models.Booking, tr Transition, reason string) (bool, error) {
	tr.To = models.StatusDeclined
	ok, err := t.Apply(ctx, b, tr)
	if err != nil || !ok {
		return ok, err
	}
	t.Notifier.BookingDeclined(AfterCommit(ctx), b, reason)
	return true, nil
}

// SeekAlternates moves b into a fan-out status and offers it to candidates.
func (t *Transitioner) SeekAlternates(ctx context.Context, b *models.Booking, tr Transition, candidates []models.Provider, window time.Duration) (bool, error) {
	ok, err := t.Apply(ctx, b, tr)
	if err != nil || !ok {
		return ok, err
	}
	t.Notifier.AlternatesSought(AfterCommit(ctx), b, candidates, window)
	return true, nil
}

func (t *Transitioner) appendHistory(ctx context.Context, b *models.Booking, status models.BookingStatus, actor, note string, at time.Time) error {
	return t.Bookings.AppendHistory(ctx, &models.StatusHistoryEntry{
		ID:               uuid.New().String(),
		BookingID:        b.ID,
		BookingReference: b.Reference,
		Status:           status,
		ActorProviderID:  actor,
		Note:             note,
		RecordedAt:       at,
	})
}

// AfterCommit detaches ctx from its cancellation and deadline while keeping its
// values. Side effects of a committed transition run on it so a client that
// disconnects cannot leave a series half confirmed or a capture unissued.
func AfterCommit(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func actorName(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
