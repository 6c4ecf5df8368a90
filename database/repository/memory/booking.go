// Package memory holds in-process repositories with the same conditional-write
// semantics as the Mongo implementations. Services are tested against them.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"bloomdispatch/database"
	bookingRepo "bloomdispatch/database/repository/booking"
	"bloomdispatch/models"
)

// BookingRepo is a mutex-guarded booking and history store.
type BookingRepo struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
	history  []models.StatusHistoryEntry

	// FailTransitions makes TransitionStatus fail for the listed booking ids.
	FailTransitions map[string]error
}

var _ bookingRepo.BookingRepository = (*BookingRepo)(nil)

func NewBookingRepo(bookings ...models.Booking) *BookingRepo {
	r := &BookingRepo{bookings: make(map[string]models.Booking)}
	for _, b := range bookings {
		r.bookings[b.ID] = b
	}
	return r
}

// Put inserts or replaces a booking.
func (r *BookingRepo) Put(b models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
}

// Snapshot returns a copy of the stored booking.
func (r *BookingRepo) Snapshot(id string) models.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookings[id]
}

// History returns every recorded entry for a booking.
func (r *BookingRepo) History(bookingID string) []models.StatusHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StatusHistoryEntry
	for _, h := range r.history {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out
}

func (r *BookingRepo) GetByReference(_ context.Context, reference string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.Reference == reference {
			b := b
			return &b, nil
		}
	}
	return nil, fmt.Errorf("booking %s: %w", reference, database.ErrNotFound)
}

func (r *BookingRepo) GetByID(_ context.Context, id string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, database.ErrNotFound)
	}
	return &b, nil
}

func (r *BookingRepo) GetInitialOccurrence(_ context.Context, seriesID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.SeriesID == seriesID && b.OccurrenceIndex == 0 {
			b := b
			return &b, nil
		}
	}
	return nil, fmt.Errorf("series %s: %w", seriesID, database.ErrNotFound)
}

func (r *BookingRepo) StampResponseRecorded(_ context.Context, bookingID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil
	}
	b.ResponseRecordedAt = &at
	r.bookings[bookingID] = b
	return nil
}

func (r *BookingRepo) TransitionStatus(_ context.Context, bookingID string, from []models.BookingStatus, update bookingRepo.TransitionUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailTransitions[bookingID]; ok {
		return 0, err
	}
	b, ok := r.bookings[bookingID]
	if !ok || !containsStatus(from, b.Status) {
		return 0, nil
	}
	b.Status = update.Status
	at := update.UpdatedAt
	b.UpdatedAt = &at
	if update.RespondingProviderID != "" {
		b.RespondingProviderID = update.RespondingProviderID
	}
	r.bookings[bookingID] = b
	return 1, nil
}

func (r *BookingRepo) ListSeriesFollowers(_ context.Context, seriesID, excludeBookingID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	if seriesID == "" {
		return out, nil
	}
	for _, b := range r.bookings {
		if b.SeriesID == seriesID && b.ID != excludeBookingID && containsStatus(statuses, b.Status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurrenceIndex < out[j].OccurrenceIndex })
	return out, nil
}

func (r *BookingRepo) FindStaleRequested(_ context.Context, q bookingRepo.StaleRequestedQuery) ([]models.Booking, error) {
	excluded, err := compileExclusion(q.ExcludedReferencePattern)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.Status != models.StatusRequested || b.ResponseRecordedAt != nil || b.OccurrenceIndex != 0 {
			continue
		}
		if !b.CreatedAt.Before(q.CreatedBefore) {
			continue
		}
		if b.UpdatedAt != nil && !b.UpdatedAt.Before(q.UpdatedBefore) {
			continue
		}
		if excluded != nil && excluded.MatchString(b.Reference) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *BookingRepo) FindStaleReassigned(_ context.Context, q bookingRepo.StaleReassignedQuery) ([]models.Booking, error) {
	excluded, err := compileExclusion(q.ExcludedReferencePattern)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if !b.Status.IsFanOut() || b.OccurrenceIndex != 0 {
			continue
		}
		if b.UpdatedAt == nil || !b.UpdatedAt.Before(q.UpdatedBefore) {
			continue
		}
		if excluded != nil && excluded.MatchString(b.Reference) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(*out[j].UpdatedAt) })
	return out, nil
}

func (r *BookingRepo) ListProviderBookingsBetween(_ context.Context, providerID string, from, to time.Time, statuses []models.BookingStatus, excludeBookingID string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.ID == excludeBookingID {
			continue
		}
		if b.AssignedProviderID != providerID && b.RespondingProviderID != providerID {
			continue
		}
		if b.ScheduledAt.Before(from) || !b.ScheduledAt.Before(to) {
			continue
		}
		if containsStatus(statuses, b.Status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *BookingRepo) MarkPaymentCaptured(_ context.Context, bookingID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return fmt.Errorf("booking %s: %w", bookingID, database.ErrNotFound)
	}
	b.PaymentStatus = models.PaymentCaptured
	r.bookings[bookingID] = b
	return nil
}

func (r *BookingRepo) AppendHistory(_ context.Context, entry *models.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, *entry)
	return nil
}

func (r *BookingRepo) ListHistory(_ context.Context, bookingID string) ([]models.StatusHistoryEntry, error) {
	return r.History(bookingID), nil
}

func containsStatus(set []models.BookingStatus, s models.BookingStatus) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

func compileExclusion(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid reference exclusion %q: %w", pattern, err)
	}
	return re, nil
}
