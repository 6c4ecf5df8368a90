package matching

import (
	"context"
	"fmt"
	"time"

	bookingRepo "bloomdispatch/database/repository/booking"
	providerRepo "bloomdispatch/database/repository/provider"
	"bloomdispatch/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ConflictBuffer pads both sides of an existing booking when checking overlaps.
const ConflictBuffer = 15 * time.Minute

// conflictLookups bounds concurrent calendar queries for one search.
const conflictLookups = 8

// CandidateFinder computes which providers may take over a booking.
type CandidateFinder interface {
	// FindCandidates returns every eligible provider except excludeProviderID.
	// The result is unordered; all candidates are contacted at once.
	FindCandidates(ctx context.Context, booking *models.Booking, excludeProviderID string) ([]models.Provider, error)
	// CheckEligible re-validates one provider against the booking. A non-empty
	// reason explains why the provider is not eligible.
	CheckEligible(ctx context.Context, booking *models.Booking, provider *models.Provider) (reason string, err error)
}

// DefaultCandidateFinder implements CandidateFinder on the provider and booking stores.
type DefaultCandidateFinder struct {
	ProviderRepo    providerRepo.ProviderRepository
	BookingRepo     bookingRepo.BookingRepository
	DefaultLocation *time.Location
	Logger          *zap.Logger
}

// slot is the booking's start expressed in its own timezone.
type slot struct {
	start       time.Time
	end         time.Time
	weekday     time.Weekday
	minuteOfDay int
	date        string
	dayStart    time.Time
	dayEnd      time.Time
}

func (f *DefaultCandidateFinder) slotFor(b *models.Booking) slot {
	loc := b.Location(f.DefaultLocation)
	local := b.ScheduledAt.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return slot{
		start:       b.ScheduledAt,
		end:         b.EndsAt(),
		weekday:     local.Weekday(),
		minuteOfDay: local.Hour()*60 + local.Minute(),
		date:        local.Format("2006-01-02"),
		dayStart:    dayStart,
		dayEnd:      dayStart.AddDate(0, 0, 1),
	}
}

func (f *DefaultCandidateFinder) FindCandidates(ctx context.Context, booking *models.Booking, excludeProviderID string) ([]models.Provider, error) {
	providers, err := f.ProviderRepo.FindActiveByService(ctx, booking.ServiceTypeID, excludeProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}

	s := f.slotFor(booking)
	providers = dedupe(providers)
	providers = keep(providers, func(p *models.Provider) bool {
		return p.ID != excludeProviderID && p.Active && p.Offers(booking.ServiceTypeID)
	})
	providers = keep(providers, func(p *models.Provider) bool { return p.MatchesGender(booking.GenderPreference) })
	if booking.HasLocation() {
		providers = keep(providers, func(p *models.Provider) bool { return withinRadius(booking, p) })
	}
	providers = keep(providers, func(p *models.Provider) bool { return availableAt(p, s) })
	providers = keep(providers, func(p *models.Provider) bool { return !onTimeOff(p, s) })

	free, err := f.withoutConflicts(ctx, booking, providers, s)
	if err != nil {
		return nil, err
	}

	f.Logger.Debug("candidate search finished",
		zap.String("booking", booking.Reference),
		zap.String("excluded", excludeProviderID),
		zap.Int("candidates", len(free)))
	return free, nil
}

func (f *DefaultCandidateFinder) CheckEligible(ctx context.Context, booking *models.Booking, p *models.Provider) (string, error) {
	s := f.slotFor(booking)
	switch {
	case !p.Active:
		return "provider is not active", nil
	case !p.Offers(booking.ServiceTypeID):
		return "provider does not offer this service", nil
	case !p.MatchesGender(booking.GenderPreference):
		return "provider does not match the requested gender preference", nil
	case booking.HasLocation() && !withinRadius(booking, p):
		return "booking is outside the provider's service area", nil
	case !availableAt(p, s):
		return "provider is not available at the booking time", nil
	case onTimeOff(p, s):
		return "provider is on time off that day", nil
	}

	busy, err := f.hasConflict(ctx, booking, p.ID, s)
	if err != nil {
		return "", err
	}
	if busy {
		return "provider already has an overlapping booking", nil
	}
	return "", nil
}

// withoutConflicts drops providers holding an overlapping booking that day.
func (f *DefaultCandidateFinder) withoutConflicts(ctx context.Context, booking *models.Booking, providers []models.Provider, s slot) ([]models.Provider, error) {
	busy := make([]bool, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conflictLookups)
	for i := range providers {
		i := i
		g.Go(func() error {
			conflict, err := f.hasConflict(gctx, booking, providers[i].ID, s)
			if err != nil {
				return err
			}
			busy[i] = conflict
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to check provider calendars: %w", err)
	}

	var out []models.Provider
	for i, p := range providers {
		if !busy[i] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *DefaultCandidateFinder) hasConflict(ctx context.Context, booking *models.Booking, providerID string, s slot) (bool, error) {
	existing, err := f.BookingRepo.ListProviderBookingsBetween(ctx, providerID, s.dayStart, s.dayEnd, models.BusyStatuses, booking.ID)
	if err != nil {
		return false, err
	}
	for i := range existing {
		if overlaps(&existing[i], s) {
			return true, nil
		}
	}
	return false, nil
}

// overlaps pads the existing booking by ConflictBuffer on both sides.
func overlaps(existing *models.Booking, s slot) bool {
	paddedStart := existing.ScheduledAt.Add(-ConflictBuffer)
	paddedEnd := existing.EndsAt().Add(ConflictBuffer)
	return paddedStart.Before(s.end) && paddedEnd.After(s.start)
}

func withinRadius(b *models.Booking, p *models.Provider) bool {
	if !p.HasServiceArea() {
		return false
	}
	d := haversine(*b.Latitude, *b.Longitude, *p.Latitude, *p.Longitude)
	return d <= p.ServiceRadiusKm
}

func availableAt(p *models.Provider, s slot) bool {
	for _, w := range p.WeeklyAvailability {
		if w.DayOfWeek == s.weekday && w.Covers(s.minuteOfDay) {
			return true
		}
	}
	return false
}

func onTimeOff(p *models.Provider, s slot) bool {
	for _, t := range p.TimeOff {
		if t.CoversDate(s.date) {
			return true
		}
	}
	return false
}

func keep(in []models.Provider, pred func(*models.Provider) bool) []models.Provider {
	out := in[:0]
	for i := range in {
		if pred(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}

func dedupe(in []models.Provider) []models.Provider {
	seen := make(map[string]bool, len(in))
	out := make([]models.Provider, 0, len(in))
	for _, p := range in {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
