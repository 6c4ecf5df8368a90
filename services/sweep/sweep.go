package sweep

import (
	"context"
	"fmt"
	"time"

	"bloomdispatch/config"
	bookingRepo "bloomdispatch/database/repository/booking"
	settingsRepo "bloomdispatch/database/repository/settings"
	"bloomdispatch/models"
	"bloomdispatch/services/booking"
	"bloomdispatch/services/matching"

	"go.uber.org/zap"
)

// DefaultGraceWindow keeps the sweep away from bookings touched moments ago.
const DefaultGraceWindow = 2 * time.Minute

// Options tune which bookings a run considers.
type Options struct {
	// GraceWindow skips set-A bookings updated more recently than this.
	GraceWindow time.Duration
	// ExcludedReferencePattern matches references owned by the quote workflow.
	ExcludedReferencePattern string
	DefaultLocation          *time.Location
}

// Sweeper escalates or declines bookings whose response window lapsed.
type Sweeper struct {
	Bookings    bookingRepo.BookingRepository
	Finder      matching.CandidateFinder
	Transitions *booking.Transitioner
	Options     Options
	Logger      *zap.Logger
	Now         func() time.Time
}

func NewSweeper(bookings bookingRepo.BookingRepository, finder matching.CandidateFinder, transitions *booking.Transitioner, opts Options, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		Bookings:    bookings,
		Finder:      finder,
		Transitions: transitions,
		Options:     opts,
		Logger:      logger,
		Now:         time.Now,
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RunWithSettings loads the timeout windows for this run, then sweeps.
func (s *Sweeper) RunWithSettings(ctx context.Context, settings settingsRepo.SettingsRepository) (*Summary, error) {
	return s.Run(ctx, settingsRepo.LoadTimeoutSettings(ctx, settings, s.Logger))
}

// Run processes every stale booking once. A failure on one booking is
// reported in its result and does not stop the batch; only the initial
// queries or a cancelled context abort the run.
func (s *Sweeper) Run(ctx context.Context, timeouts config.TimeoutSettings) (*Summary, error) {
	now := s.now()
	summary := &Summary{
		StartedAt:              now,
		SameDayTimeoutMinutes:  int(timeouts.SameDay / time.Minute),
		StandardTimeoutMinutes: int(timeouts.Standard / time.Minute),
		Results:                []Result{},
	}
	coarse := timeouts.Shortest()

	requested, err := s.Bookings.FindStaleRequested(ctx, bookingRepo.StaleRequestedQuery{
		CreatedBefore:            now.Add(-coarse),
		UpdatedBefore:            now.Add(-s.graceWindow()),
		ExcludedReferencePattern: s.Options.ExcludedReferencePattern,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query unanswered bookings: %w", err)
	}
	reassigned, err := s.Bookings.FindStaleReassigned(ctx, bookingRepo.StaleReassignedQuery{
		UpdatedBefore:            now.Add(-coarse),
		ExcludedReferencePattern: s.Options.ExcludedReferencePattern,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query reassigned bookings: %w", err)
	}

	s.Logger.Info("timeout sweep started",
		zap.Int("requested", len(requested)),
		zap.Int("reassigned", len(reassigned)),
		zap.Duration("same_day", timeouts.SameDay),
		zap.Duration("standard", timeouts.Standard))

	seen := make(map[string]bool, len(requested)+len(reassigned))
	for i := range requested {
		if err := ctx.Err(); err != nil {
			return s.interrupted(summary, err)
		}
		b := &requested[i]
		seen[b.ID] = true
		summary.add(s.sweepRequested(ctx, b, now, timeouts))
	}
	for i := range reassigned {
		if err := ctx.Err(); err != nil {
			return s.interrupted(summary, err)
		}
		b := &reassigned[i]
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		summary.add(s.sweepReassigned(ctx, b, now, timeouts))
	}

	summary.FinishedAt = s.now()
	s.Logger.Info("timeout sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("transitioned", summary.Transitioned),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *Sweeper) graceWindow() time.Duration {
	if s.Options.GraceWindow > 0 {
		return s.Options.GraceWindow
	}
	return DefaultGraceWindow
}

// sweepRequested handles a booking its assigned provider never answered.
func (s *Sweeper) sweepRequested(ctx context.Context, b *models.Booking, now time.Time, timeouts config.TimeoutSettings) Result {
	threshold := timeouts.For(b.ScheduledAt, now, b.Location(s.Options.DefaultLocation))
	elapsed := now.Sub(b.CreatedAt)
	res := newResult(b, SetRequested, elapsed, threshold)
	if elapsed < threshold {
		return res.skip(SkipNotYetDue)
	}

	from := []models.BookingStatus{models.StatusRequested}
	if !b.FallbackAllowed {
		return s.decline(ctx, b, res, from, ActionDeclinedNoFallback, "no response from assigned provider; fallback not allowed")
	}

	candidates, err := s.Finder.FindCandidates(ctx, b, b.AssignedProviderID)
	if err != nil {
		return s.fail(b, res, err)
	}
	if len(candidates) == 0 {
		return s.decline(ctx, b, res, from, ActionDeclinedNoAlternatives, "no response from assigned provider; no alternates available")
	}

	ok, err := s.Transitions.SeekAlternates(ctx, b, booking.Transition{
		From: from,
		To:   models.StatusTimeoutReassigned,
		Note: fmt.Sprintf("no response within %d minutes; offered to %d alternates", res.ThresholdMinutes, len(candidates)),
	}, candidates, threshold)
	if err != nil {
		return s.fail(b, res, err)
	}
	if !ok {
		return res.skip(SkipAlreadyProcessed)
	}
	res.Action = ActionReassigned
	res.Candidates = len(candidates)
	return res
}

// sweepReassigned finally declines a fan-out nobody accepted. There is no
// further escalation tier.
func (s *Sweeper) sweepReassigned(ctx context.Context, b *models.Booking, now time.Time, timeouts config.TimeoutSettings) Result {
	threshold := timeouts.For(b.ScheduledAt, now, b.Location(s.Options.DefaultLocation))
	since := b.CreatedAt
	if b.UpdatedAt != nil {
		since = *b.UpdatedAt
	}
	elapsed := now.Sub(since)
	res := newResult(b, SetReassigned, elapsed, threshold)
	if elapsed < threshold {
		return res.skip(SkipNotYetDue)
	}
	return s.decline(ctx, b, res, []models.BookingStatus{models.StatusSeekingAlternate, models.StatusTimeoutReassigned},
		ActionFinalDecline, "no alternate accepted in time")
}

func (s *Sweeper) decline(ctx context.Context, b *models.Booking, res Result, from []models.BookingStatus, action Action, note string) Result {
	ok, err := s.Transitions.Decline(ctx, b, booking.Transition{From: from, Note: note}, string(action))
	if err != nil {
		return s.fail(b, res, err)
	}
	if !ok {
		return res.skip(SkipAlreadyProcessed)
	}
	res.Action = action
	return res
}

func (s *Sweeper) fail(b *models.Booking, res Result, err error) Result {
	s.Logger.Error("timeout sweep failed for booking", zap.String("booking", b.Reference), zap.Error(err))
	res.Error = err.Error()
	return res.skip(SkipError)
}

func newResult(b *models.Booking, set string, elapsed, threshold time.Duration) Result {
	return Result{
		BookingID:        b.ID,
		Reference:        b.Reference,
		Set:              set,
		ElapsedMinutes:   int(elapsed / time.Minute),
		ThresholdMinutes: int(threshold / time.Minute),
	}
}

func (r Result) skip(reason string) Result {
	r.Action = ActionSkipped
	r.SkipReason = reason
	return r
}

// interrupted closes out a run cut short by ctx; the results so far stand.
func (s *Sweeper) interrupted(summary *Summary, err error) (*Summary, error) {
	summary.FinishedAt = s.now()
	s.Logger.Warn("timeout sweep interrupted",
		zap.Int("processed", summary.Processed),
		zap.Int("transitioned", summary.Transitioned),
		zap.Error(err))
	return summary, err
}
