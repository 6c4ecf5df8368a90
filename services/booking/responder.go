package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bloomdispatch/config"
	"bloomdispatch/database"
	bookingRepo "bloomdispatch/database/repository/booking"
	providerRepo "bloomdispatch/database/repository/provider"
	"bloomdispatch/models"
	"bloomdispatch/services/matching"
	"bloomdispatch/services/payment"

	"go.uber.org/zap"
)

// DefaultResponseService implements ResponseService.
type DefaultResponseService struct {
	Bookings        bookingRepo.BookingRepository
	Providers       providerRepo.ProviderRepository
	Finder          matching.CandidateFinder
	Transitions     *Transitioner
	Payments        payment.Capturer
	DefaultLocation *time.Location
	Logger          *zap.Logger
	Now             func() time.Time
}

func NewResponseService(
	bookings bookingRepo.BookingRepository,
	providers providerRepo.ProviderRepository,
	finder matching.CandidateFinder,
	transitions *Transitioner,
	payments payment.Capturer,
	defaultLocation *time.Location,
	logger *zap.Logger,
) *DefaultResponseService {
	return &DefaultResponseService{
		Bookings:        bookings,
		Providers:       providers,
		Finder:          finder,
		Transitions:     transitions,
		Payments:        payments,
		DefaultLocation: defaultLocation,
		Logger:          logger,
		Now:             time.Now,
	}
}

func (s *DefaultResponseService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DefaultResponseService) Respond(ctx context.Context, req ResponseRequest, timeouts config.TimeoutSettings) (*ResponseResult, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	if req.BookingReference == "" {
		return nil, NewValidationError("booking reference is required")
	}
	if req.ProviderID == "" {
		return nil, NewValidationError("provider id is required")
	}

	b, err := s.loadTarget(ctx, req.BookingReference)
	if err != nil {
		return nil, err
	}
	p, err := s.Providers.GetByID(ctx, req.ProviderID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NewNotFoundError(fmt.Sprintf("provider %s not found", req.ProviderID))
	}
	if err != nil {
		return nil, NewDependencyError("failed to load provider", err)
	}

	s.Logger.Info("booking response received",
		zap.String("booking", b.Reference),
		zap.String("status", string(b.Status)),
		zap.String("provider", p.ID),
		zap.String("action", string(action)))

	if b.Status.IsResolved() {
		return alreadyProcessed(b, p), nil
	}
	if !b.Status.IsOpen() {
		return nil, NewConflictError(fmt.Sprintf("booking %s is %s and can no longer be answered", b.Reference, b.Status))
	}
	if err := s.authorize(ctx, b, p); err != nil {
		return nil, err
	}

	// Advisory only: lets a sweep that has not yet read the booking skip it.
	now := s.now()
	if err := s.Bookings.StampResponseRecorded(ctx, b.ID, now); err != nil {
		s.Logger.Warn("failed to stamp response time", zap.String("booking", b.Reference), zap.Error(err))
	} else {
		b.ResponseRecordedAt = &now
	}

	if action == ActionAccept {
		return s.accept(ctx, b, p)
	}
	return s.decline(ctx, b, p, timeouts)
}

// loadTarget finds the booking and, for a follower occurrence, the initial
// occurrence that drives the series.
func (s *DefaultResponseService) loadTarget(ctx context.Context, reference string) (*models.Booking, error) {
	b, err := s.Bookings.GetByReference(ctx, reference)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NewNotFoundError(fmt.Sprintf("booking %s not found", reference))
	}
	if err != nil {
		return nil, NewDependencyError("failed to load booking", err)
	}
	if b.IsInitialOccurrence() || b.SeriesID == "" {
		return b, nil
	}

	initial, err := s.Bookings.GetInitialOccurrence(ctx, b.SeriesID)
	if errors.Is(err, database.ErrNotFound) {
		s.Logger.Warn("series has no initial occurrence", zap.String("series", b.SeriesID), zap.String("booking", b.Reference))
		return b, nil
	}
	if err != nil {
		return nil, NewDependencyError("failed to load initial occurrence", err)
	}
	return initial, nil
}

func (s *DefaultResponseService) authorize(ctx context.Context, b *models.Booking, p *models.Provider) error {
	if b.Status == models.StatusRequested {
		if b.AssignedProviderID != p.ID {
			return NewForbiddenError("only the assigned provider may respond to this booking")
		}
		return nil
	}

	reason, err := s.Finder.CheckEligible(ctx, b, p)
	if err != nil {
		return NewDependencyError("failed to check provider eligibility", err)
	}
	if reason != "" {
		return NewForbiddenError(reason)
	}
	return nil
}

func (s *DefaultResponseService) accept(ctx context.Context, b *models.Booking, p *models.Provider) (*ResponseResult, error) {
	ok, err := s.Transitions.Apply(ctx, b, Transition{
		From:                 models.OpenStatuses,
		To:                   models.StatusConfirmed,
		RespondingProviderID: p.ID,
		Actor:                p.ID,
		Note:                 "accepted by provider",
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.afterLostAccept(ctx, b, p)
	}

	ctx = AfterCommit(ctx)
	followers := s.cascade(ctx, b, p)
	s.capturePayment(ctx, b)
	s.Transitions.Notifier.BookingConfirmed(ctx, b, p)

	return &ResponseResult{
		Outcome:   OutcomeConfirmed,
		Booking:   b,
		Provider:  p,
		Followers: followers,
		Message:   fmt.Sprintf("Booking %s is confirmed. Thank you!", b.Reference),
	}, nil
}

// afterLostAccept re-reads the booking once the guarded update matched nothing.
// The result is authoritative; the update is never retried.
func (s *DefaultResponseService) afterLostAccept(ctx context.Context, b *models.Booking, p *models.Provider) (*ResponseResult, error) {
	current, err := s.Bookings.GetByID(ctx, b.ID)
	if err != nil {
		return nil, NewDependencyError("failed to reload booking", err)
	}
	if current.Status != models.StatusConfirmed {
		return nil, NewConflictError(fmt.Sprintf("booking %s is now %s and cannot be accepted", current.Reference, current.Status))
	}
	if current.RespondingProviderID == p.ID {
		return alreadyProcessed(current, p), nil
	}
	return &ResponseResult{
		Outcome:  OutcomeLostRace,
		Booking:  current,
		Provider: p,
		Message:  fmt.Sprintf("Booking %s was just confirmed by another provider.", current.Reference),
	}, nil
}

// cascade confirms every open follower of the series with the same provider.
// Each follower is its own conditional write; failures are logged and skipped.
func (s *DefaultResponseService) cascade(ctx context.Context, b *models.Booking, p *models.Provider) int {
	if b.SeriesID == "" {
		return 0
	}
	followers, err := s.Bookings.ListSeriesFollowers(ctx, b.SeriesID, b.ID, models.OpenStatuses)
	if err != nil {
		s.Logger.Error("failed to list series followers", zap.String("series", b.SeriesID), zap.Error(err))
		return 0
	}

	confirmed := 0
	for i := range followers {
		f := &followers[i]
		ok, err := s.Transitions.Apply(ctx, f, Transition{
			From:                 models.OpenStatuses,
			To:                   models.StatusConfirmed,
			RespondingProviderID: p.ID,
			Actor:                p.ID,
			Note:                 "confirmed with initial occurrence " + b.Reference,
		})
		if err != nil {
			s.Logger.Error("failed to confirm series follower", zap.String("booking", f.Reference), zap.Error(err))
			continue
		}
		if ok {
			confirmed++
		}
	}
	return confirmed
}

func (s *DefaultResponseService) capturePayment(ctx context.Context, b *models.Booking) {
	if !b.IsInitialOccurrence() || b.PaymentIntentID == "" || s.Payments == nil {
		return
	}
	if err := s.Payments.Capture(ctx, b.PaymentIntentID, payment.CaptureKey(b.ID)); err != nil {
		s.Logger.Error("payment capture failed",
			zap.String("booking", b.Reference),
			zap.String("payment_intent", b.PaymentIntentID),
			zap.Error(err))
		return
	}
	if err := s.Bookings.MarkPaymentCaptured(ctx, b.ID, s.now()); err != nil {
		s.Logger.Warn("failed to record payment capture", zap.String("booking", b.Reference), zap.Error(err))
		return
	}
	b.PaymentStatus = models.PaymentCaptured
}

func (s *DefaultResponseService) decline(ctx context.Context, b *models.Booking, p *models.Provider, timeouts config.TimeoutSettings) (*ResponseResult, error) {
	if b.Status.IsFanOut() {
		if err := s.Transitions.RecordHistory(ctx, b, p.ID, "declined by candidate"); err != nil {
			return nil, err
		}
		s.Logger.Info("candidate declined fan-out offer", zap.String("booking", b.Reference), zap.String("provider", p.ID))
		return &ResponseResult{
			Outcome:  OutcomeDeclineRecorded,
			Booking:  b,
			Provider: p,
			Message:  "Your response has been recorded. Other providers may still accept this booking.",
		}, nil
	}

	from := []models.BookingStatus{models.StatusRequested}
	if !b.FallbackAllowed {
		return s.declineOutright(ctx, b, p, from, "declined by assigned provider; fallback not allowed", "declined_no_fallback")
	}

	candidates, err := s.Finder.FindCandidates(ctx, b, p.ID)
	if err != nil {
		return nil, NewDependencyError("failed to search for alternate providers", err)
	}
	if len(candidates) == 0 {
		return s.declineOutright(ctx, b, p, from, "declined by assigned provider; no alternates available", "declined_no_alternatives")
	}

	window := timeouts.For(b.ScheduledAt, s.now(), b.Location(s.DefaultLocation))
	ok, err := s.Transitions.SeekAlternates(ctx, b, Transition{
		From:  from,
		To:    models.StatusSeekingAlternate,
		Actor: p.ID,
		Note:  fmt.Sprintf("declined by assigned provider; offered to %d alternates", len(candidates)),
	}, candidates, window)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.afterLostDecline(ctx, b, p)
	}
	return &ResponseResult{
		Outcome:    OutcomeSeekingAlternate,
		Booking:    b,
		Provider:   p,
		Candidates: len(candidates),
		Message:    "Thanks for letting us know. We're offering this booking to other providers.",
	}, nil
}

func (s *DefaultResponseService) declineOutright(ctx context.Context, b *models.Booking, p *models.Provider, from []models.BookingStatus, note, reason string) (*ResponseResult, error) {
	ok, err := s.Transitions.Decline(ctx, b, Transition{
		From:                 from,
		RespondingProviderID: p.ID,
		Actor:                p.ID,
		Note:                 note,
	}, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.afterLostDecline(ctx, b, p)
	}
	return &ResponseResult{
		Outcome:  OutcomeDeclined,
		Booking:  b,
		Provider: p,
		Message:  fmt.Sprintf("Booking %s has been declined.", b.Reference),
	}, nil
}

func (s *DefaultResponseService) afterLostDecline(ctx context.Context, b *models.Booking, p *models.Provider) (*ResponseResult, error) {
	current, err := s.Bookings.GetByID(ctx, b.ID)
	if err != nil {
		return nil, NewDependencyError("failed to reload booking", err)
	}
	switch {
	case current.Status.IsResolved():
		return alreadyProcessed(current, p), nil
	case current.Status.IsFanOut():
		// The sweep escalated first; keep the provider's answer in the audit trail.
		if err := s.Transitions.RecordHistory(ctx, current, p.ID, "declined by assigned provider after escalation"); err != nil {
			return nil, err
		}
		return &ResponseResult{
			Outcome:  OutcomeDeclineRecorded,
			Booking:  current,
			Provider: p,
			Message:  "This booking is already being offered to other providers.",
		}, nil
	}
	return nil, NewConflictError(fmt.Sprintf("booking %s is now %s and cannot be declined", current.Reference, current.Status))
}

func alreadyProcessed(b *models.Booking, p *models.Provider) *ResponseResult {
	res := &ResponseResult{Booking: b, Provider: p}
	switch {
	case b.Status == models.StatusDeclined:
		res.Outcome = OutcomeAlreadyDeclined
		res.Message = fmt.Sprintf("Booking %s has already been declined.", b.Reference)
	case b.RespondingProviderID == p.ID:
		res.Outcome = OutcomeAlreadyConfirmed
		res.Message = fmt.Sprintf("You have already confirmed booking %s.", b.Reference)
	default:
		res.Outcome = OutcomeConfirmedByOther
		res.Message = fmt.Sprintf("Booking %s has already been confirmed by another provider.", b.Reference)
	}
	return res
}
