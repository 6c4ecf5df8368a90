package booking

import (
	"context"
	"strings"

	"bloomdispatch/config"
	"bloomdispatch/models"
)

// Action is a provider's answer to a booking offer.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// ParseAction accepts accept/decline or the short codes 1/0 used in email links.
func ParseAction(raw string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "accept", "1":
		return ActionAccept, nil
	case "decline", "0":
		return ActionDecline, nil
	case "":
		return "", NewValidationError("action is required")
	default:
		return "", NewValidationError("action must be accept or decline")
	}
}

// ResponseRequest is one provider's click on an accept or decline link.
type ResponseRequest struct {
	BookingReference string `form:"booking" json:"booking"`
	ProviderID       string `form:"therapist" json:"therapist"`
	Action           string `form:"action" json:"action"`
}

// Outcome names what a response did. Idempotent outcomes are successes that
// changed nothing.
type Outcome string

const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeDeclined         Outcome = "declined"
	OutcomeSeekingAlternate Outcome = "seeking_alternate"
	OutcomeDeclineRecorded  Outcome = "decline_recorded"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomeConfirmedByOther Outcome = "confirmed_by_other"
	OutcomeAlreadyDeclined  Outcome = "already_declined"
	// OutcomeLostRace means another provider's accept committed first.
	OutcomeLostRace Outcome = "lost_race"
)

// Idempotent reports whether the outcome left the booking untouched.
func (o Outcome) Idempotent() bool {
	switch o {
	case OutcomeAlreadyConfirmed, OutcomeConfirmedByOther, OutcomeAlreadyDeclined, OutcomeLostRace:
		return true
	}
	return false
}

// ResponseResult describes the booking after a response was handled.
type ResponseResult struct {
	Outcome    Outcome
	Booking    *models.Booking
	Provider   *models.Provider
	Candidates int
	// Followers counts series occurrences confirmed alongside the booking.
	Followers int
	Message   string
}

// ResponseService processes explicit accept/decline responses.
type ResponseService interface {
	Respond(ctx context.Context, req ResponseRequest, timeouts config.TimeoutSettings) (*ResponseResult, error)
}
