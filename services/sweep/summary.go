package sweep

import "time"

// Action is what the sweep did to one booking.
type Action string

const (
	ActionReassigned             Action = "reassigned_to_multiple"
	ActionDeclinedNoAlternatives Action = "declined_no_alternatives"
	ActionDeclinedNoFallback     Action = "declined_no_fallback"
	ActionFinalDecline           Action = "final_decline"
	ActionSkipped                Action = "skipped"
)

// Skip reasons reported with ActionSkipped.
const (
	SkipNotYetDue        = "not_yet_due"
	SkipAlreadyProcessed = "already_processed"
	SkipError            = "error"
)

// Candidate set names.
const (
	SetRequested  = "requested"
	SetReassigned = "reassigned"
)

// Result is the per-booking line of a sweep summary.
type Result struct {
	BookingID        string `json:"booking_id"`
	Reference        string `json:"reference"`
	Set              string `json:"set"`
	Action           Action `json:"action"`
	SkipReason       string `json:"skip_reason,omitempty"`
	Error            string `json:"error,omitempty"`
	ElapsedMinutes   int    `json:"elapsed_minutes"`
	ThresholdMinutes int    `json:"threshold_minutes"`
	Candidates       int    `json:"candidates,omitempty"`
}

// Summary reports one sweep run.
type Summary struct {
	StartedAt              time.Time `json:"started_at"`
	FinishedAt             time.Time `json:"finished_at"`
	SameDayTimeoutMinutes  int       `json:"same_day_timeout_minutes"`
	StandardTimeoutMinutes int       `json:"standard_timeout_minutes"`
	Processed              int       `json:"processed"`
	Transitioned           int       `json:"transitioned"`
	Skipped                int       `json:"skipped"`
	Failed                 int       `json:"failed"`
	Results                []Result  `json:"results"`
}

func (s *Summary) add(r Result) {
	s.Processed++
	switch {
	case r.Action != ActionSkipped:
		s.Transitioned++
	case r.SkipReason == SkipError:
		s.Failed++
	default:
		s.Skipped++
	}
	s.Results = append(s.Results, r)
}

// Count returns how many results carry the given action.
func (s *Summary) Count(a Action) int {
	n := 0
	for _, r := range s.Results {
		if r.Action == a {
			n++
		}
	}
	return n
}
