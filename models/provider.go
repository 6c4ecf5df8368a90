package models

import (
	"fmt"
	"strings"
	"time"
)

// AvailabilityWindow is one weekly working window in the provider's local time.
// Start and End are "HH:MM"; a provider may have several windows per day.
type AvailabilityWindow struct {
	DayOfWeek time.Weekday `bson:"day_of_week" json:"day_of_week"`
	Start     string       `bson:"start" json:"start"`
	End       string       `bson:"end" json:"end"`
}

// Covers reports whether minuteOfDay falls in [Start, End).
func (w AvailabilityWindow) Covers(minuteOfDay int) bool {
	start, err := ParseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return false
	}
	return minuteOfDay >= start && minuteOfDay < end
}

// TimeOffBlock is an inclusive date range during which the provider takes no work.
type TimeOffBlock struct {
	StartDate string `bson:"start_date" json:"start_date"` // YYYY-MM-DD
	EndDate   string `bson:"end_date" json:"end_date"`     // YYYY-MM-DD
	Active    bool   `bson:"active" json:"active"`
}

// CoversDate reports whether the active block includes the given YYYY-MM-DD date.
func (t TimeOffBlock) CoversDate(date string) bool {
	if !t.Active {
		return false
	}
	return t.StartDate <= date && date <= t.EndDate
}

// Provider is a service candidate. It is maintained elsewhere and read-only here.
type Provider struct {
	ID        string `bson:"id" json:"id"`
	Name      string `bson:"name" json:"name"`
	Email     string `bson:"email" json:"email,omitempty"`
	PushToken string `bson:"push_token,omitempty" json:"-"`

	Active          bool     `bson:"active" json:"active"`
	ServiceTypeIDs  []string `bson:"service_type_ids" json:"service_type_ids"`
	Gender          string   `bson:"gender,omitempty" json:"gender,omitempty"`
	Latitude        *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude       *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
	ServiceRadiusKm float64  `bson:"service_radius_km,omitempty" json:"service_radius_km,omitempty"`

	WeeklyAvailability []AvailabilityWindow `bson:"weekly_availability,omitempty" json:"weekly_availability,omitempty"`
	TimeOff            []TimeOffBlock       `bson:"time_off,omitempty" json:"time_off,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at,omitzero"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at,omitzero"`
}

// Offers reports whether the provider lists the service type.
func (p *Provider) Offers(serviceTypeID string) bool {
	for _, id := range p.ServiceTypeIDs {
		if id == serviceTypeID {
			return true
		}
	}
	return false
}

// HasServiceArea reports whether the provider can be placed on a map with a radius.
func (p *Provider) HasServiceArea() bool {
	return p.Latitude != nil && p.Longitude != nil && p.ServiceRadiusKm > 0
}

// MatchesGender applies a booking's gender preference.
func (p *Provider) MatchesGender(preference string) bool {
	if preference == "" || strings.EqualFold(preference, GenderAny) {
		return true
	}
	return strings.EqualFold(p.Gender, preference)
}

// EndOfDay is the clock value "24:00", valid as a window end.
const EndOfDay = 24 * 60

// ParseClock converts "HH:MM" into minutes after midnight. "24:00" is accepted
// and yields EndOfDay.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return EndOfDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
