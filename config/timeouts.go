package config

import (
	"strconv"
	"strings"
	"time"
)

// Settings keys read from the system_settings collection.
const (
	SameDayTimeoutKey  = "same_day_timeout_minutes"
	StandardTimeoutKey = "standard_timeout_minutes"
)

// Fallbacks used when a setting is missing or not a positive integer.
const (
	DefaultSameDayTimeoutMinutes  = 60
	DefaultStandardTimeoutMinutes = 240
)

// MaxTimeoutMinutes caps a configured window at one week. Larger values are
// treated as typos and fall back like any other invalid value.
const MaxTimeoutMinutes = 7 * 24 * 60

// TimeoutSettings are the response windows for one invocation.
// They are loaded per run and passed explicitly; nothing caches them globally.
type TimeoutSettings struct {
	SameDay  time.Duration
	Standard time.Duration
}

// DefaultTimeoutSettings returns the hard-coded fallbacks.
func DefaultTimeoutSettings() TimeoutSettings {
	return TimeoutSettings{
		SameDay:  DefaultSameDayTimeoutMinutes * time.Minute,
		Standard: DefaultStandardTimeoutMinutes * time.Minute,
	}
}

// Shortest is the coarse threshold for the sweep's store queries. Every booking
// that could be due under either tier is at least this old; the per-booking
// tier check then decides.
func (t TimeoutSettings) Shortest() time.Duration {
	if t.SameDay < t.Standard {
		return t.SameDay
	}
	return t.Standard
}

// For picks the window that applies to a booking scheduled at scheduledAt,
// comparing calendar days in loc.
func (t TimeoutSettings) For(scheduledAt, now time.Time, loc *time.Location) time.Duration {
	if SameCalendarDay(scheduledAt, now, loc) {
		return t.SameDay
	}
	return t.Standard
}

// SameCalendarDay compares year, month and day of both instants in loc.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// ParseTimeoutMinutes accepts a raw setting value and returns the fallback
// when it is empty, malformed, not positive or above MaxTimeoutMinutes.
func ParseTimeoutMinutes(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 || n > MaxTimeoutMinutes {
		return fallback
	}
	return n
}

// TimeoutSettingsFromRaw builds settings from raw values keyed by the settings keys.
func TimeoutSettingsFromRaw(values map[string]string) TimeoutSettings {
	sameDay := ParseTimeoutMinutes(values[SameDayTimeoutKey], DefaultSameDayTimeoutMinutes)
	standard := ParseTimeoutMinutes(values[StandardTimeoutKey], DefaultStandardTimeoutMinutes)
	return TimeoutSettings{
		SameDay:  time.Duration(sameDay) * time.Minute,
		Standard: time.Duration(standard) * time.Minute,
	}
}
