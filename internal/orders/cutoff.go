package orders

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	DefaultCutoffDaysBefore = 6
	DefaultCutoffHour       = 1
	DefaultCutoffTimezone   = "America/New_York"
)

// CutoffPolicy decides when an order stops boarding: DaysBefore calendar days
// ahead of the flight day, at Hour o'clock, both in Location wall time.
type CutoffPolicy struct {
	DaysBefore int
	Hour       int
	Location   *time.Location
}

func DefaultCutoffPolicy() CutoffPolicy {
	loc, err := time.LoadLocation(DefaultCutoffTimezone)
	if err != nil {
		// tzdata is embedded, this only happens on a corrupt build
		panic(fmt.Sprintf("orders: load %s: %v", DefaultCutoffTimezone, err))
	}
	return CutoffPolicy{
		DaysBefore: DefaultCutoffDaysBefore,
		Hour:       DefaultCutoffHour,
		Location:   loc,
	}
}

// NewCutoffPolicy builds a policy for the named IANA zone.
func NewCutoffPolicy(daysBefore, hour int, timezone string) (CutoffPolicy, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return CutoffPolicy{}, fmt.Errorf("failed to load cutoff timezone %q: %w", timezone, err)
	}
	if hour < 0 || hour > 23 {
		return CutoffPolicy{}, fmt.Errorf("cutoff hour out of range: %d", hour)
	}
	if daysBefore < 0 {
		return CutoffPolicy{}, fmt.Errorf("cutoff days must not be negative: %d", daysBefore)
	}
	return CutoffPolicy{DaysBefore: daysBefore, Hour: hour, Location: loc}, nil
}

// Cutoff anchors the flight to its local calendar day, steps back DaysBefore
// days and returns Hour:00 local on that day. time.Date normalizes DST.
func (p CutoffPolicy) Cutoff(flight time.Time) time.Time {
	local := flight.In(p.Location)
	return time.Date(local.Year(), local.Month(), local.Day()-p.DaysBefore, p.Hour, 0, 0, 0, p.Location)
}

// PastCutoff reports whether now is at or after the cutoff for flight.
func (p CutoffPolicy) PastCutoff(flight, now time.Time) bool {
	return !now.In(p.Location).Before(p.Cutoff(flight))
}
