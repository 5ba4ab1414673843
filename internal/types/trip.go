package types

import (
	"fmt"
	"strings"
	"time"
)

type Pace string

const (
	PaceRelaxed Pace = "relaxed"
	PaceMedium  Pace = "medium"
	PaceFast    Pace = "fast"
)

type BudgetTier string

const (
	BudgetLow      BudgetTier = "budget"
	BudgetModerate BudgetTier = "moderate"
	BudgetLuxury   BudgetTier = "luxury"
)

// MealWindow is a named time window inside which a meal block must be scheduled.
// Times are minutes since midnight, local to the trip city.
type MealWindow struct {
	Name        string `json:"name"` // breakfast, lunch, dinner
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// DailyRoutine bounds the scheduable part of every trip day.
type DailyRoutine struct {
	WakeMinute  int          `json:"wake_minute"`
	SleepMinute int          `json:"sleep_minute"`
	MealWindows []MealWindow `json:"meal_windows"`
}

// TripSpec is the validated trip configuration. It is immutable once an
// itinerary has been generated; regeneration replaces the whole itinerary.
type TripSpec struct {
	City       string       `json:"city"`
	StartDate  time.Time    `json:"start_date"`
	EndDate    time.Time    `json:"end_date"`
	Travelers  int          `json:"travelers"`
	Pace       Pace         `json:"pace"`
	BudgetTier BudgetTier   `json:"budget_tier"`
	Interests  []string     `json:"interests,omitempty"`
	Routine    DailyRoutine `json:"routine"`
}

// Days returns the number of calendar days covered by the trip, inclusive.
func (s TripSpec) Days() int {
	start := s.StartDate.Truncate(24 * time.Hour)
	end := s.EndDate.Truncate(24 * time.Hour)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Validate checks the trip spec for structural problems. A spec that fails
// here is a fatal condition: no planning run is started.
func (s TripSpec) Validate() error {
	if strings.TrimSpace(s.City) == "" {
		return fmt.Errorf("%w: city is required", ErrValidation)
	}
	if s.Days() <= 0 {
		return fmt.Errorf("%w: end date precedes start date", ErrValidation)
	}
	if s.Travelers <= 0 {
		return fmt.Errorf("%w: traveler count must be positive", ErrValidation)
	}
	switch s.Pace {
	case PaceRelaxed, PaceMedium, PaceFast:
	default:
		return fmt.Errorf("%w: unknown pace %q", ErrValidation, s.Pace)
	}
	switch s.BudgetTier {
	case BudgetLow, BudgetModerate, BudgetLuxury:
	default:
		return fmt.Errorf("%w: unknown budget tier %q", ErrValidation, s.BudgetTier)
	}
	if s.Routine.WakeMinute < 0 || s.Routine.SleepMinute > 24*60 || s.Routine.WakeMinute >= s.Routine.SleepMinute {
		return fmt.Errorf("%w: wake/sleep window is invalid", ErrValidation)
	}
	for _, mw := range s.Routine.MealWindows {
		if mw.StartMinute >= mw.EndMinute {
			return fmt.Errorf("%w: meal window %q is empty", ErrValidation, mw.Name)
		}
		if mw.StartMinute < s.Routine.WakeMinute || mw.EndMinute > s.Routine.SleepMinute {
			return fmt.Errorf("%w: meal window %q falls outside the wake/sleep window", ErrValidation, mw.Name)
		}
	}
	return nil
}

// DefaultRoutine is used when a client omits the daily routine entirely.
func DefaultRoutine() DailyRoutine {
	return DailyRoutine{
		WakeMinute:  8 * 60,
		SleepMinute: 23 * 60,
		MealWindows: []MealWindow{
			{Name: "breakfast", StartMinute: 8 * 60, EndMinute: 10 * 60},
			{Name: "lunch", StartMinute: 12 * 60, EndMinute: 14 * 60},
			{Name: "dinner", StartMinute: 19 * 60, EndMinute: 21 * 60},
		},
	}
}
