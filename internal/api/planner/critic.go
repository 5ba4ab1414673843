package planner

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// activeCeilingMinutes is the pace-dependent ceiling on a day's total
// scheduled time the critic warns about.
func activeCeilingMinutes(pace types.Pace) int {
	switch pace {
	case types.PaceRelaxed:
		return 8 * 60
	case types.PaceFast:
		return 13 * 60
	default:
		return 11 * 60
	}
}

// Critique scans a finished itinerary for missing meals, closed-POI
// conflicts and overlong days. It is a pure function and purely advisory:
// issues never block persistence.
func Critique(it types.Itinerary, spec types.TripSpec) []types.CritiqueIssue {
	var issues []types.CritiqueIssue

	for _, day := range it.Days {
		for _, mw := range spec.Routine.MealWindows {
			meals := lo.Filter(day.Blocks, func(b types.ItineraryBlock, _ int) bool {
				return b.Type == types.BlockMeal && b.StartMinute < mw.EndMinute && b.EndMinute > mw.StartMinute
			})
			if len(meals) == 0 {
				issues = append(issues, types.CritiqueIssue{
					DayIndex: day.DayIndex,
					Severity: "warning",
					Message:  fmt.Sprintf("no meal block inside the %s window", mw.Name),
				})
			}
		}

		active := 0
		for i, b := range day.Blocks {
			if b.Place != nil && !b.Place.OpenDuring(b.StartMinute, b.EndMinute) {
				idx := i
				issues = append(issues, types.CritiqueIssue{
					DayIndex:   day.DayIndex,
					BlockIndex: &idx,
					Severity:   "warning",
					Message:    fmt.Sprintf("%s is closed during its scheduled window", b.Place.Name),
				})
			}
			if b.Place != nil {
				active += b.EndMinute - b.StartMinute
				if b.Travel != nil {
					active += b.Travel.Minutes
				}
			}
		}
		if ceiling := activeCeilingMinutes(day.Settings.Pace); active > ceiling {
			issues = append(issues, types.CritiqueIssue{
				DayIndex: day.DayIndex,
				Severity: "info",
				Message:  fmt.Sprintf("day is scheduled for %d active minutes, above the %d minute ceiling for %s pace", active, ceiling, day.Settings.Pace),
			})
		}
	}
	return issues
}
