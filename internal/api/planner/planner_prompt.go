package planner

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// GetSkeletonPrompt asks the model for a day-by-day block skeleton. The
// response is validated before use; an invalid proposal falls back to the
// deterministic template.
func GetSkeletonPrompt(spec types.TripSpec) string {
	var meals []string
	for _, mw := range spec.Routine.MealWindows {
		meals = append(meals, fmt.Sprintf("%s between minute %d and %d", mw.Name, mw.StartMinute, mw.EndMinute))
	}
	return fmt.Sprintf(`Design a day-by-day schedule skeleton for a %d-day trip to %s.
Travelers: %d. Pace: %s. Budget tier: %s. Interests: [%s].
The travelers wake at minute %d and sleep at minute %d (minutes since midnight).
Each day must contain one meal block inside each of these windows: %s.
Between meals, add activity blocks matching the interests; a nightlife block after dinner is allowed for faster paces.
Blocks must be time-ordered and must not overlap.

Return ONLY valid JSON in this exact shape:
{
  "days": [
    {
      "day_index": 1,
      "blocks": [
        {"type": "meal|activity|rest|nightlife", "start_minute": 510, "end_minute": 570, "theme": "short theme", "category": "restaurant|museum|park|..."}
      ]
    }
  ]
}`,
		spec.Days(), spec.City, spec.Travelers, spec.Pace, spec.BudgetTier,
		strings.Join(spec.Interests, ", "),
		spec.Routine.WakeMinute, spec.Routine.SleepMinute,
		strings.Join(meals, "; "))
}

// GetTripSummaryPrompt produces a short trip-level summary.
func GetTripSummaryPrompt(spec types.TripSpec) string {
	return fmt.Sprintf(`Write a two-sentence summary for a %d-day %s-paced trip to %s focused on [%s]. Plain text only, no markdown.`,
		spec.Days(), spec.Pace, spec.City, strings.Join(spec.Interests, ", "))
}

// GetDayThemePrompt produces a short theme line for one planned day.
func GetDayThemePrompt(city string, dayIndex int, placeNames []string) string {
	return fmt.Sprintf(`Day %d in %s visits: %s. Write a short theme for this day (max 8 words). Plain text only.`,
		dayIndex, city, strings.Join(placeNames, ", "))
}
