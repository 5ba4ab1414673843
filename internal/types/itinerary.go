package types

import (
	"time"

	"github.com/google/uuid"
)

type BlockType string

const (
	BlockMeal      BlockType = "meal"
	BlockActivity  BlockType = "activity"
	BlockRest      BlockType = "rest"
	BlockNightlife BlockType = "nightlife"
)

type TransportMode string

const (
	ModeWalk   TransportMode = "walk"
	ModePublic TransportMode = "public"
	ModeCar    TransportMode = "car"
)

// SkeletonBlock is one abstract time slot of a day template, prior to any
// POI assignment.
type SkeletonBlock struct {
	Type        BlockType `json:"type"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	Theme       string    `json:"theme,omitempty"`
	Category    string    `json:"category"` // gateway search category for this slot
}

// DaySkeleton is produced once per planning run by the macro planner and
// discarded after the POI planner fills it.
type DaySkeleton struct {
	DayIndex int             `json:"day_index"` // 1-based
	Blocks   []SkeletonBlock `json:"blocks"`
}

// TravelLeg holds travel metrics from the previous block's POI.
type TravelLeg struct {
	Minutes  int           `json:"minutes"`
	Meters   int           `json:"meters"`
	Polyline string        `json:"polyline,omitempty"`
	Mode     TransportMode `json:"mode"`
}

// ItineraryBlock is one scheduled slot of a day. A nil Place denotes a
// rest/free block; Relaxed marks a block that was downgraded to free because
// the candidate pool could not fill it.
type ItineraryBlock struct {
	Type        BlockType     `json:"type"`
	StartMinute int           `json:"start_minute"`
	EndMinute   int           `json:"end_minute"`
	Place       *POICandidate `json:"place,omitempty"`
	Relaxed     bool          `json:"relaxed,omitempty"`
	Travel      *TravelLeg    `json:"travel,omitempty"`
	Notes       string        `json:"notes,omitempty"`
}

// DayMetrics are derived values recomputed on every successful day mutation.
type DayMetrics struct {
	Places         int `json:"places"`
	TravelMeters   int `json:"travel_meters"`
	WalkingMinutes int `json:"walking_minutes"`
	StepsEstimate  int `json:"steps_estimate"`
}

// DaySettings are the per-day knobs the studio editor may update.
type DaySettings struct {
	Pace        Pace       `json:"pace"`
	StartMinute int        `json:"start_minute"`
	EndMinute   int        `json:"end_minute"`
	BudgetTier  BudgetTier `json:"budget_tier"`
}

// ItineraryDay is owned by the itinerary aggregate and mutated only through
// the day studio's transactional apply, always as a whole-day replace.
type ItineraryDay struct {
	DayIndex     int              `json:"day_index"` // 1-based
	Date         time.Time        `json:"date"`
	Theme        string           `json:"theme,omitempty"`
	Blocks       []ItineraryBlock `json:"blocks"`
	Settings     DaySettings      `json:"settings"`
	Metrics      DayMetrics       `json:"metrics"`
	WishMessages []string         `json:"wish_messages,omitempty"`
}

// PlaceIDs returns the external ids of all placed POIs in block order.
func (d ItineraryDay) PlaceIDs() []string {
	ids := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		if b.Place != nil {
			ids = append(ids, b.Place.ExternalID)
		}
	}
	return ids
}

type Itinerary struct {
	TripID    uuid.UUID      `json:"trip_id"`
	CreatedAt time.Time      `json:"created_at"`
	Summary   string         `json:"summary,omitempty"`
	Days      []ItineraryDay `json:"days"`
}

// CritiqueIssue is an advisory finding; it never blocks persistence.
type CritiqueIssue struct {
	DayIndex   int    `json:"day_index"`
	BlockIndex *int   `json:"block_index,omitempty"`
	Severity   string `json:"severity"` // info, warning
	Message    string `json:"message"`
}

// StudioView is the day editing surface returned to clients: the day itself
// plus the two concurrency tokens guarding its mutation paths.
type StudioView struct {
	Day          ItineraryDay `json:"day"`
	Revision     int          `json:"revision"`
	RouteVersion int          `json:"route_version"`
}
