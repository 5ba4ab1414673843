package types

// POICandidate is an ephemeral search result considered during a planning
// run. Candidates are recomputed per run and never persisted on their own;
// once selected they are embedded into the itinerary day document.
type POICandidate struct {
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Tags       []string `json:"tags,omitempty"`
	Rating     float64  `json:"rating"`
	PriceTier  string   `json:"price_tier,omitempty"`
	// OpenMinute/CloseMinute describe the daily opening window in minutes
	// since midnight. Both zero means the hours are unknown and the POI is
	// treated as always open.
	OpenMinute  int     `json:"open_minute"`
	CloseMinute int     `json:"close_minute"`
	Cached      bool    `json:"cached"` // provenance: local cache vs. live search
	Score       float64 `json:"score,omitempty"`
}

// OpenDuring reports whether the POI can accommodate the given window.
// A close minute before the open minute wraps past midnight, the shape of
// most nightlife hours, so the window is open from OpenMinute to the end of
// the day and again from midnight to CloseMinute.
func (p POICandidate) OpenDuring(startMinute, endMinute int) bool {
	if p.OpenMinute == 0 && p.CloseMinute == 0 {
		return true
	}
	if p.CloseMinute < p.OpenMinute {
		return p.OpenMinute <= startMinute || endMinute <= p.CloseMinute
	}
	return p.OpenMinute <= startMinute && endMinute <= p.CloseMinute
}

// ReplacementOption is one ranked alternative for a single itinerary slot.
type ReplacementOption struct {
	Place          POICandidate `json:"place"`
	DistanceMeters int          `json:"distance_meters"`
	Score          float64      `json:"score"`
}
