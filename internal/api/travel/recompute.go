package travel

import (
	"context"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// WalkCutoverMeters is the distance beyond which a leg switches from
// walking to public transport.
const WalkCutoverMeters = 1500

// stepsPerMeter approximates walking steps from walking distance.
const stepsPerMeter = 1.31

// RecomputeDay refreshes every travel leg and the derived day metrics in
// place. It is called after any mutation that moves, adds or removes a
// placed POI; a leg that cannot be computed fails the whole recompute so
// the day is never persisted with stale travel data.
func RecomputeDay(ctx context.Context, p Provider, day *types.ItineraryDay) error {
	var prev *types.POICandidate
	var m types.DayMetrics

	for i := range day.Blocks {
		b := &day.Blocks[i]
		b.Travel = nil
		if b.Place == nil {
			continue
		}
		m.Places++

		if prev != nil {
			mode := types.ModeWalk
			leg, err := p.LegCost(ctx, prev.Latitude, prev.Longitude, b.Place.Latitude, b.Place.Longitude, mode)
			if err == nil && leg.Meters > WalkCutoverMeters {
				mode = types.ModePublic
				leg, err = p.LegCost(ctx, prev.Latitude, prev.Longitude, b.Place.Latitude, b.Place.Longitude, mode)
			}
			if err != nil {
				return err
			}
			b.Travel = &types.TravelLeg{Minutes: leg.Minutes, Meters: leg.Meters, Polyline: leg.Polyline, Mode: mode}
			m.TravelMeters += leg.Meters
			if mode == types.ModeWalk {
				m.WalkingMinutes += leg.Minutes
				m.StepsEstimate += int(float64(leg.Meters) * stepsPerMeter)
			}
		}
		prev = b.Place
	}
	day.Metrics = m
	return nil
}
