package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/go-trip-studio/internal/api/travel"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// walkCutoverMeters is the leg length above which the optimizer prefers
// public transport over walking.
const walkCutoverMeters = 1500

// RouteOptimizer orders a day's POIs into a walkable sequence, computes
// travel legs and reflows block start times to respect opening hours.
// It never drops a POI: an infeasible constraint produces an advisory
// critique issue instead.
type RouteOptimizer struct {
	logger *slog.Logger
	travel travel.Provider
}

func NewRouteOptimizer(tp travel.Provider, logger *slog.Logger) *RouteOptimizer {
	return &RouteOptimizer{logger: logger, travel: tp}
}

// Optimize returns a new day value; the input is never mutated.
func (o *RouteOptimizer) Optimize(ctx context.Context, day types.ItineraryDay) (types.ItineraryDay, []types.CritiqueIssue) {
	out := day
	out.Blocks = make([]types.ItineraryBlock, len(day.Blocks))
	copy(out.Blocks, day.Blocks)

	o.reorderBetweenAnchors(ctx, out.Blocks)
	issues := o.reflow(ctx, &out)
	return out, issues
}

// reorderBetweenAnchors treats meal blocks as fixed anchors and reorders
// the activity/nightlife POIs between consecutive anchors with a greedy
// nearest-neighbor pass. Day POI counts are small, so greedy is adequate.
func (o *RouteOptimizer) reorderBetweenAnchors(ctx context.Context, blocks []types.ItineraryBlock) {
	segStart := 0
	var prevAnchor *types.POICandidate

	for i := 0; i <= len(blocks); i++ {
		atAnchor := i == len(blocks) || blocks[i].Type == types.BlockMeal
		if !atAnchor {
			continue
		}
		o.orderSegment(ctx, blocks[segStart:min(i, len(blocks))], prevAnchor)
		if i < len(blocks) && blocks[i].Place != nil {
			prevAnchor = blocks[i].Place
		}
		segStart = i + 1
	}
}

// orderSegment permutes the Place assignments of the placed blocks in a
// segment so consecutive stops are geographically close, starting from the
// previous anchor. Block times are untouched; only places move.
func (o *RouteOptimizer) orderSegment(ctx context.Context, segment []types.ItineraryBlock, from *types.POICandidate) {
	var placedIdx []int
	for i := range segment {
		if segment[i].Place != nil {
			placedIdx = append(placedIdx, i)
		}
	}
	if len(placedIdx) < 2 {
		return
	}

	pool := make([]*types.POICandidate, 0, len(placedIdx))
	for _, i := range placedIdx {
		pool = append(pool, segment[i].Place)
	}

	cur := from
	for _, i := range placedIdx {
		best := 0
		if cur != nil {
			bestDist := -1.0
			for j, p := range pool {
				d := travel.HaversineMeters(cur.Latitude, cur.Longitude, p.Latitude, p.Longitude)
				if bestDist < 0 || d < bestDist {
					bestDist = d
					best = j
				}
			}
		}
		segment[i].Place = pool[best]
		cur = pool[best]
		pool = append(pool[:best], pool[best+1:]...)
	}
}

// reflow walks the day in order, computing travel legs and shifting block
// start times forward within the remaining slack when travel makes the
// scheduled start unreachable.
func (o *RouteOptimizer) reflow(ctx context.Context, day *types.ItineraryDay) []types.CritiqueIssue {
	var issues []types.CritiqueIssue
	var prev *types.POICandidate
	arrival := day.Settings.StartMinute

	for i := range day.Blocks {
		b := &day.Blocks[i]
		b.Travel = nil
		if b.Place == nil {
			continue
		}

		if prev != nil {
			leg, err := o.legFor(ctx, prev, b.Place)
			if err != nil {
				o.logger.WarnContext(ctx, "Travel leg computation failed, leaving leg empty",
					slog.Any("error", err))
			} else {
				b.Travel = leg
				arrival += leg.Minutes
			}
		}

		if arrival > b.StartMinute {
			// Shift forward within slack; duration is preserved when possible.
			duration := b.EndMinute - b.StartMinute
			b.StartMinute = arrival
			b.EndMinute = b.StartMinute + duration
			if b.EndMinute > day.Settings.EndMinute {
				b.EndMinute = day.Settings.EndMinute
			}
		}

		if !b.Place.OpenDuring(b.StartMinute, b.EndMinute) {
			idx := i
			issues = append(issues, types.CritiqueIssue{
				DayIndex:   day.DayIndex,
				BlockIndex: &idx,
				Severity:   "warning",
				Message:    fmt.Sprintf("%s is not open for the %d-%d window", b.Place.Name, b.StartMinute, b.EndMinute),
			})
		}

		arrival = b.EndMinute
		prev = b.Place
	}
	return issues
}

func (o *RouteOptimizer) legFor(ctx context.Context, from, to *types.POICandidate) (*types.TravelLeg, error) {
	mode := types.ModeWalk
	leg, err := o.travel.LegCost(ctx, from.Latitude, from.Longitude, to.Latitude, to.Longitude, mode)
	if err != nil {
		return nil, err
	}
	if leg.Meters > walkCutoverMeters {
		mode = types.ModePublic
		leg, err = o.travel.LegCost(ctx, from.Latitude, from.Longitude, to.Latitude, to.Longitude, mode)
		if err != nil {
			return nil, err
		}
	}
	return &types.TravelLeg{
		Minutes:  leg.Minutes,
		Meters:   leg.Meters,
		Polyline: leg.Polyline,
		Mode:     mode,
	}, nil
}
