package planner

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/FACorreiaa/go-trip-studio/internal/api/poisource"
	"github.com/FACorreiaa/go-trip-studio/internal/api/travel"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// Ranking weights. The exact values are tunable; the ordering of concerns
// (category fit, interest overlap, rating, budget, proximity) is the contract.
const (
	weightCategory  = 3.0
	weightInterests = 2.0
	weightRating    = 1.5
	weightBudget    = 1.0
	weightProximity = 1.5
)

// POIPlanner fills one day skeleton at a time. Trip-wide uniqueness is
// enforced here at selection time through the usedPOIs accumulator the
// orchestrator threads through sequential per-day calls.
type POIPlanner struct {
	logger        *slog.Logger
	gateway       poisource.Service
	maxWalkRadius float64
}

func NewPOIPlanner(gateway poisource.Service, maxWalkRadiusMeters int, logger *slog.Logger) *POIPlanner {
	if maxWalkRadiusMeters <= 0 {
		maxWalkRadiusMeters = 1500
	}
	return &POIPlanner{
		logger:        logger,
		gateway:       gateway,
		maxWalkRadius: float64(maxWalkRadiusMeters),
	}
}

// FillSkeleton selects one POI per skeleton block, strictly in block order.
// A block whose candidate pool runs dry is downgraded to an explicit
// relaxed free block, never silently dropped.
func (p *POIPlanner) FillSkeleton(ctx context.Context, skeleton types.DaySkeleton, date time.Time, area string, spec types.TripSpec, usedPOIs map[string]struct{}) types.ItineraryDay {
	day := types.ItineraryDay{
		DayIndex: skeleton.DayIndex,
		Date:     date,
		Settings: types.DaySettings{
			Pace:        spec.Pace,
			StartMinute: spec.Routine.WakeMinute,
			EndMinute:   spec.Routine.SleepMinute,
			BudgetTier:  spec.BudgetTier,
		},
		Blocks: make([]types.ItineraryBlock, 0, len(skeleton.Blocks)),
	}

	var picked []types.POICandidate

	for _, sb := range skeleton.Blocks {
		block := types.ItineraryBlock{
			Type:        sb.Type,
			StartMinute: sb.StartMinute,
			EndMinute:   sb.EndMinute,
			Notes:       sb.Theme,
		}
		if sb.Type == types.BlockRest {
			day.Blocks = append(day.Blocks, block)
			continue
		}

		choice := p.selectCandidate(ctx, sb, area, spec, usedPOIs, picked)
		if choice == nil {
			// Pool ran dry for this slot: keep the slot, mark it relaxed.
			block.Type = types.BlockRest
			block.Relaxed = true
			p.logger.WarnContext(ctx, "No eligible candidate for block, relaxing to free slot",
				slog.Int("day", skeleton.DayIndex),
				slog.String("category", sb.Category))
		} else {
			block.Place = choice
			usedPOIs[choice.ExternalID] = struct{}{}
			picked = append(picked, *choice)
		}
		day.Blocks = append(day.Blocks, block)
	}

	return day
}

func (p *POIPlanner) selectCandidate(ctx context.Context, sb types.SkeletonBlock, area string, spec types.TripSpec, usedPOIs map[string]struct{}, picked []types.POICandidate) *types.POICandidate {
	candidates, err := p.gateway.FetchCandidates(ctx, area, []string{sb.Category}, 0)
	if err != nil {
		if !errors.Is(err, types.ErrInsufficientCandidates) {
			p.logger.WarnContext(ctx, "Gateway fetch failed for block", slog.Any("error", err))
		}
		return nil
	}

	eligible := lo.Filter(candidates, func(c types.POICandidate, _ int) bool {
		if _, used := usedPOIs[c.ExternalID]; used {
			return false
		}
		return c.OpenDuring(sb.StartMinute, sb.EndMinute)
	})
	if len(eligible) == 0 {
		return nil
	}

	if len(picked) == 0 {
		// First pick anchors the day: seed it inside the largest walkable
		// cluster so the rest of the day stays in one neighborhood.
		clusters := Cluster(eligible, p.maxWalkRadius)
		largest := lo.MaxBy(clusters, func(a, b []types.POICandidate) bool { return len(a) > len(b) })
		if len(largest) > 1 {
			eligible = largest
		}
	}

	centroidLat, centroidLon := clusterCentroid(picked)
	for i := range eligible {
		eligible[i].Score = p.scoreCandidate(eligible[i], sb, spec, len(picked) > 0, centroidLat, centroidLon)
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Score > eligible[j].Score })

	best := eligible[0]
	return &best
}

func (p *POIPlanner) scoreCandidate(c types.POICandidate, sb types.SkeletonBlock, spec types.TripSpec, hasAnchor bool, centroidLat, centroidLon float64) float64 {
	var score float64

	if strings.EqualFold(c.Category, sb.Category) {
		score += weightCategory
	}

	if len(spec.Interests) > 0 && len(c.Tags) > 0 {
		overlap := len(lo.Intersect(normalize(c.Tags), normalize(spec.Interests)))
		score += weightInterests * float64(overlap) / float64(len(spec.Interests))
	}

	score += weightRating * c.Rating / 5.0

	if budgetAligned(c.PriceTier, spec.BudgetTier) {
		score += weightBudget
	}

	// Geographic coherence bias from the day's running cluster.
	if hasAnchor {
		d := travel.HaversineMeters(centroidLat, centroidLon, c.Latitude, c.Longitude)
		if d <= p.maxWalkRadius {
			score += weightProximity * (1 - d/p.maxWalkRadius)
		}
	}
	return score
}

func normalize(ss []string) []string {
	return lo.Map(ss, func(s string, _ int) string { return strings.ToLower(strings.TrimSpace(s)) })
}

func budgetAligned(priceTier string, budget types.BudgetTier) bool {
	if priceTier == "" {
		return true
	}
	return strings.EqualFold(priceTier, string(budget))
}
