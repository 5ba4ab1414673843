package travel

import (
	"context"
	"math"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// Leg is the cost of moving between two points with a given mode.
type Leg struct {
	Minutes  int
	Meters   int
	Polyline string
}

// Provider computes travel legs. The default implementation is a haversine
// heuristic; a live routing API can be plugged in behind the same interface.
type Provider interface {
	LegCost(ctx context.Context, fromLat, fromLon, toLat, toLon float64, mode types.TransportMode) (Leg, error)
}

var _ Provider = (*HeuristicProvider)(nil)

// HeuristicProvider estimates travel cost from straight-line distance with
// a per-mode speed and a detour factor for street networks.
type HeuristicProvider struct {
	DetourFactor float64 // straight-line to street-distance multiplier
}

func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{DetourFactor: 1.3}
}

// metersPerMinute by transport mode: ~4.5 km/h walking, ~20 km/h transit
// door to door, ~30 km/h urban driving.
func metersPerMinute(mode types.TransportMode) float64 {
	switch mode {
	case types.ModePublic:
		return 333
	case types.ModeCar:
		return 500
	default:
		return 75
	}
}

func (p *HeuristicProvider) LegCost(_ context.Context, fromLat, fromLon, toLat, toLon float64, mode types.TransportMode) (Leg, error) {
	meters := HaversineMeters(fromLat, fromLon, toLat, toLon) * p.DetourFactor
	speed := metersPerMinute(mode)
	minutes := int(math.Ceil(meters / speed))
	return Leg{
		Minutes: minutes,
		Meters:  int(math.Round(meters)),
	}, nil
}

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
