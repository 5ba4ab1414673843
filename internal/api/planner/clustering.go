package planner

import (
	"github.com/FACorreiaa/go-trip-studio/internal/api/travel"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// Cluster groups POIs into geographically coherent sets using a greedy
// nearest-neighbor chain bounded by a walking radius. The grouping is a
// soft ordering/selection bias, not a hard constraint: the route optimizer
// may still cross clusters when the travel-time math favors it.
func Cluster(pois []types.POICandidate, maxWalkRadiusMeters float64) [][]types.POICandidate {
	if len(pois) == 0 {
		return nil
	}

	remaining := make([]types.POICandidate, len(pois))
	copy(remaining, pois)

	var clusters [][]types.POICandidate
	for len(remaining) > 0 {
		seed := remaining[0]
		remaining = remaining[1:]
		cluster := []types.POICandidate{seed}
		anchor := seed

		for {
			bestIdx := -1
			bestDist := maxWalkRadiusMeters
			for i, p := range remaining {
				d := travel.HaversineMeters(anchor.Latitude, anchor.Longitude, p.Latitude, p.Longitude)
				if d <= bestDist {
					bestDist = d
					bestIdx = i
				}
			}
			if bestIdx < 0 {
				break
			}
			anchor = remaining[bestIdx]
			cluster = append(cluster, anchor)
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// clusterCentroid is the mean coordinate of a set of POIs.
func clusterCentroid(pois []types.POICandidate) (lat, lon float64) {
	if len(pois) == 0 {
		return 0, 0
	}
	for _, p := range pois {
		lat += p.Latitude
		lon += p.Longitude
	}
	n := float64(len(pois))
	return lat / n, lon / n
}
