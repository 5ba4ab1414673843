package planner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchCandidates(ctx context.Context, area string, categories []string, minCount int) ([]types.POICandidate, error) {
	args := m.Called(ctx, area, categories, minCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.POICandidate), args.Error(1)
}

func poolOf(n int, category string) []types.POICandidate {
	out := make([]types.POICandidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, types.POICandidate{
			ExternalID: fmt.Sprintf("%s-%d", category, i),
			Name:       fmt.Sprintf("%s %d", category, i),
			Category:   category,
			Latitude:   48.85 + float64(i)*0.001,
			Longitude:  2.35 + float64(i)*0.001,
			Rating:     4.0,
		})
	}
	return out
}

func TestFillSkeleton_FillsEveryBlock(t *testing.T) {
	spec := testSpec(types.PaceMedium, 1)
	sk := TemplateSkeleton(spec, 1)

	gw := new(MockGateway)
	gw.On("FetchCandidates", mock.Anything, "Paris", mock.Anything, mock.Anything).
		Return(poolOf(20, "any"), nil)

	p := NewPOIPlanner(gw, 1500, testLogger())
	used := make(map[string]struct{})
	day := p.FillSkeleton(context.Background(), sk, spec.StartDate, spec.City, spec, used)

	require.Len(t, day.Blocks, len(sk.Blocks))
	for i, b := range day.Blocks {
		assert.NotNil(t, b.Place, "block %d should be filled", i)
		assert.False(t, b.Relaxed)
	}
	assert.Len(t, used, len(sk.Blocks))
}

func TestFillSkeleton_NoDuplicatesAcrossDays(t *testing.T) {
	spec := testSpec(types.PaceMedium, 5)
	gw := new(MockGateway)
	gw.On("FetchCandidates", mock.Anything, "Paris", mock.Anything, mock.Anything).
		Return(poolOf(40, "any"), nil)

	p := NewPOIPlanner(gw, 1500, testLogger())
	used := make(map[string]struct{})

	seen := make(map[string]int)
	for d := 1; d <= 5; d++ {
		sk := TemplateSkeleton(spec, d)
		day := p.FillSkeleton(context.Background(), sk, spec.StartDate.AddDate(0, 0, d-1), spec.City, spec, used)
		for _, id := range day.PlaceIDs() {
			seen[id]++
		}
	}

	for id, count := range seen {
		assert.Equal(t, 1, count, "POI %s selected more than once", id)
	}
	// 5 days * 6 blocks, pool of 40 distinct candidates.
	assert.Len(t, seen, 30)
}

func TestFillSkeleton_EmptyPoolRelaxesBlock(t *testing.T) {
	spec := testSpec(types.PaceMedium, 1)
	sk := TemplateSkeleton(spec, 1)

	gw := new(MockGateway)
	gw.On("FetchCandidates", mock.Anything, "Paris", mock.Anything, mock.Anything).
		Return(nil, types.ErrInsufficientCandidates)

	p := NewPOIPlanner(gw, 1500, testLogger())
	day := p.FillSkeleton(context.Background(), sk, spec.StartDate, spec.City, spec, map[string]struct{}{})

	// Slots are kept with an explicit relaxed marker, never dropped.
	require.Len(t, day.Blocks, len(sk.Blocks))
	for _, b := range day.Blocks {
		assert.Nil(t, b.Place)
		assert.True(t, b.Relaxed)
		assert.Equal(t, types.BlockRest, b.Type)
	}
}

func TestFillSkeleton_SkipsClosedCandidates(t *testing.T) {
	spec := testSpec(types.PaceMedium, 1)
	sk := types.DaySkeleton{DayIndex: 1, Blocks: []types.SkeletonBlock{
		{Type: types.BlockActivity, StartMinute: 600, EndMinute: 720, Category: "museum"},
	}}

	closed := types.POICandidate{ExternalID: "closed", Category: "museum", OpenMinute: 800, CloseMinute: 1000, Rating: 5}
	open := types.POICandidate{ExternalID: "open", Category: "museum", OpenMinute: 540, CloseMinute: 1080, Rating: 3}

	gw := new(MockGateway)
	gw.On("FetchCandidates", mock.Anything, "Paris", []string{"museum"}, mock.Anything).
		Return([]types.POICandidate{closed, open}, nil)

	p := NewPOIPlanner(gw, 1500, testLogger())
	day := p.FillSkeleton(context.Background(), sk, spec.StartDate, spec.City, spec, map[string]struct{}{})

	require.NotNil(t, day.Blocks[0].Place)
	assert.Equal(t, "open", day.Blocks[0].Place.ExternalID)
}

func TestFillSkeleton_RestBlocksPassThrough(t *testing.T) {
	spec := testSpec(types.PaceRelaxed, 1)
	sk := types.DaySkeleton{DayIndex: 1, Blocks: []types.SkeletonBlock{
		{Type: types.BlockRest, StartMinute: 840, EndMinute: 900},
	}}

	gw := new(MockGateway)
	p := NewPOIPlanner(gw, 1500, testLogger())
	day := p.FillSkeleton(context.Background(), sk, spec.StartDate, spec.City, spec, map[string]struct{}{})

	require.Len(t, day.Blocks, 1)
	assert.Nil(t, day.Blocks[0].Place)
	gw.AssertNotCalled(t, "FetchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFillSkeleton_DaySettingsFromSpec(t *testing.T) {
	spec := testSpec(types.PaceFast, 1)
	sk := TemplateSkeleton(spec, 1)

	gw := new(MockGateway)
	gw.On("FetchCandidates", mock.Anything, "Paris", mock.Anything, mock.Anything).
		Return(poolOf(20, "any"), nil)

	p := NewPOIPlanner(gw, 1500, testLogger())
	day := p.FillSkeleton(context.Background(), sk, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), spec.City, spec, map[string]struct{}{})

	assert.Equal(t, types.PaceFast, day.Settings.Pace)
	assert.Equal(t, spec.Routine.WakeMinute, day.Settings.StartMinute)
	assert.Equal(t, spec.Routine.SleepMinute, day.Settings.EndMinute)
	assert.Equal(t, types.BudgetModerate, day.Settings.BudgetTier)
}
