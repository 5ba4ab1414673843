package poisource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-studio/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CachedCandidates(ctx context.Context, cityKey, category string) ([]types.POICandidate, time.Time, error) {
	args := m.Called(ctx, cityKey, category)
	if args.Get(0) == nil {
		return nil, args.Get(1).(time.Time), args.Error(2)
	}
	return args.Get(0).([]types.POICandidate), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockRepository) UpsertCandidates(ctx context.Context, cityKey, category string, pois []types.POICandidate) error {
	args := m.Called(ctx, cityKey, category, pois)
	return args.Error(0)
}

type MockSearchProvider struct {
	mock.Mock
}

func (m *MockSearchProvider) Search(ctx context.Context, area, category string, limit int) ([]types.POICandidate, error) {
	args := m.Called(ctx, area, category, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.POICandidate), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidates(ids ...string) []types.POICandidate {
	out := make([]types.POICandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.POICandidate{ExternalID: id, Name: id, Category: "museum", Rating: 4})
	}
	return out
}

func TestFetchCandidates_CacheSufficientSkipsLive(t *testing.T) {
	repo := new(MockRepository)
	provider := new(MockSearchProvider)
	svc := NewServiceImpl(repo, provider, 2, time.Hour, testLogger())

	repo.On("CachedCandidates", mock.Anything, "paris", "museum").
		Return(candidates("a", "b", "c"), time.Now(), nil)

	got, err := svc.FetchCandidates(context.Background(), "Paris", []string{"museum"}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	provider.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchCandidates_InsufficientCacheAlwaysCallsLiveOnce(t *testing.T) {
	repo := new(MockRepository)
	provider := new(MockSearchProvider)
	svc := NewServiceImpl(repo, provider, 5, time.Hour, testLogger())

	repo.On("CachedCandidates", mock.Anything, "paris", "museum").
		Return(candidates("a"), time.Now(), nil)
	provider.On("Search", mock.Anything, "Paris", "museum", 10).
		Return(candidates("b", "c", "d", "e"), nil).Once()
	repo.On("UpsertCandidates", mock.Anything, "paris", "museum", mock.Anything).Return(nil)

	got, err := svc.FetchCandidates(context.Background(), "Paris", []string{"museum"}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	provider.AssertNumberOfCalls(t, "Search", 1)
}

func TestFetchCandidates_CaseVariantsShareCacheKey(t *testing.T) {
	repo := new(MockRepository)
	provider := new(MockSearchProvider)
	svc := NewServiceImpl(repo, provider, 2, time.Hour, testLogger())

	// Every casing and padding variant must resolve to the normalized key;
	// a key mismatch here would skip the cache and starve the planner.
	repo.On("CachedCandidates", mock.Anything, "new york", "food").
		Return(candidates("x", "y"), time.Now(), nil)

	for _, area := range []string{"New York", "  new   YORK ", "new york"} {
		got, err := svc.FetchCandidates(context.Background(), area, []string{"food"}, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	provider.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchCandidates_CacheReadFailureFallsThroughToLive(t *testing.T) {
	repo := new(MockRepository)
	provider := new(MockSearchProvider)
	svc := NewServiceImpl(repo, provider, 2, time.Hour, testLogger())

	repo.On("CachedCandidates", mock.Anything, "rome", "food").
		Return(nil, time.Time{}, errors.New("connection reset"))
	provider.On("Search", mock.Anything, "Rome", "food", 4).
		Return(candidates("a", "b"), nil).Once()
	repo.On("UpsertCandidates", mock.Anything, "rome", "food", mock.Anything).Return(nil)

	got, err := svc.FetchCandidates(context.Background(), "Rome", []string{"food"}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchCandidates_LiveFailureDegradesToCacheOnly(t *testing.T) {
	repo := new(MockRepository)
	provider := new(MockSearchProvider)
	svc := NewServiceImpl(repo, provider, 5, time.Hour, testLogger())

	repo.On("CachedCandidates", mock.Anything, "lisbon", "museum").
		Return(candidates("a", "b"), time.Now(), nil)
	provider.On("Search", mock.Anything, "Lisbon", "museum", 10).
		Return(nil, errors.New("quota exceeded"))

	got, err := svc.FetchCandidates(context.Background(), "Lisbon", []string{"museum"}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchCandidates_BothSourcesEmpty(t *testing.T) {
	repo := new(MockRepository)
	provider := new(MockSearchProvider)
	svc := NewServiceImpl(repo, provider, 2, time.Hour, testLogger())

	repo.On("CachedCandidates", mock.Anything, "atlantis", "museum").
		Return(nil, time.Time{}, nil)
	provider.On("Search", mock.Anything, "Atlantis", "museum", 4).
		Return(nil, errors.New("no such place"))

	_, err := svc.FetchCandidates(context.Background(), "Atlantis", []string{"museum"}, 2)
	assert.ErrorIs(t, err, types.ErrInsufficientCandidates)
}

func TestFetchCandidates_MergeDeduplicatesCacheWins(t *testing.T) {
	repo := new(MockRepository)
	provider := new(MockSearchProvider)
	svc := NewServiceImpl(repo, provider, 3, time.Hour, testLogger())

	cached := []types.POICandidate{{ExternalID: "a", Name: "Curated Name", Category: "museum", Cached: true}}
	live := []types.POICandidate{
		{ExternalID: "a", Name: "Raw Name", Category: "museum"},
		{ExternalID: "b", Name: "Fresh", Category: "museum"},
	}
	repo.On("CachedCandidates", mock.Anything, "berlin", "museum").Return(cached, time.Now(), nil)
	provider.On("Search", mock.Anything, "Berlin", "museum", 6).Return(live, nil)
	repo.On("UpsertCandidates", mock.Anything, "berlin", "museum", mock.Anything).Return(nil)

	got, err := svc.FetchCandidates(context.Background(), "Berlin", []string{"museum"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Curated Name", got[0].Name)
}

func TestNormalizeArea(t *testing.T) {
	assert.Equal(t, "paris", NormalizeArea("  PaRiS "))
	assert.Equal(t, "new york", NormalizeArea("New   York"))
}
