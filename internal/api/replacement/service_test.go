package replacement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-studio/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-studio/internal/api/travel"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetDay(ctx context.Context, tripID uuid.UUID, dayIndex int) (types.ItineraryDay, int, int, error) {
	args := m.Called(ctx, tripID, dayIndex)
	return args.Get(0).(types.ItineraryDay), args.Int(1), args.Int(2), args.Error(3)
}

func (m *MockRepository) GetTripArea(ctx context.Context, tripID uuid.UUID) (string, error) {
	args := m.Called(ctx, tripID)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) ListDays(ctx context.Context, tripID uuid.UUID) ([]types.ItineraryDay, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ItineraryDay), args.Error(1)
}

func (m *MockRepository) ReplaceDayRoute(ctx context.Context, tripID uuid.UUID, dayIndex int, day types.ItineraryDay, baseVersion int) (int, error) {
	args := m.Called(ctx, tripID, dayIndex, day, baseVersion)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetReceipt(ctx context.Context, key string) (*Receipt, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Receipt), args.Error(1)
}

func (m *MockRepository) SaveReceipt(ctx context.Context, key string, tripID uuid.UUID, dayIndex int, receipt Receipt) error {
	args := m.Called(ctx, key, tripID, dayIndex, receipt)
	return args.Error(0)
}

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(repo Repository, gw *MockGateway) *ServiceImpl {
	return NewServiceImpl(repo, gw, travel.NewHeuristicProvider(), testLogger())
}

func testDay() types.ItineraryDay {
	mk := func(i int, id string) types.ItineraryBlock {
		return types.ItineraryBlock{
			Type:        types.BlockActivity,
			StartMinute: 600 + i*120,
			EndMinute:   700 + i*120,
			Place: &types.POICandidate{
				ExternalID: id,
				Name:       id,
				Category:   "museum",
				Latitude:   48.85 + float64(i)*0.001,
				Longitude:  2.35,
			},
		}
	}
	return types.ItineraryDay{
		DayIndex: 1,
		Date:     time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Blocks:   []types.ItineraryBlock{mk(0, "louvre"), mk(1, "orsay")},
		Settings: types.DaySettings{Pace: types.PaceMedium, StartMinute: 480, EndMinute: 1380},
	}
}

func pool(ids ...string) []types.POICandidate {
	out := make([]types.POICandidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, types.POICandidate{
			ExternalID: id,
			Name:       id,
			Category:   "museum",
			Latitude:   48.85 + float64(i)*0.0005,
			Longitude:  2.351,
			Rating:     4,
		})
	}
	return out
}

func TestFindAlternatives_ExcludesTripPlacesAndClosed(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()
	day := testDay()

	repo.On("GetDay", mock.Anything, tripID, 1).Return(day, 1, 1, nil)
	repo.On("GetTripArea", mock.Anything, tripID).Return("Paris", nil)
	repo.On("ListDays", mock.Anything, tripID).Return([]types.ItineraryDay{day}, nil)

	closed := types.POICandidate{ExternalID: "closed", Category: "museum", OpenMinute: 100, CloseMinute: 200, Rating: 5}
	gw.On("FetchCandidates", mock.Anything, "Paris", []string{"museum"}, mock.Anything).
		Return(append(pool("orangerie", "orsay", "rodin"), closed), nil)

	s := newService(repo, gw)
	options, err := s.FindAlternatives(context.Background(), tripID, 1, 0)

	require.NoError(t, err)
	require.Len(t, options, 2)
	ids := []string{options[0].Place.ExternalID, options[1].Place.ExternalID}
	assert.NotContains(t, ids, "orsay")  // already in the trip
	assert.NotContains(t, ids, "closed") // cannot accommodate the slot
	for _, o := range options {
		assert.Greater(t, o.Score, 0.0)
		assert.GreaterOrEqual(t, o.DistanceMeters, 0)
	}
}

func TestFindAlternatives_BlockWithoutPlace(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()
	day := testDay()
	day.Blocks[0].Place = nil

	repo.On("GetDay", mock.Anything, tripID, 1).Return(day, 1, 1, nil)

	s := newService(repo, gw)
	_, err := s.FindAlternatives(context.Background(), tripID, 1, 0)
	assert.ErrorIs(t, err, types.ErrPlaceNotFound)
}

func TestApplyReplacement_Succeeds(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	repo.On("GetReceipt", mock.Anything, "key-1").Return(nil, nil)
	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 4, nil)
	repo.On("ListDays", mock.Anything, tripID).Return([]types.ItineraryDay{testDay()}, nil)
	repo.On("GetTripArea", mock.Anything, tripID).Return("Paris", nil)
	gw.On("FetchCandidates", mock.Anything, "Paris", []string{"museum"}, mock.Anything).
		Return(pool("orangerie"), nil)
	repo.On("ReplaceDayRoute", mock.Anything, tripID, 1, mock.Anything, 4).Return(5, nil)
	repo.On("SaveReceipt", mock.Anything, "key-1", tripID, 1, mock.Anything).Return(nil)

	s := newService(repo, gw)
	block, version, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "orangerie", "key-1", 4)

	require.NoError(t, err)
	assert.Equal(t, 5, version)
	require.NotNil(t, block.Place)
	assert.Equal(t, "orangerie", block.Place.ExternalID)
	repo.AssertCalled(t, "SaveReceipt", mock.Anything, "key-1", tripID, 1, mock.MatchedBy(func(r Receipt) bool {
		return r.OldPlaceID == "louvre" && r.NewPlaceID == "orangerie"
	}))
}

func TestApplyReplacement_RejectsPlaceAlreadyInTrip(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	// "orsay" sits in another block of the same trip, so swapping it in
	// would schedule the same POI twice.
	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 4, nil)
	repo.On("ListDays", mock.Anything, tripID).Return([]types.ItineraryDay{testDay()}, nil)

	s := newService(repo, gw)
	_, _, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "orsay", "", 4)

	assert.ErrorIs(t, err, types.ErrValidation)
	gw.AssertNotCalled(t, "FetchCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ReplaceDayRoute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyReplacement_ReplaysReceipt(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	stored := &Receipt{
		OldPlaceID:   "louvre",
		NewPlaceID:   "orangerie",
		Block:        types.ItineraryBlock{Type: types.BlockActivity, Place: &types.POICandidate{ExternalID: "orangerie"}},
		RouteVersion: 5,
	}
	repo.On("GetReceipt", mock.Anything, "key-1").Return(stored, nil)

	s := newService(repo, gw)

	// A retry with the same key returns the same result both times and
	// never touches the day again, even with a now-stale client version.
	for i := 0; i < 2; i++ {
		block, version, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "orangerie", "key-1", 4)
		require.NoError(t, err, "attempt %d", i)
		assert.Equal(t, 5, version)
		assert.Equal(t, "orangerie", block.Place.ExternalID)
	}
	repo.AssertNotCalled(t, "GetDay", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ReplaceDayRoute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyReplacement_RejectsKeyReuseWithDifferentParams(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	stored := &Receipt{
		OldPlaceID:   "louvre",
		NewPlaceID:   "orangerie",
		Block:        types.ItineraryBlock{Type: types.BlockActivity, Place: &types.POICandidate{ExternalID: "orangerie"}},
		RouteVersion: 5,
	}
	repo.On("GetReceipt", mock.Anything, "key-1").Return(stored, nil)

	s := newService(repo, gw)
	_, _, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "rodin", "key-1", 5)

	assert.ErrorIs(t, err, types.ErrValidation)
	repo.AssertNotCalled(t, "GetDay", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyReplacement_VersionConflict(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	repo.On("GetReceipt", mock.Anything, "key-2").Return(nil, nil)
	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 7, nil)

	s := newService(repo, gw)
	_, _, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "orangerie", "key-2", 4)

	assert.ErrorIs(t, err, types.ErrVersionConflict)
	repo.AssertNotCalled(t, "ReplaceDayRoute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyReplacement_WrongOldPlace(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	repo.On("GetReceipt", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 4, nil)

	s := newService(repo, gw)
	_, _, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "pompidou", "orangerie", "k", 4)
	assert.ErrorIs(t, err, types.ErrPlaceNotFound)
}

func TestApplyReplacement_UnknownNewPlace(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	repo.On("GetReceipt", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 4, nil)
	repo.On("ListDays", mock.Anything, tripID).Return([]types.ItineraryDay{testDay()}, nil)
	repo.On("GetTripArea", mock.Anything, tripID).Return("Paris", nil)
	gw.On("FetchCandidates", mock.Anything, "Paris", []string{"museum"}, mock.Anything).
		Return(pool("orangerie"), nil)

	s := newService(repo, gw)
	_, _, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "ghost", "k", 4)
	assert.ErrorIs(t, err, types.ErrPlaceNotFound)
}

func TestApplyReplacement_MissingIDs(t *testing.T) {
	s := newService(new(MockRepository), new(MockGateway))
	_, _, err := s.ApplyReplacement(context.Background(), uuid.New(), 1, 0, "", "x", "", 1)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestApplyReplacement_NoKeySkipsReceipts(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 4, nil)
	repo.On("ListDays", mock.Anything, tripID).Return([]types.ItineraryDay{testDay()}, nil)
	repo.On("GetTripArea", mock.Anything, tripID).Return("Paris", nil)
	gw.On("FetchCandidates", mock.Anything, "Paris", []string{"museum"}, mock.Anything).
		Return(pool("orangerie"), nil)
	repo.On("ReplaceDayRoute", mock.Anything, tripID, 1, mock.Anything, 4).Return(5, nil)

	s := newService(repo, gw)
	_, version, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "orangerie", "", 4)

	require.NoError(t, err)
	assert.Equal(t, 5, version)
	repo.AssertNotCalled(t, "GetReceipt", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SaveReceipt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyReplacement_RecomputesTravel(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	var saved types.ItineraryDay
	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 4, nil)
	repo.On("ListDays", mock.Anything, tripID).Return([]types.ItineraryDay{testDay()}, nil)
	repo.On("GetTripArea", mock.Anything, tripID).Return("Paris", nil)
	gw.On("FetchCandidates", mock.Anything, "Paris", []string{"museum"}, mock.Anything).
		Return(pool("orangerie"), nil)
	repo.On("ReplaceDayRoute", mock.Anything, tripID, 1, mock.Anything, 4).
		Run(func(args mock.Arguments) { saved = args.Get(3).(types.ItineraryDay) }).
		Return(5, nil)

	s := newService(repo, gw)
	_, _, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "orangerie", "", 4)

	require.NoError(t, err)
	assert.Equal(t, 2, saved.Metrics.Places)
	require.NotNil(t, saved.Blocks[1].Travel)
	assert.Greater(t, saved.Metrics.TravelMeters, 0)
}

func TestApplyReplacement_ReceiptFailureDoesNotFailApply(t *testing.T) {
	repo := new(MockRepository)
	gw := new(MockGateway)
	tripID := uuid.New()

	repo.On("GetReceipt", mock.Anything, "key-3").Return(nil, nil)
	repo.On("GetDay", mock.Anything, tripID, 1).Return(testDay(), 1, 4, nil)
	repo.On("ListDays", mock.Anything, tripID).Return([]types.ItineraryDay{testDay()}, nil)
	repo.On("GetTripArea", mock.Anything, tripID).Return("Paris", nil)
	gw.On("FetchCandidates", mock.Anything, "Paris", []string{"museum"}, mock.Anything).
		Return(pool("orangerie"), nil)
	repo.On("ReplaceDayRoute", mock.Anything, tripID, 1, mock.Anything, 4).Return(5, nil)
	repo.On("SaveReceipt", mock.Anything, "key-3", tripID, 1, mock.Anything).
		Return(fmt.Errorf("disk full"))

	s := newService(repo, gw)
	_, version, err := s.ApplyReplacement(context.Background(), tripID, 1, 0, "louvre", "orangerie", "key-3", 4)

	require.NoError(t, err)
	assert.Equal(t, 5, version)
}
