package planner

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

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSpec(pace types.Pace, days int) types.TripSpec {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return types.TripSpec{
		City:       "Paris",
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, days-1),
		Travelers:  2,
		Pace:       pace,
		BudgetTier: types.BudgetModerate,
		Interests:  []string{"museum", "food"},
		Routine:    types.DefaultRoutine(),
	}
}

type MockProposer struct {
	mock.Mock
}

func (m *MockProposer) ProposeSkeleton(ctx context.Context, spec types.TripSpec) ([]types.DaySkeleton, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.DaySkeleton), args.Error(1)
}

func TestTemplateSkeleton_MediumPaceHasSixBlocks(t *testing.T) {
	spec := testSpec(types.PaceMedium, 1)
	sk := TemplateSkeleton(spec, 1)

	require.Len(t, sk.Blocks, 6)

	meals, activities, nightlife := 0, 0, 0
	for _, b := range sk.Blocks {
		switch b.Type {
		case types.BlockMeal:
			meals++
		case types.BlockActivity:
			activities++
		case types.BlockNightlife:
			nightlife++
		}
	}
	assert.Equal(t, 3, meals)
	assert.Equal(t, 2, activities)
	assert.Equal(t, 1, nightlife)

	require.NoError(t, ValidateSkeletons([]types.DaySkeleton{sk}, spec))
}

func TestTemplateSkeleton_RelaxedPaceSkipsNightlife(t *testing.T) {
	spec := testSpec(types.PaceRelaxed, 1)
	sk := TemplateSkeleton(spec, 1)

	for _, b := range sk.Blocks {
		assert.NotEqual(t, types.BlockNightlife, b.Type)
	}
}

func TestValidateSkeletons_RejectsOverlap(t *testing.T) {
	spec := testSpec(types.PaceMedium, 1)
	sk := TemplateSkeleton(spec, 1)
	sk.Blocks[1].StartMinute = sk.Blocks[0].StartMinute + 10

	err := ValidateSkeletons([]types.DaySkeleton{sk}, spec)
	assert.Error(t, err)
}

func TestValidateSkeletons_RejectsMissingMeal(t *testing.T) {
	spec := testSpec(types.PaceMedium, 1)
	sk := types.DaySkeleton{DayIndex: 1, Blocks: []types.SkeletonBlock{
		{Type: types.BlockActivity, StartMinute: 600, EndMinute: 700, Category: "museum"},
	}}

	err := ValidateSkeletons([]types.DaySkeleton{sk}, spec)
	assert.Error(t, err)
}

func TestValidateSkeletons_RejectsWrongDayCount(t *testing.T) {
	spec := testSpec(types.PaceMedium, 3)
	sk := TemplateSkeleton(spec, 1)

	err := ValidateSkeletons([]types.DaySkeleton{sk}, spec)
	assert.Error(t, err)
}

func TestGenerateSkeleton_InvalidProposalFallsBackToTemplate(t *testing.T) {
	spec := testSpec(types.PaceMedium, 2)
	proposer := new(MockProposer)
	proposer.On("ProposeSkeleton", mock.Anything, mock.Anything).
		Return([]types.DaySkeleton{{DayIndex: 1}}, nil) // wrong count, no blocks

	m := NewMacroPlanner(proposer, testLogger())
	skeletons := m.GenerateSkeleton(context.Background(), spec)

	require.Len(t, skeletons, 2)
	require.NoError(t, ValidateSkeletons(skeletons, spec))
}

func TestGenerateSkeleton_ProposerErrorFallsBackToTemplate(t *testing.T) {
	spec := testSpec(types.PaceFast, 1)
	proposer := new(MockProposer)
	proposer.On("ProposeSkeleton", mock.Anything, mock.Anything).
		Return(nil, errors.New("model timeout"))

	m := NewMacroPlanner(proposer, testLogger())
	skeletons := m.GenerateSkeleton(context.Background(), spec)

	require.Len(t, skeletons, 1)
	require.NoError(t, ValidateSkeletons(skeletons, spec))
}

func TestGenerateSkeleton_ValidProposalIsUsed(t *testing.T) {
	spec := testSpec(types.PaceMedium, 1)
	proposed := []types.DaySkeleton{TemplateSkeleton(spec, 1)}
	proposed[0].Blocks[0].Theme = "marker"

	proposer := new(MockProposer)
	proposer.On("ProposeSkeleton", mock.Anything, mock.Anything).Return(proposed, nil)

	m := NewMacroPlanner(proposer, testLogger())
	skeletons := m.GenerateSkeleton(context.Background(), spec)

	require.Len(t, skeletons, 1)
	assert.Equal(t, "marker", skeletons[0].Blocks[0].Theme)
}

func TestGenerateSkeleton_NilProposerUsesTemplate(t *testing.T) {
	spec := testSpec(types.PaceMedium, 2)
	m := NewMacroPlanner(nil, testLogger())

	skeletons := m.GenerateSkeleton(context.Background(), spec)
	require.Len(t, skeletons, 2)
	require.NoError(t, ValidateSkeletons(skeletons, spec))
}
