package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-studio/app/observability/metrics"
	generativeAI "github.com/FACorreiaa/go-trip-studio/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service runs the full planning pipeline: skeleton, POI fill, route
// optimization, critique, atomic persistence.
type Service interface {
	CreateTrip(ctx context.Context, spec types.TripSpec) (uuid.UUID, *types.Itinerary, []types.CritiqueIssue, error)
	RegenerateItinerary(ctx context.Context, tripID uuid.UUID) (*types.Itinerary, []types.CritiqueIssue, error)
}

type ServiceImpl struct {
	logger     *slog.Logger
	repo       Repository
	macro      *MacroPlanner
	poiPlanner *POIPlanner
	optimizer  *RouteOptimizer
	aiClient   *generativeAI.AIClient // nil disables generated summaries
	genTimeout time.Duration
}

func NewServiceImpl(repo Repository, macro *MacroPlanner, poiPlanner *POIPlanner, optimizer *RouteOptimizer, aiClient *generativeAI.AIClient, genTimeout time.Duration, logger *slog.Logger) *ServiceImpl {
	if genTimeout <= 0 {
		genTimeout = 90 * time.Second
	}
	return &ServiceImpl{
		logger:     logger,
		repo:       repo,
		macro:      macro,
		poiPlanner: poiPlanner,
		optimizer:  optimizer,
		aiClient:   aiClient,
		genTimeout: genTimeout,
	}
}

func (s *ServiceImpl) CreateTrip(ctx context.Context, spec types.TripSpec) (uuid.UUID, *types.Itinerary, []types.CritiqueIssue, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "CreateTrip")
	defer span.End()

	if len(spec.Routine.MealWindows) == 0 {
		spec.Routine = types.DefaultRoutine()
	}
	if err := spec.Validate(); err != nil {
		span.RecordError(err)
		return uuid.Nil, nil, nil, err
	}

	tripID, err := s.repo.SaveTrip(ctx, spec)
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, nil, nil, fmt.Errorf("failed to save trip: %w", err)
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	it, issues, err := s.generate(ctx, tripID, spec)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	return tripID, it, issues, nil
}

func (s *ServiceImpl) RegenerateItinerary(ctx context.Context, tripID uuid.UUID) (*types.Itinerary, []types.CritiqueIssue, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "RegenerateItinerary")
	defer span.End()

	spec, err := s.repo.GetTripSpec(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return s.generate(ctx, tripID, spec)
}

// generate is the planning run. Days are filled strictly in order so the
// trip-wide used-POI accumulator is causally correct; parallelizing across
// days would break the uniqueness invariant.
func (s *ServiceImpl) generate(ctx context.Context, tripID uuid.UUID, spec types.TripSpec) (*types.Itinerary, []types.CritiqueIssue, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()

	s.logger.InfoContext(ctx, "Starting planning run",
		slog.String("tripID", tripID.String()),
		slog.String("city", spec.City),
		slog.Int("days", spec.Days()))

	skeletons := s.macro.GenerateSkeleton(ctx, spec)
	if len(skeletons) == 0 {
		// Macro failure aborts the run: nothing is persisted.
		return nil, nil, fmt.Errorf("%w: macro planner produced no day skeletons", types.ErrValidation)
	}

	usedPOIs := make(map[string]struct{})
	var issues []types.CritiqueIssue
	days := make([]types.ItineraryDay, 0, len(skeletons))

	for i, sk := range skeletons {
		date := spec.StartDate.AddDate(0, 0, i)
		day := s.poiPlanner.FillSkeleton(ctx, sk, date, spec.City, spec, usedPOIs)

		optimized, dayIssues := s.optimizer.Optimize(ctx, day)
		issues = append(issues, dayIssues...)
		days = append(days, optimized)
	}

	it := types.Itinerary{
		TripID:    tripID,
		CreatedAt: time.Now().UTC(),
		Days:      days,
	}

	s.summarize(ctx, &it, spec)

	// Advisory only: critique failures or findings never block persistence.
	issues = append(issues, Critique(it, spec)...)

	if err := s.repo.SaveItinerary(ctx, it); err != nil {
		return nil, nil, fmt.Errorf("failed to persist itinerary: %w", err)
	}

	metrics.Get().PlanDurationSeconds.Record(ctx, time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "Planning run complete",
		slog.String("tripID", tripID.String()),
		slog.Int("days", len(it.Days)),
		slog.Int("issues", len(issues)),
		slog.Duration("duration", time.Since(start)))

	return &it, issues, nil
}

// summarize fills the trip summary and per-day themes concurrently. Any
// generation failure degrades to deterministic text; it never fails the run.
func (s *ServiceImpl) summarize(ctx context.Context, it *types.Itinerary, spec types.TripSpec) {
	fallbackTheme := func(day types.ItineraryDay) string {
		names := placeNames(day)
		if len(names) == 0 {
			return fmt.Sprintf("Free day in %s", spec.City)
		}
		return fmt.Sprintf("%s and more", names[0])
	}
	it.Summary = fmt.Sprintf("%d days in %s at a %s pace.", spec.Days(), spec.City, spec.Pace)

	if s.aiClient == nil {
		for i := range it.Days {
			it.Days[i].Theme = fallbackTheme(it.Days[i])
		}
		return
	}

	config := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](defaultTemperature)}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txt, err := s.aiClient.GenerateResponse(gctx, GetTripSummaryPrompt(spec), config)
		if err != nil {
			return fmt.Errorf("trip summary generation: %w", err)
		}
		it.Summary = strings.TrimSpace(txt)
		return nil
	})

	for i := range it.Days {
		g.Go(func() error {
			day := it.Days[i]
			txt, err := s.aiClient.GenerateResponse(gctx, GetDayThemePrompt(spec.City, day.DayIndex, placeNames(day)), config)
			if err != nil {
				return fmt.Errorf("day %d theme generation: %w", day.DayIndex, err)
			}
			it.Days[i].Theme = strings.TrimSpace(txt)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "Summary generation degraded to deterministic text", slog.Any("error", err))
		for i := range it.Days {
			if it.Days[i].Theme == "" {
				it.Days[i].Theme = fallbackTheme(it.Days[i])
			}
		}
		if it.Summary == "" {
			it.Summary = fmt.Sprintf("%d days in %s at a %s pace.", spec.Days(), spec.City, spec.Pace)
		}
	}
}

func placeNames(day types.ItineraryDay) []string {
	var names []string
	for _, b := range day.Blocks {
		if b.Place != nil {
			names = append(names, b.Place.Name)
		}
	}
	return names
}
