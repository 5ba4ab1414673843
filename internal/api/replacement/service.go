package replacement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-studio/internal/api/poisource"
	"github.com/FACorreiaa/go-trip-studio/internal/api/travel"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// maxAlternatives caps the ranked option list returned to clients.
const maxAlternatives = 5

var _ Service = (*ServiceImpl)(nil)

// Service is the fast path for swapping a single placed POI without going
// through a full studio change set. Applies race on the day's route version
// rather than its revision, and are idempotent on a client-supplied key.
type Service interface {
	FindAlternatives(ctx context.Context, tripID uuid.UUID, dayIndex, blockIndex int) ([]types.ReplacementOption, error)
	ApplyReplacement(ctx context.Context, tripID uuid.UUID, dayIndex, blockIndex int, oldPlaceID, newPlaceID, idempotencyKey string, clientRouteVersion int) (types.ItineraryBlock, int, error)
}

type ServiceImpl struct {
	logger  *slog.Logger
	repo    Repository
	gateway poisource.Service
	travel  travel.Provider
}

func NewServiceImpl(repo Repository, gateway poisource.Service, tp travel.Provider, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		repo:    repo,
		gateway: gateway,
		travel:  tp,
	}
}

func (s *ServiceImpl) FindAlternatives(ctx context.Context, tripID uuid.UUID, dayIndex, blockIndex int) ([]types.ReplacementOption, error) {
	ctx, span := otel.Tracer("Replacement").Start(ctx, "FindAlternatives")
	defer span.End()
	span.SetAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.Int("day.index", dayIndex),
		attribute.Int("block.index", blockIndex),
	)

	day, _, _, err := s.repo.GetDay(ctx, tripID, dayIndex)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	block, err := placedBlock(day, blockIndex)
	if err != nil {
		return nil, err
	}
	current := *block.Place

	area, err := s.repo.GetTripArea(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	candidates, err := s.gateway.FetchCandidates(ctx, area, []string{current.Category}, maxAlternatives*2)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate fetch failed")
		return nil, err
	}

	// A swap must not introduce a POI the trip already visits.
	used := make(map[string]struct{})
	days, err := s.repo.ListDays(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, d := range days {
		for _, id := range d.PlaceIDs() {
			used[id] = struct{}{}
		}
	}

	eligible := lo.Filter(candidates, func(c types.POICandidate, _ int) bool {
		if _, taken := used[c.ExternalID]; taken {
			return false
		}
		return c.OpenDuring(block.StartMinute, block.EndMinute)
	})

	options := lo.Map(eligible, func(c types.POICandidate, _ int) types.ReplacementOption {
		meters := travel.HaversineMeters(current.Latitude, current.Longitude, c.Latitude, c.Longitude)
		return types.ReplacementOption{
			Place:          c,
			DistanceMeters: int(meters),
			Score:          rankOption(c, meters),
		}
	})
	sort.SliceStable(options, func(i, j int) bool { return options[i].Score > options[j].Score })
	if len(options) > maxAlternatives {
		options = options[:maxAlternatives]
	}

	span.SetStatus(codes.Ok, "alternatives ranked")
	return options, nil
}

// rankOption favors well-rated candidates close to the slot being swapped.
// Distance decays the score linearly out to 3km.
func rankOption(c types.POICandidate, meters float64) float64 {
	proximity := 1.0 - meters/3000
	if proximity < 0 {
		proximity = 0
	}
	return c.Rating + 2*proximity
}

func (s *ServiceImpl) ApplyReplacement(ctx context.Context, tripID uuid.UUID, dayIndex, blockIndex int, oldPlaceID, newPlaceID, idempotencyKey string, clientRouteVersion int) (types.ItineraryBlock, int, error) {
	ctx, span := otel.Tracer("Replacement").Start(ctx, "ApplyReplacement")
	defer span.End()
	span.SetAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.Int("day.index", dayIndex),
		attribute.Int("block.index", blockIndex),
		attribute.Int("client.route_version", clientRouteVersion),
	)

	if oldPlaceID == "" || newPlaceID == "" {
		return types.ItineraryBlock{}, 0, fmt.Errorf("%w: both place ids are required", types.ErrValidation)
	}

	// An already-applied key short-circuits before any version check so a
	// retry after a successful apply does not see a spurious conflict.
	if idempotencyKey != "" {
		receipt, err := s.repo.GetReceipt(ctx, idempotencyKey)
		if err != nil {
			span.RecordError(err)
			return types.ItineraryBlock{}, 0, err
		}
		if receipt != nil {
			if receipt.OldPlaceID != oldPlaceID || receipt.NewPlaceID != newPlaceID {
				span.SetStatus(codes.Error, "idempotency key reused")
				return types.ItineraryBlock{}, 0, fmt.Errorf("%w: idempotency key %s was used with different place ids", types.ErrValidation, idempotencyKey)
			}
			s.logger.InfoContext(ctx, "Replacement replayed from receipt",
				slog.String("idempotencyKey", idempotencyKey),
				slog.Int("routeVersion", receipt.RouteVersion))
			span.SetStatus(codes.Ok, "replayed from receipt")
			return receipt.Block, receipt.RouteVersion, nil
		}
	}

	day, _, routeVersion, err := s.repo.GetDay(ctx, tripID, dayIndex)
	if err != nil {
		span.RecordError(err)
		return types.ItineraryBlock{}, 0, err
	}
	if routeVersion != clientRouteVersion {
		span.SetStatus(codes.Error, "route version conflict")
		return types.ItineraryBlock{}, 0, fmt.Errorf("%w: base %d, current %d", types.ErrVersionConflict, clientRouteVersion, routeVersion)
	}

	block, err := placedBlock(day, blockIndex)
	if err != nil {
		return types.ItineraryBlock{}, 0, err
	}
	if block.Place.ExternalID != oldPlaceID {
		return types.ItineraryBlock{}, 0, fmt.Errorf("%w: block %d holds %s, not %s", types.ErrPlaceNotFound, blockIndex, block.Place.ExternalID, oldPlaceID)
	}

	// A swap must not install a POI the trip already visits elsewhere.
	days, err := s.repo.ListDays(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		return types.ItineraryBlock{}, 0, err
	}
	for _, d := range days {
		for _, id := range d.PlaceIDs() {
			if id == newPlaceID && id != oldPlaceID {
				return types.ItineraryBlock{}, 0, fmt.Errorf("%w: place %s is already in the itinerary", types.ErrValidation, newPlaceID)
			}
		}
	}

	newPlace, err := s.resolveCandidate(ctx, tripID, block.Place.Category, newPlaceID)
	if err != nil {
		span.RecordError(err)
		return types.ItineraryBlock{}, 0, err
	}

	work, err := copyDay(day)
	if err != nil {
		return types.ItineraryBlock{}, 0, err
	}
	work.Blocks[blockIndex].Place = &newPlace
	if err := travel.RecomputeDay(ctx, s.travel, &work); err != nil {
		span.RecordError(err)
		return types.ItineraryBlock{}, 0, fmt.Errorf("failed to recompute travel legs: %w", err)
	}

	newVersion, err := s.repo.ReplaceDayRoute(ctx, tripID, dayIndex, work, clientRouteVersion)
	if err != nil {
		span.RecordError(err)
		return types.ItineraryBlock{}, 0, err
	}
	updated := work.Blocks[blockIndex]

	if idempotencyKey != "" {
		// The swap is committed; a receipt failure only costs replay safety.
		if err := s.repo.SaveReceipt(ctx, idempotencyKey, tripID, dayIndex, Receipt{
			OldPlaceID:   oldPlaceID,
			NewPlaceID:   newPlaceID,
			Block:        updated,
			RouteVersion: newVersion,
		}); err != nil {
			s.logger.WarnContext(ctx, "Failed to save replacement receipt",
				slog.String("idempotencyKey", idempotencyKey),
				slog.Any("error", err))
		}
	}

	s.logger.InfoContext(ctx, "Place replaced",
		slog.String("tripID", tripID.String()),
		slog.Int("dayIndex", dayIndex),
		slog.Int("blockIndex", blockIndex),
		slog.String("from", oldPlaceID),
		slog.String("to", newPlaceID),
		slog.Int("routeVersion", newVersion))
	span.SetStatus(codes.Ok, "replacement applied")
	return updated, newVersion, nil
}

// resolveCandidate finds the chosen alternative again by id. Candidates are
// ephemeral, so the id is re-resolved against the gateway instead of
// trusting coordinates supplied by the client.
func (s *ServiceImpl) resolveCandidate(ctx context.Context, tripID uuid.UUID, category, placeID string) (types.POICandidate, error) {
	area, err := s.repo.GetTripArea(ctx, tripID)
	if err != nil {
		return types.POICandidate{}, err
	}
	candidates, err := s.gateway.FetchCandidates(ctx, area, []string{category}, maxAlternatives*2)
	if err != nil {
		return types.POICandidate{}, err
	}
	for _, c := range candidates {
		if c.ExternalID == placeID {
			return c, nil
		}
	}
	return types.POICandidate{}, fmt.Errorf("%w: %s", types.ErrPlaceNotFound, placeID)
}

func placedBlock(day types.ItineraryDay, blockIndex int) (types.ItineraryBlock, error) {
	if blockIndex < 0 || blockIndex >= len(day.Blocks) {
		return types.ItineraryBlock{}, fmt.Errorf("%w: block index %d out of range", types.ErrValidation, blockIndex)
	}
	block := day.Blocks[blockIndex]
	if block.Place == nil {
		return types.ItineraryBlock{}, fmt.Errorf("%w: block %d has no place", types.ErrPlaceNotFound, blockIndex)
	}
	return block, nil
}

func copyDay(day types.ItineraryDay) (types.ItineraryDay, error) {
	raw, err := json.Marshal(day)
	if err != nil {
		return types.ItineraryDay{}, fmt.Errorf("failed to copy day: %w", err)
	}
	var out types.ItineraryDay
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.ItineraryDay{}, fmt.Errorf("failed to copy day: %w", err)
	}
	return out, nil
}
