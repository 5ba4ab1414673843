package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-studio/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-studio/internal/api/travel"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// Day presets a SetPreset change may apply.
var presets = map[string]string{
	"classic":  "Classic highlights",
	"foodie":   "Food and markets",
	"culture":  "Museums and galleries",
	"nightowl": "Late starts, long nights",
}

var _ Service = (*ServiceImpl)(nil)

// Service applies an ordered change set to one day under optimistic
// concurrency control. The batch is all-or-nothing: one invalid change
// rejects everything and the revision stays put.
type Service interface {
	ApplyChanges(ctx context.Context, tripID uuid.UUID, dayIndex int, baseRevision int, changes []types.Change) (types.ItineraryDay, int, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	travel travel.Provider
}

func NewServiceImpl(repo Repository, tp travel.Provider, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		travel: tp,
	}
}

func (s *ServiceImpl) ApplyChanges(ctx context.Context, tripID uuid.UUID, dayIndex int, baseRevision int, changes []types.Change) (types.ItineraryDay, int, error) {
	ctx, span := otel.Tracer("DayStudio").Start(ctx, "ApplyChanges")
	defer span.End()
	span.SetAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.Int("day.index", dayIndex),
		attribute.Int("base.revision", baseRevision),
		attribute.Int("changes.count", len(changes)),
	)

	if len(changes) == 0 {
		return types.ItineraryDay{}, 0, fmt.Errorf("%w: empty change set", types.ErrValidation)
	}

	day, revision, _, err := s.repo.GetDay(ctx, tripID, dayIndex)
	if err != nil {
		span.RecordError(err)
		return types.ItineraryDay{}, 0, err
	}
	if revision != baseRevision {
		metrics.Get().RevisionConflictsTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, "revision conflict")
		return types.ItineraryDay{}, 0, fmt.Errorf("%w: base %d, current %d", types.ErrRevisionConflict, baseRevision, revision)
	}

	// Work on a deep copy; the loaded value is never mutated in place.
	work, err := copyDay(day)
	if err != nil {
		return types.ItineraryDay{}, 0, err
	}

	for i, change := range changes {
		if err := change.Validate(); err != nil {
			return types.ItineraryDay{}, 0, fmt.Errorf("change %d: %w", i, err)
		}
		if err := applyChange(&work, change); err != nil {
			// Any single failure rejects the whole batch.
			return types.ItineraryDay{}, 0, fmt.Errorf("change %d (%s): %w", i, change.Op, err)
		}
	}

	if err := travel.RecomputeDay(ctx, s.travel, &work); err != nil {
		span.RecordError(err)
		return types.ItineraryDay{}, 0, fmt.Errorf("failed to recompute travel legs: %w", err)
	}

	newRevision, err := s.repo.ReplaceDay(ctx, tripID, dayIndex, work, baseRevision)
	if err != nil {
		span.RecordError(err)
		return types.ItineraryDay{}, 0, err
	}

	s.logger.InfoContext(ctx, "Day change set applied",
		slog.String("tripID", tripID.String()),
		slog.Int("dayIndex", dayIndex),
		slog.Int("newRevision", newRevision),
		slog.Int("changes", len(changes)))
	span.SetStatus(codes.Ok, "changes applied")
	return work, newRevision, nil
}

// copyDay deep-copies through JSON, which doubles as the guarantee that the
// day document survives a round trip with only primitive values.
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

func applyChange(day *types.ItineraryDay, change types.Change) error {
	switch change.Op {
	case types.OpUpdateSettings:
		return applyUpdateSettings(day, change.UpdateSettings)
	case types.OpSetPreset:
		return applySetPreset(day, change.SetPreset)
	case types.OpAddPlace:
		return applyAddPlace(day, change.AddPlace)
	case types.OpReplacePlace:
		return applyReplacePlace(day, change.ReplacePlace)
	case types.OpRemovePlace:
		return applyRemovePlace(day, change.RemovePlace)
	case types.OpAddWishMessage:
		day.WishMessages = append(day.WishMessages, change.AddWishMessage.Message)
		return nil
	default:
		return fmt.Errorf("%w: unknown change op %q", types.ErrValidation, change.Op)
	}
}

func applyUpdateSettings(day *types.ItineraryDay, c *types.UpdateSettingsChange) error {
	settings := day.Settings
	if c.Pace != nil {
		settings.Pace = *c.Pace
	}
	if c.StartMinute != nil {
		settings.StartMinute = *c.StartMinute
	}
	if c.EndMinute != nil {
		settings.EndMinute = *c.EndMinute
	}
	if c.BudgetTier != nil {
		settings.BudgetTier = *c.BudgetTier
	}
	if settings.StartMinute < 0 || settings.EndMinute > 24*60 || settings.StartMinute >= settings.EndMinute {
		return fmt.Errorf("%w: day time window is invalid", types.ErrValidation)
	}
	day.Settings = settings
	return nil
}

func applySetPreset(day *types.ItineraryDay, c *types.SetPresetChange) error {
	theme, ok := presets[c.Preset]
	if !ok {
		return fmt.Errorf("%w: unknown preset %q", types.ErrValidation, c.Preset)
	}
	day.Theme = theme
	return nil
}

func applyAddPlace(day *types.ItineraryDay, c *types.AddPlaceChange) error {
	if c.Place.ExternalID == "" {
		return fmt.Errorf("%w: place is missing an external id", types.ErrValidation)
	}
	for _, b := range day.Blocks {
		if b.Place != nil && b.Place.ExternalID == c.Place.ExternalID {
			return fmt.Errorf("%w: place %s is already scheduled this day", types.ErrValidation, c.Place.ExternalID)
		}
	}
	place := c.Place

	switch c.Placement {
	case types.PlacementInSlot:
		if c.SlotIndex < 0 || c.SlotIndex >= len(day.Blocks) {
			return fmt.Errorf("%w: slot index %d out of range", types.ErrValidation, c.SlotIndex)
		}
		b := &day.Blocks[c.SlotIndex]
		b.Place = &place
		b.Relaxed = false
		if b.Type == types.BlockRest {
			b.Type = types.BlockActivity
		}
		return nil

	case types.PlacementAtTime:
		for i := range day.Blocks {
			b := &day.Blocks[i]
			if b.StartMinute <= c.AtMinute && c.AtMinute < b.EndMinute {
				if b.Place != nil {
					return fmt.Errorf("%w: slot at minute %d is occupied", types.ErrValidation, c.AtMinute)
				}
				b.Place = &place
				b.Relaxed = false
				if b.Type == types.BlockRest {
					b.Type = types.BlockActivity
				}
				return nil
			}
		}
		end := c.AtMinute + 90
		if end > day.Settings.EndMinute {
			end = day.Settings.EndMinute
		}
		if c.AtMinute < day.Settings.StartMinute || c.AtMinute >= end {
			return fmt.Errorf("%w: minute %d is outside the day window", types.ErrValidation, c.AtMinute)
		}
		day.Blocks = append(day.Blocks, types.ItineraryBlock{
			Type:        types.BlockActivity,
			StartMinute: c.AtMinute,
			EndMinute:   end,
			Place:       &place,
		})
		sort.SliceStable(day.Blocks, func(i, j int) bool {
			return day.Blocks[i].StartMinute < day.Blocks[j].StartMinute
		})
		return nil

	default: // auto: first free slot, else a new block at the end of the day
		for i := range day.Blocks {
			b := &day.Blocks[i]
			if b.Place == nil && b.Type != types.BlockMeal {
				b.Place = &place
				b.Relaxed = false
				if b.Type == types.BlockRest {
					b.Type = types.BlockActivity
				}
				return nil
			}
		}
		last := day.Settings.StartMinute
		if n := len(day.Blocks); n > 0 {
			last = day.Blocks[n-1].EndMinute
		}
		if day.Settings.EndMinute-last < 45 {
			return fmt.Errorf("%w: no room left in the day", types.ErrValidation)
		}
		day.Blocks = append(day.Blocks, types.ItineraryBlock{
			Type:        types.BlockActivity,
			StartMinute: last,
			EndMinute:   last + 90,
			Place:       &place,
		})
		if day.Blocks[len(day.Blocks)-1].EndMinute > day.Settings.EndMinute {
			day.Blocks[len(day.Blocks)-1].EndMinute = day.Settings.EndMinute
		}
		return nil
	}
}

func applyReplacePlace(day *types.ItineraryDay, c *types.ReplacePlaceChange) error {
	if c.To.ExternalID == "" {
		return fmt.Errorf("%w: replacement place is missing an external id", types.ErrValidation)
	}
	for _, b := range day.Blocks {
		if b.Place != nil && b.Place.ExternalID == c.To.ExternalID && b.Place.ExternalID != c.FromID {
			return fmt.Errorf("%w: place %s is already scheduled this day", types.ErrValidation, c.To.ExternalID)
		}
	}
	for i := range day.Blocks {
		b := &day.Blocks[i]
		if b.Place != nil && b.Place.ExternalID == c.FromID {
			to := c.To
			b.Place = &to
			return nil
		}
	}
	return fmt.Errorf("%w: %s", types.ErrPlaceNotFound, c.FromID)
}

func applyRemovePlace(day *types.ItineraryDay, c *types.RemovePlaceChange) error {
	for i := range day.Blocks {
		b := &day.Blocks[i]
		if b.Place != nil && b.Place.ExternalID == c.PlaceID {
			b.Place = nil
			b.Travel = nil
			b.Type = types.BlockRest
			b.Relaxed = false
			return nil
		}
	}
	return fmt.Errorf("%w: %s", types.ErrPlaceNotFound, c.PlaceID)
}

