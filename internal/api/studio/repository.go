package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// DB is the slice of pgxpool.Pool the repository needs. Narrowing it keeps
// the compare-and-swap testable against a mocked pool.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	// GetDay reads the current day document and both concurrency tokens,
	// always straight from the store - never through a read cache.
	GetDay(ctx context.Context, tripID uuid.UUID, dayIndex int) (types.ItineraryDay, int, int, error)
	// ReplaceDay writes the whole day document and bumps the revision if
	// and only if the stored revision still equals baseRevision.
	ReplaceDay(ctx context.Context, tripID uuid.UUID, dayIndex int, day types.ItineraryDay, baseRevision int) (int, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool DB
}

func NewRepository(pgpool DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) GetDay(ctx context.Context, tripID uuid.UUID, dayIndex int) (types.ItineraryDay, int, int, error) {
	query := `
        SELECT day, revision, route_version
        FROM itinerary_days
        WHERE trip_id = $1 AND day_index = $2
    `
	var raw []byte
	var revision, routeVersion int
	err := r.pgpool.QueryRow(ctx, query, tripID, dayIndex).Scan(&raw, &revision, &routeVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ItineraryDay{}, 0, 0, fmt.Errorf("%w: trip %s day %d", types.ErrNotFound, tripID, dayIndex)
		}
		return types.ItineraryDay{}, 0, 0, fmt.Errorf("failed to query day: %w", err)
	}

	var day types.ItineraryDay
	if err := json.Unmarshal(raw, &day); err != nil {
		return types.ItineraryDay{}, 0, 0, fmt.Errorf("failed to unmarshal day document: %w", err)
	}
	return day, revision, routeVersion, nil
}

// ReplaceDay is the compare-and-swap at the heart of the editor: a single
// statement whose WHERE clause carries the expected revision. Zero rows
// means somebody else won the race.
func (r *RepositoryImpl) ReplaceDay(ctx context.Context, tripID uuid.UUID, dayIndex int, day types.ItineraryDay, baseRevision int) (int, error) {
	// Serialize to a fresh JSON document so every date, time and enum is a
	// primitive value by the time it reaches the store.
	doc, err := json.Marshal(day)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal day document: %w", err)
	}

	query := `
        UPDATE itinerary_days
        SET day = $1, revision = revision + 1, updated_at = NOW()
        WHERE trip_id = $2 AND day_index = $3 AND revision = $4
        RETURNING revision
    `
	var newRevision int
	err = r.pgpool.QueryRow(ctx, query, doc, tripID, dayIndex, baseRevision).Scan(&newRevision)
	if err == nil {
		return newRevision, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to replace day: %w", err)
	}

	// Distinguish a lost race from a missing day.
	var exists bool
	if probeErr := r.pgpool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM itinerary_days WHERE trip_id = $1 AND day_index = $2)`,
		tripID, dayIndex,
	).Scan(&exists); probeErr != nil {
		return 0, fmt.Errorf("failed to probe day existence: %w", probeErr)
	}
	if !exists {
		return 0, fmt.Errorf("%w: trip %s day %d", types.ErrNotFound, tripID, dayIndex)
	}
	return 0, fmt.Errorf("%w: base revision %d is stale", types.ErrRevisionConflict, baseRevision)
}
