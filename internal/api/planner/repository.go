package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	SaveTrip(ctx context.Context, spec types.TripSpec) (uuid.UUID, error)
	GetTripSpec(ctx context.Context, tripID uuid.UUID) (types.TripSpec, error)
	SaveItinerary(ctx context.Context, it types.Itinerary) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewRepository(pgpool *pgxpool.Pool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) SaveTrip(ctx context.Context, spec types.TripSpec) (uuid.UUID, error) {
	routine, err := json.Marshal(spec.Routine)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal routine: %w", err)
	}

	query := `
        INSERT INTO trips (city, start_date, end_date, travelers, pace, budget_tier, interests, routine)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	var id uuid.UUID
	if err := r.pgpool.QueryRow(ctx, query,
		spec.City, spec.StartDate, spec.EndDate, spec.Travelers,
		string(spec.Pace), string(spec.BudgetTier), spec.Interests, routine,
	).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert trip: %w", err)
	}
	return id, nil
}

func (r *RepositoryImpl) GetTripSpec(ctx context.Context, tripID uuid.UUID) (types.TripSpec, error) {
	query := `
        SELECT city, start_date, end_date, travelers, pace, budget_tier, interests, routine
        FROM trips
        WHERE id = $1
    `
	var spec types.TripSpec
	var pace, budget string
	var routineRaw []byte
	err := r.pgpool.QueryRow(ctx, query, tripID).Scan(
		&spec.City, &spec.StartDate, &spec.EndDate, &spec.Travelers,
		&pace, &budget, &spec.Interests, &routineRaw,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.TripSpec{}, fmt.Errorf("%w: trip %s", types.ErrNotFound, tripID)
		}
		return types.TripSpec{}, fmt.Errorf("failed to query trip: %w", err)
	}
	spec.Pace = types.Pace(pace)
	spec.BudgetTier = types.BudgetTier(budget)
	if err := json.Unmarshal(routineRaw, &spec.Routine); err != nil {
		return types.TripSpec{}, fmt.Errorf("failed to unmarshal routine: %w", err)
	}
	return spec, nil
}

// SaveItinerary persists the whole itinerary atomically: the summary row
// plus every day as a fresh document with revision and route version reset
// to 1. A failed transaction leaves no partial plan behind.
func (r *RepositoryImpl) SaveItinerary(ctx context.Context, it types.Itinerary) error {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        INSERT INTO itineraries (trip_id, summary, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (trip_id) DO UPDATE SET summary = EXCLUDED.summary, created_at = EXCLUDED.created_at
    `, it.TripID, it.Summary, it.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert itinerary: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM itinerary_days WHERE trip_id = $1`, it.TripID); err != nil {
		return fmt.Errorf("failed to clear previous days: %w", err)
	}

	insertDay := `
        INSERT INTO itinerary_days (trip_id, day_index, day, revision, route_version)
        VALUES ($1, $2, $3, 1, 1)
    `
	for _, day := range it.Days {
		// Marshal through JSON so dates, times and enums land as primitives.
		doc, err := json.Marshal(day)
		if err != nil {
			return fmt.Errorf("failed to marshal day %d: %w", day.DayIndex, err)
		}
		if _, err := tx.Exec(ctx, insertDay, it.TripID, day.DayIndex, doc); err != nil {
			return fmt.Errorf("failed to insert day %d: %w", day.DayIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit itinerary: %w", err)
	}
	return nil
}
