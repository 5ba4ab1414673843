package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository reads committed itinerary state. Every read goes straight to
// the store; a client that just mutated a day must see its own write on the
// next fetch, so no read-through cache sits in front of these queries.
type Repository interface {
	GetItinerary(ctx context.Context, tripID uuid.UUID) (*types.Itinerary, error)
	GetStudioView(ctx context.Context, tripID uuid.UUID, dayIndex int) (*types.StudioView, error)
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

func (r *RepositoryImpl) GetItinerary(ctx context.Context, tripID uuid.UUID) (*types.Itinerary, error) {
	var summary string
	var createdAt time.Time
	err := r.pgpool.QueryRow(ctx,
		`SELECT summary, created_at FROM itineraries WHERE trip_id = $1`, tripID,
	).Scan(&summary, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: itinerary for trip %s", types.ErrNotFound, tripID)
		}
		return nil, fmt.Errorf("failed to query itinerary: %w", err)
	}

	rows, err := r.pgpool.Query(ctx,
		`SELECT day FROM itinerary_days WHERE trip_id = $1 ORDER BY day_index`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query itinerary days: %w", err)
	}
	defer rows.Close()

	var days []types.ItineraryDay
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan day row: %w", err)
		}
		var day types.ItineraryDay
		if err := json.Unmarshal(raw, &day); err != nil {
			return nil, fmt.Errorf("failed to unmarshal day document: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day rows: %w", err)
	}

	return &types.Itinerary{
		TripID:    tripID,
		CreatedAt: createdAt,
		Summary:   summary,
		Days:      days,
	}, nil
}

func (r *RepositoryImpl) GetStudioView(ctx context.Context, tripID uuid.UUID, dayIndex int) (*types.StudioView, error) {
	query := `
        SELECT day, revision, route_version
        FROM itinerary_days
        WHERE trip_id = $1 AND day_index = $2
    `
	var raw []byte
	var view types.StudioView
	err := r.pgpool.QueryRow(ctx, query, tripID, dayIndex).Scan(&raw, &view.Revision, &view.RouteVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: trip %s day %d", types.ErrNotFound, tripID, dayIndex)
		}
		return nil, fmt.Errorf("failed to query studio view: %w", err)
	}
	if err := json.Unmarshal(raw, &view.Day); err != nil {
		return nil, fmt.Errorf("failed to unmarshal day document: %w", err)
	}
	return &view, nil
}
