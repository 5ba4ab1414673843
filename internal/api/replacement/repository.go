package replacement

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
	// GetDay reads the day document and both concurrency tokens.
	GetDay(ctx context.Context, tripID uuid.UUID, dayIndex int) (types.ItineraryDay, int, int, error)
	// GetTripArea returns the trip's destination used for candidate search.
	GetTripArea(ctx context.Context, tripID uuid.UUID) (string, error)
	// ListDays returns every day of the trip in day order, used to keep the
	// trip-wide POI uniqueness invariant during swaps.
	ListDays(ctx context.Context, tripID uuid.UUID) ([]types.ItineraryDay, error)
	// ReplaceDayRoute writes the day document and bumps route_version if and
	// only if the stored route_version still equals baseVersion. The studio
	// revision is untouched.
	ReplaceDayRoute(ctx context.Context, tripID uuid.UUID, dayIndex int, day types.ItineraryDay, baseVersion int) (int, error)
	// GetReceipt returns the stored outcome of a previously applied
	// replacement, keyed by idempotency key.
	GetReceipt(ctx context.Context, key string) (*Receipt, error)
	SaveReceipt(ctx context.Context, key string, tripID uuid.UUID, dayIndex int, receipt Receipt) error
}

// Receipt is what an idempotent retry gets back instead of a second apply.
// The place ids the key was bound to are stored alongside the result so a
// key reuse with different parameters is rejected, not replayed.
type Receipt struct {
	OldPlaceID   string               `json:"old_place_id"`
	NewPlaceID   string               `json:"new_place_id"`
	Block        types.ItineraryBlock `json:"block"`
	RouteVersion int                  `json:"route_version"`
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

func (r *RepositoryImpl) GetTripArea(ctx context.Context, tripID uuid.UUID) (string, error) {
	var area string
	err := r.pgpool.QueryRow(ctx, `SELECT city FROM trips WHERE id = $1`, tripID).Scan(&area)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: trip %s", types.ErrNotFound, tripID)
		}
		return "", fmt.Errorf("failed to query trip city: %w", err)
	}
	return area, nil
}

func (r *RepositoryImpl) ListDays(ctx context.Context, tripID uuid.UUID) ([]types.ItineraryDay, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT day FROM itinerary_days WHERE trip_id = $1 ORDER BY day_index`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip days: %w", err)
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
	return days, nil
}

// ReplaceDayRoute mirrors the studio's revision CAS but races on the route
// counter instead, so editing text and swapping places never block each
// other while both paths stay lost-update safe.
func (r *RepositoryImpl) ReplaceDayRoute(ctx context.Context, tripID uuid.UUID, dayIndex int, day types.ItineraryDay, baseVersion int) (int, error) {
	doc, err := json.Marshal(day)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal day document: %w", err)
	}

	query := `
        UPDATE itinerary_days
        SET day = $1, route_version = route_version + 1, updated_at = NOW()
        WHERE trip_id = $2 AND day_index = $3 AND route_version = $4
        RETURNING route_version
    `
	var newVersion int
	err = r.pgpool.QueryRow(ctx, query, doc, tripID, dayIndex, baseVersion).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to replace day route: %w", err)
	}

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
	return 0, fmt.Errorf("%w: base route version %d is stale", types.ErrVersionConflict, baseVersion)
}

func (r *RepositoryImpl) GetReceipt(ctx context.Context, key string) (*Receipt, error) {
	var raw []byte
	err := r.pgpool.QueryRow(ctx,
		`SELECT result FROM replacement_receipts WHERE idempotency_key = $1`, key,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query replacement receipt: %w", err)
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal replacement receipt: %w", err)
	}
	return &receipt, nil
}

func (r *RepositoryImpl) SaveReceipt(ctx context.Context, key string, tripID uuid.UUID, dayIndex int, receipt Receipt) error {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal replacement receipt: %w", err)
	}
	_, err = r.pgpool.Exec(ctx,
		`INSERT INTO replacement_receipts (idempotency_key, trip_id, day_index, result)
         VALUES ($1, $2, $3, $4)
         ON CONFLICT (idempotency_key) DO NOTHING`,
		key, tripID, dayIndex, raw)
	if err != nil {
		return fmt.Errorf("failed to save replacement receipt: %w", err)
	}
	return nil
}
