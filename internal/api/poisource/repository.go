package poisource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the persistent POI cache. Concurrent backfills of the same
// area are tolerated: the upsert merges by identifier.
type Repository interface {
	CachedCandidates(ctx context.Context, cityKey, category string) ([]types.POICandidate, time.Time, error)
	UpsertCandidates(ctx context.Context, cityKey, category string, pois []types.POICandidate) error
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

// CachedCandidates returns the cached POIs for an area/category together
// with the oldest fetch timestamp, which callers use as the freshness mark.
func (r *RepositoryImpl) CachedCandidates(ctx context.Context, cityKey, category string) ([]types.POICandidate, time.Time, error) {
	query := `
        SELECT poi, fetched_at
        FROM poi_cache
        WHERE city_key = $1 AND category = $2
        ORDER BY fetched_at DESC
    `
	rows, err := r.pgpool.Query(ctx, query, cityKey, category)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query poi cache: %w", err)
	}
	defer rows.Close()

	var pois []types.POICandidate
	var oldest time.Time
	for rows.Next() {
		var raw []byte
		var fetchedAt time.Time
		if err := rows.Scan(&raw, &fetchedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan poi cache row: %w", err)
		}
		var poi types.POICandidate
		if err := json.Unmarshal(raw, &poi); err != nil {
			r.logger.WarnContext(ctx, "Skipping malformed poi cache entry", slog.Any("error", err))
			continue
		}
		poi.Cached = true
		pois = append(pois, poi)
		if oldest.IsZero() || fetchedAt.Before(oldest) {
			oldest = fetchedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("poi cache rows error: %w", err)
	}
	return pois, oldest, nil
}

// UpsertCandidates writes search results back to the cache. Existing rows
// keep their curated payload; only the fetch timestamp is refreshed.
func (r *RepositoryImpl) UpsertCandidates(ctx context.Context, cityKey, category string, pois []types.POICandidate) error {
	if len(pois) == 0 {
		return nil
	}
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO poi_cache (city_key, category, poi_id, poi, fetched_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (city_key, category, poi_id)
        DO UPDATE SET fetched_at = NOW()
    `
	for _, poi := range pois {
		stored := poi
		stored.Cached = true
		stored.Score = 0
		raw, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal poi %s: %w", poi.ExternalID, err)
		}
		if _, err := tx.Exec(ctx, query, cityKey, category, poi.ExternalID, raw); err != nil {
			return fmt.Errorf("failed to upsert poi %s: %w", poi.ExternalID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit poi cache upsert: %w", err)
	}
	return nil
}
