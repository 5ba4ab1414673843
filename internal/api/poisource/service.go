package poisource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-studio/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service unifies the persistent POI cache with the live search provider
// and returns a deduplicated candidate set for an area.
type Service interface {
	FetchCandidates(ctx context.Context, area string, categories []string, minCount int) ([]types.POICandidate, error)
}

type ServiceImpl struct {
	logger        *slog.Logger
	repo          Repository
	provider      SearchProvider
	hot           *cache.Cache
	minCandidates int
	freshness     time.Duration
}

func NewServiceImpl(repo Repository, provider SearchProvider, minCandidates int, freshness time.Duration, logger *slog.Logger) *ServiceImpl {
	if minCandidates <= 0 {
		minCandidates = 12
	}
	if freshness <= 0 {
		freshness = 24 * time.Hour
	}
	return &ServiceImpl{
		logger:        logger,
		repo:          repo,
		provider:      provider,
		hot:           cache.New(30*time.Minute, 10*time.Minute),
		minCandidates: minCandidates,
		freshness:     freshness,
	}
}

// NormalizeArea canonicalizes a city/area name for cache keying so that
// casing and padding variants share one entry. Starvation bugs hide here:
// a key miss must lead to the live fallback, never to an empty result.
func NormalizeArea(area string) string {
	return strings.ToLower(strings.Join(strings.Fields(area), " "))
}

// FetchCandidates queries the cache first and, whenever the cache is
// insufficient or stale for a category, unconditionally attempts a live
// search for that category. Failures on either side are non-fatal; the
// call only errors when both sources come up empty.
func (s *ServiceImpl) FetchCandidates(ctx context.Context, area string, categories []string, minCount int) ([]types.POICandidate, error) {
	ctx, span := otel.Tracer("POISourceGateway").Start(ctx, "FetchCandidates")
	defer span.End()

	if minCount <= 0 {
		minCount = s.minCandidates
	}
	key := NormalizeArea(area)
	span.SetAttributes(
		attribute.String("gateway.area", key),
		attribute.Int("gateway.min_count", minCount),
		attribute.StringSlice("gateway.categories", categories),
	)

	seen := make(map[string]struct{})
	var merged []types.POICandidate

	for _, category := range categories {
		candidates := s.fetchCategory(ctx, key, area, category, minCount)
		for _, c := range candidates {
			if _, dup := seen[c.ExternalID]; dup {
				continue
			}
			seen[c.ExternalID] = struct{}{}
			merged = append(merged, c)
		}
	}

	if len(merged) == 0 {
		span.SetStatus(codes.Error, "both cache and live search empty")
		return nil, fmt.Errorf("%w: area %q, categories %v", types.ErrInsufficientCandidates, area, categories)
	}

	span.SetAttributes(attribute.Int("gateway.result_count", len(merged)))
	span.SetStatus(codes.Ok, "candidates fetched")
	return merged, nil
}

func (s *ServiceImpl) fetchCategory(ctx context.Context, key, area, category string, minCount int) []types.POICandidate {
	m := metrics.Get()
	hotKey := "poi:" + key + ":" + category

	var cached []types.POICandidate
	var fetchedAt time.Time

	if v, ok := s.hot.Get(hotKey); ok {
		cached = v.([]types.POICandidate)
		fetchedAt = time.Now() // hot entries are bounded by the cache TTL
	} else {
		var err error
		cached, fetchedAt, err = s.repo.CachedCandidates(ctx, key, category)
		if err != nil {
			// Cache-read failure is non-fatal: fall through to the live call.
			s.logger.WarnContext(ctx, "POI cache read failed, falling through to live search",
				slog.String("area", key), slog.String("category", category), slog.Any("error", err))
			cached = nil
		}
	}

	stale := !fetchedAt.IsZero() && time.Since(fetchedAt) > s.freshness
	if len(cached) >= minCount && !stale {
		m.GatewayCacheHitsTotal.Add(ctx, 1)
		return cached
	}
	m.GatewayCacheMissesTotal.Add(ctx, 1)

	// Cache insufficient: the live attempt is unconditional.
	m.GatewayLiveSearchTotal.Add(ctx, 1)
	live, err := s.provider.Search(ctx, area, category, minCount*2)
	if err != nil {
		// Live-call failure is non-fatal: return whatever the cache had.
		s.logger.WarnContext(ctx, "Live POI search failed, degrading to cache-only",
			slog.String("area", key), slog.String("category", category), slog.Any("error", err))
		return cached
	}

	merged := mergeCandidates(cached, live)

	if len(live) > 0 {
		if err := s.repo.UpsertCandidates(ctx, key, category, merged); err != nil {
			s.logger.WarnContext(ctx, "Failed to backfill POI cache",
				slog.String("area", key), slog.String("category", category), slog.Any("error", err))
		}
	}
	s.hot.Set(hotKey, merged, cache.DefaultExpiration)
	return merged
}

// mergeCandidates deduplicates by external identifier; cache entries win on
// conflict since they carry curated metadata.
func mergeCandidates(cached, live []types.POICandidate) []types.POICandidate {
	seen := make(map[string]struct{}, len(cached))
	merged := make([]types.POICandidate, 0, len(cached)+len(live))
	for _, c := range cached {
		seen[c.ExternalID] = struct{}{}
		merged = append(merged, c)
	}
	for _, l := range live {
		if _, dup := seen[l.ExternalID]; dup {
			continue
		}
		seen[l.ExternalID] = struct{}{}
		merged = append(merged, l)
	}
	return merged
}
