package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL sits just under the 5-minute poll interval so each poll
// cycle sees at most one cache hit per city.
const DefaultCacheTTL = 299 * time.Second

// Service is the fetch pipeline: it decides between cache and upstream,
// normalizes current weather and persists observations.
type Service struct {
	store    ObservationStore
	upstream Upstream
	cache    Cache
	cities   []string
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics
	now      func() time.Time
}

// ServiceConfig carries the pipeline settings.
type ServiceConfig struct {
	Cities   []string
	CacheTTL time.Duration
}

// NewService creates a new Service.
func NewService(store ObservationStore, upstream Upstream, cache Cache, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		store:    store,
		upstream: upstream,
		cache:    cache,
		cities:   append([]string(nil), cfg.Cities...),
		ttl:      ttl,
		logger:   logger,
		metrics:  newMetrics(),
		now:      time.Now,
	}
}

// Cities returns the configured city list.
func (s *Service) Cities() []string {
	return append([]string(nil), s.cities...)
}

// FetchReport summarizes one fetch cycle.
type FetchReport struct {
	Fetched int
	Cached  int
	Failed  int
}

// FetchCity returns the current weather document for city. On a cache hit
// the cached payload is returned and nothing is persisted. On a miss the
// upstream document is normalized, persisted as one Observation and cached.
func (s *Service) FetchCity(ctx context.Context, city string) ([]byte, bool, error) {
	key := CacheKey(KindCurrent, city)
	if data, ok := s.lookup(ctx, KindCurrent, key); ok {
		return data, true, nil
	}

	raw, err := s.upstream.Fetch(ctx, KindCurrent, city)
	if err != nil {
		s.metrics.upstreamFailures.Add(ctx, 1, cityAttr(city))
		return nil, false, err
	}

	obs, err := NormalizeCurrent(raw, city, s.now())
	if err != nil {
		return nil, false, &UpstreamError{Kind: KindCurrent, City: city, Err: err}
	}

	if err := s.store.InsertObservation(ctx, obs); err != nil {
		// Not cached, so the next tick fetches again.
		return nil, false, &PersistenceError{Op: "insert observation", Err: err}
	}
	s.metrics.observations.Add(ctx, 1, cityAttr(city))

	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
	return raw, false, nil
}

// RunFetchCycle fetches every configured city concurrently. A failing city
// is logged and never affects the others.
func (s *Service) RunFetchCycle(ctx context.Context) FetchReport {
	var fetched, cached, failed atomic.Int64

	var g errgroup.Group
	for _, city := range s.cities {
		g.Go(func() error {
			_, hit, err := s.FetchCity(ctx, city)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.Error("fetch failed", "city", city, "error", err)
			case hit:
				cached.Add(1)
			default:
				fetched.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return FetchReport{
		Fetched: int(fetched.Load()),
		Cached:  int(cached.Load()),
		Failed:  int(failed.Load()),
	}
}

// LatestWeather returns the newest observation of each configured city, in
// city-list order, with temperatures in unit. Cities without data are omitted.
func (s *Service) LatestWeather(ctx context.Context, unit Unit) ([]Observation, error) {
	rows, err := s.store.LatestPerCity(ctx, s.cities)
	if err != nil {
		return nil, fmt.Errorf("latest per city: %w", err)
	}

	byCity := make(map[string]Observation, len(rows))
	for _, r := range rows {
		byCity[r.City] = r
	}

	result := make([]Observation, 0, len(rows))
	for _, city := range s.cities {
		if obs, ok := byCity[city]; ok {
			result = append(result, obs.InUnit(unit))
		}
	}
	return result, nil
}

// Passthrough returns a forecast or history document for city, cached with
// the standard TTL and not otherwise processed.
func (s *Service) Passthrough(ctx context.Context, kind Kind, city string) ([]byte, error) {
	if kind != KindForecast && kind != KindHistory {
		return nil, fmt.Errorf("passthrough does not serve %q documents", kind)
	}

	key := CacheKey(kind, city)
	if data, ok := s.lookup(ctx, kind, key); ok {
		return data, nil
	}

	raw, err := s.upstream.Fetch(ctx, kind, city)
	if err != nil {
		s.metrics.upstreamFailures.Add(ctx, 1, cityAttr(city))
		return nil, err
	}

	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
	return raw, nil
}

// lookup treats cache backend errors as misses.
func (s *Service) lookup(ctx context.Context, kind Kind, key string) ([]byte, bool) {
	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed", "key", key, "error", err)
		found = false
	}
	s.metrics.cacheLookup(ctx, kind, found)
	return data, found
}
