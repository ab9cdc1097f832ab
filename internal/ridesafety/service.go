// Package ridesafety answers ride-safety queries, consulting the assessment
// cache before the weather provider.
package ridesafety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nnar1o/meteoride/internal/cache/assessments"
	"github.com/nnar1o/meteoride/internal/core/model"
	"github.com/nnar1o/meteoride/internal/core/observability"
	"github.com/nnar1o/meteoride/internal/hitevents"
	"github.com/nnar1o/meteoride/internal/hotness"
	"github.com/nnar1o/meteoride/internal/logger"
	"github.com/nnar1o/meteoride/internal/scoring"
	"github.com/nnar1o/meteoride/internal/weather"
)

const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// ErrUpstreamUnavailable is returned when a miss cannot be filled because the
// weather provider failed.
var ErrUpstreamUnavailable = errors.New("weather provider unavailable")

type Result struct {
	Assessment  model.Assessment
	CacheStatus string
}

type Service struct {
	store    *assessments.Store
	provider weather.Provider
	hot      hotness.Interface
	events   hitevents.Sink
	logger   *slog.Logger
}

type Option func(*Service)

// WithHotness records every served bucket in h.
func WithHotness(h hotness.Interface) Option {
	return func(s *Service) { s.hot = h }
}

// WithEvents publishes one event per served assessment.
func WithEvents(sink hitevents.Sink) Option {
	return func(s *Service) { s.events = sink }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store *assessments.Store, provider weather.Provider, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ridesafety: store is required")
	}
	if provider == nil {
		return nil, errors.New("ridesafety: provider is required")
	}
	s := &Service{store: store, provider: provider, events: hitevents.Nop{}, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.events == nil {
		s.events = hitevents.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Assess returns the cached assessment for the location's bucket, or fetches
// current conditions, scores them and caches the result. Cache failures never
// fail the request.
func (s *Service) Assess(ctx context.Context, lat, lon float64, vehicle model.Vehicle) (Result, error) {
	ctx = logger.WithVehicle(ctx, vehicle.String())

	cached, err := s.store.Get(ctx, lat, lon, vehicle)
	switch {
	case err != nil:
		observability.IncCacheError()
		s.logger.WarnContext(ctx, "cache get failed, treating as miss", "err", err)
	case cached != nil:
		observability.IncCacheHit()
		s.logger.InfoContext(ctx, "cache hit", "key", s.store.Key(lat, lon, vehicle))
		res := Result{Assessment: *cached, CacheStatus: CacheHit}
		s.served(ctx, lat, lon, vehicle, res)
		return res, nil
	}

	observability.IncCacheMiss()
	s.logger.InfoContext(ctx, "cache miss", "key", s.store.Key(lat, lon, vehicle))

	obs, err := s.provider.Fetch(ctx, lat, lon)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	a := scoring.Assess(obs, vehicle)
	if a.ProviderScore != nil {
		observability.ObserveScore(vehicle.String(), *a.ProviderScore)
	}

	// The write outlives a client disconnect; the store's op timeout bounds it.
	if err := s.store.Set(context.WithoutCancel(ctx), lat, lon, vehicle, a); err != nil {
		s.logger.WarnContext(ctx, "cache set failed", "err", err)
	}

	res := Result{Assessment: a, CacheStatus: CacheMiss}
	s.served(ctx, lat, lon, vehicle, res)
	return res, nil
}

func (s *Service) served(ctx context.Context, lat, lon float64, vehicle model.Vehicle, res Result) {
	bucket := s.store.Bucket(lat, lon)
	if s.hot != nil {
		s.hot.Inc(bucket)
	}
	s.events.Publish(hitevents.Event{
		Bucket:      bucket,
		Vehicle:     vehicle.String(),
		Lat:         lat,
		Lon:         lon,
		Score:       res.Assessment.ProviderScore,
		Hints:       len(res.Assessment.Hints),
		CacheStatus: res.CacheStatus,
		RequestID:   logger.RequestID(ctx),
		TS:          time.Now().UTC(),
	})
}
