// Package assessments caches ride-safety assessments under spatial keys.
package assessments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nnar1o/meteoride/internal/cache"
	"github.com/nnar1o/meteoride/internal/cache/keys"
	"github.com/nnar1o/meteoride/internal/core/model"
	"github.com/nnar1o/meteoride/internal/core/observability"
)

// Store is a cache-aside view over a TTL key-value store.
type Store struct {
	kv     cache.Interface
	keys   keys.Deriver
	ttl    time.Duration
	logger *slog.Logger
}

func New(kv cache.Interface, d keys.Deriver, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if kv == nil {
		return nil, errors.New("assessments: store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("assessments: ttl must be positive, got %s", ttl)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, keys: d, ttl: ttl, logger: logger}, nil
}

// Key is the derivation shared by Get and Set.
func (s *Store) Key(lat, lon float64, vehicle model.Vehicle) string {
	return s.keys.Key(lat, lon, vehicle)
}

// Bucket is the spatial bucket component of Key.
func (s *Store) Bucket(lat, lon float64) string {
	return s.keys.Bucket(lat, lon)
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Get returns nil without error on a miss, including when the stored payload
// cannot be decoded. Store failures are returned for the caller to absorb.
func (s *Store) Get(ctx context.Context, lat, lon float64, vehicle model.Vehicle) (*model.Assessment, error) {
	key := s.Key(lat, lon, vehicle)

	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("assessment cache get %q: %w", key, err)
	}
	if !found {
		return nil, nil
	}

	var a model.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		observability.IncCacheDecodeError()
		s.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key, "err", err)
		return nil, nil
	}
	return &a, nil
}

// Set serializes a and overwrites any entry under the same key.
func (s *Store) Set(ctx context.Context, lat, lon float64, vehicle model.Vehicle, a model.Assessment) error {
	key := s.Key(lat, lon, vehicle)

	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("assessment cache encode %q: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, b, s.ttl); err != nil {
		return fmt.Errorf("assessment cache set %q: %w", key, err)
	}
	return nil
}
