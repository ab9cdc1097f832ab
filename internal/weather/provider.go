// Package weather fetches current conditions from the upstream weather provider.
package weather

import (
	"context"

	"github.com/nnar1o/meteoride/internal/core/model"
)

// Provider returns the current observation for a coordinate. Callers treat
// every error as "observation unavailable"; implementations do not retry.
type Provider interface {
	Fetch(ctx context.Context, lat, lon float64) (model.Observation, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, lat, lon float64) (model.Observation, error)

func (f ProviderFunc) Fetch(ctx context.Context, lat, lon float64) (model.Observation, error) {
	return f(ctx, lat, lon)
}
