// Package scoring turns a weather observation into ride-safety hints and a bounded score.
// Every function here is pure and safe for concurrent use.
package scoring

import "github.com/nnar1o/meteoride/internal/core/model"

const (
	baseScore = 100.0
	minScore  = 0.0
	maxScore  = 100.0
)

// step is one rung of a penalty ladder. Ladders are ordered from the most
// severe breakpoint down and only the first matching rung applies.
type step struct {
	limit   float64
	penalty float64
}

var (
	windLadder = []step{{50, 30}, {40, 20}, {30, 10}}
	rainLadder = []step{{10, 30}, {5, 20}, {0, 10}}
	coldLadder = []step{{0, 40}, {5, 20}}
	fogLadder  = []step{{1, 30}, {2, 15}}
)

const (
	bikeWindLimit   = 25.0
	bikeWindPenalty = 15.0
	motorWetPenalty = 5.0
)

// above returns the penalty of the first rung whose limit v exceeds.
func above(ladder []step, v float64) float64 {
	for _, s := range ladder {
		if v > s.limit {
			return s.penalty
		}
	}
	return 0
}

// below returns the penalty of the first rung whose limit v is under.
func below(ladder []step, v float64) float64 {
	for _, s := range ladder {
		if v < s.limit {
			return s.penalty
		}
	}
	return 0
}

// ProviderScore computes a safety score in [0,100]; higher is safer.
func ProviderScore(obs model.Observation, vehicle model.Vehicle) float64 {
	score := baseScore
	score -= above(windLadder, obs.WindKph)
	score -= above(rainLadder, obs.PrecipMm)
	score -= below(coldLadder, obs.TemperatureC)
	score -= below(fogLadder, obs.VisibilityKm)

	switch vehicle {
	case model.VehicleBike:
		if obs.WindKph > bikeWindLimit {
			score -= bikeWindPenalty
		}
	case model.VehicleMotor:
		if obs.PrecipMm > 0 {
			score -= motorWetPenalty
		}
	}

	return clamp(score)
}

// NaN collapses to the lower bound.
func clamp(v float64) float64 {
	if !(v >= minScore) {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

// Assess builds a complete assessment for obs.
func Assess(obs model.Observation, vehicle model.Vehicle) model.Assessment {
	score := ProviderScore(obs, vehicle)
	return model.Assessment{
		ForecastMeta:  obs,
		Hints:         GenerateHints(obs, vehicle),
		ProviderScore: &score,
	}
}
