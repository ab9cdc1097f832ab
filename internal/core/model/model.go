// Package model defines core domain types shared across the service.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Observation is a normalized current-conditions snapshot from the weather provider.
type Observation struct {
	TemperatureC  float64 `json:"temperature_c"`
	WindKph       float64 `json:"wind_kph"`
	WindDir       string  `json:"wind_dir"`
	PrecipMm      float64 `json:"precip_mm"`
	Humidity      int     `json:"humidity"`
	Condition     string  `json:"condition"`
	ConditionCode int     `json:"condition_code"`
	FeelsLikeC    float64 `json:"feels_like_c"`
	UVIndex       float64 `json:"uv_index"`
	VisibilityKm  float64 `json:"visibility_km"`
}

// Assessment is the cached, user-facing ride-safety result.
type Assessment struct {
	ForecastMeta  Observation `json:"forecast_meta"`
	Hints         []string    `json:"hints"`
	ProviderScore *float64    `json:"provider_score"`
}

type Vehicle int

const (
	VehicleBike Vehicle = iota + 1
	VehicleMotor
)

var ErrInvalidVehicle = errors.New("invalid vehicle type")

// ParseVehicle accepts bike, motor and motorcycle in any case.
func ParseVehicle(s string) (Vehicle, error) {
	switch strings.ToLower(s) {
	case "bike":
		return VehicleBike, nil
	case "motor", "motorcycle":
		return VehicleMotor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidVehicle, s)
	}
}

// String returns the canonical lowercase name used in cache keys.
func (v Vehicle) String() string {
	switch v {
	case VehicleBike:
		return "bike"
	case VehicleMotor:
		return "motor"
	default:
		return "unknown"
	}
}
