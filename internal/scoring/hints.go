package scoring

import "github.com/nnar1o/meteoride/internal/core/model"

const (
	HintStrongWind    = "Strong wind conditions"
	HintHeavyPrecip   = "Heavy precipitation"
	HintLightRain     = "Light rain"
	HintFreezing      = "Freezing temperature - risk of ice"
	HintCold          = "Cold temperature"
	HintLowVisibility = "Low visibility"
	HintHighUV        = "High UV index"
	HintBikeWind      = "Wind too strong for cycling"
	HintMotorSlippery = "Cold and wet - slippery conditions"
	HintGood          = "Good conditions for riding"
)

// GenerateHints evaluates the advisory rules in a fixed order: wind,
// precipitation, temperature, visibility, UV, then vehicle rules.
func GenerateHints(obs model.Observation, vehicle model.Vehicle) []string {
	var hints []string

	if obs.WindKph > 40 {
		hints = append(hints, HintStrongWind)
	}

	switch {
	case obs.PrecipMm > 5:
		hints = append(hints, HintHeavyPrecip)
	case obs.PrecipMm > 0:
		hints = append(hints, HintLightRain)
	}

	switch {
	case obs.TemperatureC < 0:
		hints = append(hints, HintFreezing)
	case obs.TemperatureC < 5:
		hints = append(hints, HintCold)
	}

	if obs.VisibilityKm < 2 {
		hints = append(hints, HintLowVisibility)
	}

	if obs.UVIndex > 7 {
		hints = append(hints, HintHighUV)
	}

	switch vehicle {
	case model.VehicleBike:
		if obs.WindKph > 30 {
			hints = append(hints, HintBikeWind)
		}
	case model.VehicleMotor:
		if obs.PrecipMm > 0 && obs.TemperatureC < 5 {
			hints = append(hints, HintMotorSlippery)
		}
	}

	if len(hints) == 0 {
		hints = append(hints, HintGood)
	}
	return hints
}
