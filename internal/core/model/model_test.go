package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseVehicle_AcceptedSpellings(t *testing.T) {
	cases := map[string]Vehicle{
		"Bike":       VehicleBike,
		"BIKE":       VehicleBike,
		"bike":       VehicleBike,
		"motor":      VehicleMotor,
		"Motor":      VehicleMotor,
		"motorcycle": VehicleMotor,
		"MotorCycle": VehicleMotor,
	}
	for in, want := range cases {
		got, err := ParseVehicle(in)
		if err != nil {
			t.Fatalf("ParseVehicle(%q) err=%v", in, err)
		}
		if got != want {
			t.Fatalf("ParseVehicle(%q)=%v want %v", in, got, want)
		}
	}
}

func TestParseVehicle_RejectsUnknownWithoutDefault(t *testing.T) {
	for _, in := range []string{"car", "", "bicycle", "motorbike", "invalid", " bike", "motor "} {
		v, err := ParseVehicle(in)
		if err == nil {
			t.Fatalf("ParseVehicle(%q) expected error, got %v", in, v)
		}
		if !errors.Is(err, ErrInvalidVehicle) {
			t.Fatalf("ParseVehicle(%q) err=%v want ErrInvalidVehicle", in, err)
		}
		if v != 0 {
			t.Fatalf("ParseVehicle(%q) returned non-zero vehicle %v", in, v)
		}
	}
}

func TestVehicle_CanonicalNames(t *testing.T) {
	if VehicleBike.String() != "bike" || VehicleMotor.String() != "motor" {
		t.Fatalf("unexpected names: %s %s", VehicleBike, VehicleMotor)
	}
}

func TestAssessment_JSONShape(t *testing.T) {
	a := Assessment{
		ForecastMeta: Observation{TemperatureC: 12.5, WindDir: "NW", Condition: "Cloudy"},
		Hints:        []string{"Cold temperature"},
	}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"forecast_meta":{`, `"hints":["Cold temperature"]`, `"provider_score":null`, `"feels_like_c":0`, `"visibility_km":0`} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %s in %s", want, s)
		}
	}
}
