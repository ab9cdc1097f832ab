package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nnar1o/meteoride/internal/core/model"
)

const currentJSON = `{
  "location": {"name": "Stockholm"},
  "current": {
    "temp_c": 3.5, "wind_kph": 22.3, "wind_dir": "SSW", "precip_mm": 0.4,
    "humidity": 81, "condition": {"text": "Patchy light drizzle", "code": 1150},
    "feelslike_c": 0.5, "uv": 1.0, "vis_km": 8.0, "pressure_mb": 1012
  }
}`

func newAPI(t *testing.T, h http.HandlerFunc, opts Options) *WeatherAPI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	if opts.BaseURL == "" {
		opts.BaseURL = srv.URL + "/v1"
	}
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	w, err := NewWeatherAPI(srv.Client(), opts)
	if err != nil {
		t.Fatalf("NewWeatherAPI: %v", err)
	}
	return w
}

func TestFetch_MapsCurrentConditions(t *testing.T) {
	var gotPath, gotKey, gotQ string
	w := newAPI(t, func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotQ = r.URL.Query().Get("q")
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(currentJSON))
	}, Options{})

	obs, err := w.Fetch(context.Background(), 59.3293, 18.0686)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/v1/current.json" || gotKey != "test-key" || gotQ != "59.3293,18.0686" {
		t.Fatalf("request path=%q key=%q q=%q", gotPath, gotKey, gotQ)
	}
	want := model.Observation{
		TemperatureC: 3.5, WindKph: 22.3, WindDir: "SSW", PrecipMm: 0.4,
		Humidity: 81, Condition: "Patchy light drizzle", ConditionCode: 1150,
		FeelsLikeC: 0.5, UVIndex: 1, VisibilityKm: 8,
	}
	if obs != want {
		t.Fatalf("obs=%+v\nwant=%+v", obs, want)
	}
}

func TestFetch_NonSuccessStatusIsError(t *testing.T) {
	w := newAPI(t, func(rw http.ResponseWriter, _ *http.Request) {
		http.Error(rw, `{"error":{"code":1006,"message":"No matching location found."}}`, http.StatusBadRequest)
	}, Options{})

	_, err := w.Fetch(context.Background(), 1, 2)
	if !errors.Is(err, ErrUpstreamState) {
		t.Fatalf("err=%v want ErrUpstreamState", err)
	}
	if !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("err=%v should carry status", err)
	}
}

func TestFetch_BadJSONIsError(t *testing.T) {
	w := newAPI(t, func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write([]byte(`{"current": [`))
	}, Options{})
	if _, err := w.Fetch(context.Background(), 1, 2); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFetch_MissingKeyFailsWithoutCallingUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	t.Cleanup(srv.Close)
	w, err := NewWeatherAPI(srv.Client(), Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWeatherAPI: %v", err)
	}
	if _, err := w.Fetch(context.Background(), 1, 2); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err=%v want ErrNoAPIKey", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("upstream called %d times", calls.Load())
	}
}

func TestFetch_NoRetryAndBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	w := newAPI(t, func(rw http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		rw.WriteHeader(http.StatusBadGateway)
	}, Options{BreakerFailures: 2, BreakerTimeout: time.Hour})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := w.Fetch(ctx, 1, 2); !errors.Is(err, ErrUpstreamState) {
			t.Fatalf("call %d err=%v", i, err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("upstream calls=%d want 2 (no retries)", calls.Load())
	}

	_, err := w.Fetch(ctx, 1, 2)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err=%v want ErrCircuitOpen", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("open breaker still reached upstream")
	}
}

func TestFetch_CallerTimeoutsDoNotOpenBreaker(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	w := newAPI(t, func(rw http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(time.Second):
			}
		}
		_, _ = rw.Write([]byte(currentJSON))
	}, Options{BreakerFailures: 2, BreakerTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := w.Fetch(ctx, 1, 2)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("call %d err=%v want deadline exceeded", i, err)
		}
	}

	slow.Store(false)
	if _, err := w.Fetch(context.Background(), 1, 2); err != nil {
		t.Fatalf("healthy upstream refused after caller timeouts: %v", err)
	}
}

func TestFetch_ContextCancelPropagates(t *testing.T) {
	w := newAPI(t, func(rw http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := w.Fetch(ctx, 1, 2)
	if err == nil {
		t.Fatalf("expected error on canceled context")
	}
	if strings.Contains(err.Error(), "test-key") {
		t.Fatalf("api key leaked into error: %v", err)
	}
}

func TestNewWeatherAPI_Validation(t *testing.T) {
	if _, err := NewWeatherAPI(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewWeatherAPI(http.DefaultClient, Options{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected error for bad base url")
	}
	w, err := NewWeatherAPI(http.DefaultClient, Options{})
	if err != nil {
		t.Fatalf("default base url: %v", err)
	}
	if w.base.String() != DefaultBaseURL {
		t.Fatalf("base=%s", w.base)
	}
}

func TestProviderFunc_Adapts(t *testing.T) {
	var p Provider = ProviderFunc(func(_ context.Context, lat, lon float64) (model.Observation, error) {
		return model.Observation{TemperatureC: lat + lon}, nil
	})
	obs, err := p.Fetch(context.Background(), 1, 2)
	if err != nil || obs.TemperatureC != 3 {
		t.Fatalf("obs=%+v err=%v", obs, err)
	}
}
