package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nnar1o/meteoride/internal/core/model"
	"github.com/nnar1o/meteoride/internal/core/observability"
)

const (
	DefaultBaseURL = "https://api.weatherapi.com/v1"
	upstreamName   = "weatherapi"
)

var (
	ErrNoAPIKey      = errors.New("weatherapi api key is not configured")
	ErrCircuitOpen   = errors.New("weatherapi circuit breaker open")
	ErrUpstreamState = errors.New("weatherapi unexpected status")
)

type Options struct {
	BaseURL string
	APIKey  string
	// Breaker trips after this many consecutive failures; 0 uses 5.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// WeatherAPI is a Provider backed by WeatherAPI.com's current.json endpoint.
type WeatherAPI struct {
	base    *url.URL
	apiKey  string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
}

var _ Provider = (*WeatherAPI)(nil)

func NewWeatherAPI(client *http.Client, opts Options) (*WeatherAPI, error) {
	if client == nil {
		return nil, errors.New("weatherapi: http client is required")
	}
	raw := strings.TrimRight(opts.BaseURL, "/")
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("weatherapi: invalid base url %q", raw)
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        upstreamName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// a caller giving up says nothing about upstream health
		IsSuccessful: func(err error) bool {
			var gone *callerGone
			return err == nil || errors.As(err, &gone)
		},
	})

	return &WeatherAPI{base: u, apiKey: opts.APIKey, http: client, circuit: cb}, nil
}

type currentResponse struct {
	Current struct {
		TempC     float64 `json:"temp_c"`
		WindKph   float64 `json:"wind_kph"`
		WindDir   string  `json:"wind_dir"`
		PrecipMm  float64 `json:"precip_mm"`
		Humidity  int     `json:"humidity"`
		Condition struct {
			Text string `json:"text"`
			Code int    `json:"code"`
		} `json:"condition"`
		FeelsLikeC float64 `json:"feelslike_c"`
		UV         float64 `json:"uv"`
		VisKm      float64 `json:"vis_km"`
	} `json:"current"`
}

func (c *currentResponse) observation() model.Observation {
	cur := c.Current
	return model.Observation{
		TemperatureC:  cur.TempC,
		WindKph:       cur.WindKph,
		WindDir:       cur.WindDir,
		PrecipMm:      cur.PrecipMm,
		Humidity:      cur.Humidity,
		Condition:     cur.Condition.Text,
		ConditionCode: cur.Condition.Code,
		FeelsLikeC:    cur.FeelsLikeC,
		UVIndex:       cur.UV,
		VisibilityKm:  cur.VisKm,
	}
}

func (w *WeatherAPI) Fetch(ctx context.Context, lat, lon float64) (model.Observation, error) {
	if w.apiKey == "" {
		return model.Observation{}, ErrNoAPIKey
	}

	start := time.Now()
	res, err := w.circuit.Execute(func() (interface{}, error) {
		obs, err := w.fetch(ctx, lat, lon)
		if err != nil && ctx.Err() != nil {
			return nil, &callerGone{err: err}
		}
		return obs, err
	})
	observability.ObserveUpstream(upstreamName, err, time.Since(start).Seconds())

	var gone *callerGone
	if errors.As(err, &gone) {
		return model.Observation{}, gone.err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.Observation{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return model.Observation{}, err
	}
	obs, ok := res.(model.Observation)
	if !ok {
		return model.Observation{}, errors.New("weatherapi: unexpected result type from circuit breaker")
	}
	return obs, nil
}

// callerGone marks a fetch that failed because the caller's context ended.
type callerGone struct{ err error }

func (e *callerGone) Error() string { return e.err.Error() }
func (e *callerGone) Unwrap() error { return e.err }

func (w *WeatherAPI) fetch(ctx context.Context, lat, lon float64) (model.Observation, error) {
	u := *w.base
	u.Path = strings.TrimRight(u.Path, "/") + "/current.json"
	q := url.Values{}
	q.Set("key", w.apiKey)
	q.Set("q", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lon, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Observation{}, fmt.Errorf("weatherapi build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		// the key rides in the query string; keep it out of error text
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return model.Observation{}, fmt.Errorf("weatherapi request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return model.Observation{}, fmt.Errorf("%w: status=%d body=%q", ErrUpstreamState, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var payload currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.Observation{}, fmt.Errorf("weatherapi decode: %w", err)
	}
	return payload.observation(), nil
}
