package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nnar1o/meteoride/internal/core/model"
	"github.com/nnar1o/meteoride/internal/core/observability"
	mylog "github.com/nnar1o/meteoride/internal/logger"
	"github.com/nnar1o/meteoride/internal/ridesafety"
)

const (
	RideSafetyRoute = "/v1/ride-safety"
	CacheHeader     = "X-Cache"

	msgInvalidVehicle = "Invalid vehicle type. Use 'bike' or 'motor'"
	msgUpstream       = "Failed to fetch weather data"
	msgInternal       = "internal server error"
)

// Assessor answers validated ride-safety queries.
type Assessor interface {
	Assess(ctx context.Context, lat, lon float64, vehicle model.Vehicle) (ridesafety.Result, error)
}

type RideSafetyQuery struct {
	Lat     float64
	Lon     float64
	Vehicle model.Vehicle
}

// HandleRideSafety validates query params and serves the assessment.
func HandleRideSafety(logger *slog.Logger, svc Assessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, RideSafetyRoute, sw.code, time.Since(start).Seconds())
		}()

		q, err := ParseRideSafetyQuery(r)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, model.ErrInvalidVehicle) {
				msg = msgInvalidVehicle
			}
			writeError(sw, http.StatusBadRequest, msg)
			return
		}

		res, err := svc.Assess(r.Context(), q.Lat, q.Lon, q.Vehicle)
		if err != nil {
			if errors.Is(err, ridesafety.ErrUpstreamUnavailable) {
				logger.ErrorContext(r.Context(), "failed to fetch weather", "err", err)
				writeError(sw, http.StatusBadGateway, msgUpstream)
				return
			}
			logger.ErrorContext(r.Context(), "ride safety failed", "err", err)
			writeError(sw, http.StatusInternalServerError, msgInternal)
			return
		}

		ctx := mylog.WithCacheStatus(r.Context(), strings.ToLower(res.CacheStatus))
		logger.InfoContext(ctx, "ride safety served",
			"lat", q.Lat, "lon", q.Lon, "duration", time.Since(start))

		sw.Header().Set(CacheHeader, res.CacheStatus)
		writeJSON(sw, http.StatusOK, res.Assessment)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseRideSafetyQuery reads lat, lon and vehicle. Coordinates must be finite
// numbers; range is not checked here since out-of-range points still map to
// the fallback cache bucket.
func ParseRideSafetyQuery(r *http.Request) (RideSafetyQuery, error) {
	vals := r.URL.Query()

	lat, err := parseCoord("lat", vals.Get("lat"))
	if err != nil {
		return RideSafetyQuery{}, err
	}
	lon, err := parseCoord("lon", vals.Get("lon"))
	if err != nil {
		return RideSafetyQuery{}, err
	}

	v, err := model.ParseVehicle(vals.Get("vehicle"))
	if err != nil {
		return RideSafetyQuery{}, err
	}
	return RideSafetyQuery{Lat: lat, Lon: lon, Vehicle: v}, nil
}

func parseCoord(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return f, nil
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
