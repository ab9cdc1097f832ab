// Package observability holds the Prometheus collectors shared across the service.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Upstream calls by result.",
		},
		[]string{"upstream", "result"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	keyFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_key_fallback_total",
			Help: "Keys derived with the sentinel bucket because encoding failed.",
		},
		[]string{"scheme"},
	)

	assessmentScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessment_score",
			Help:    "Distribution of computed ride-safety scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"vehicle"},
	)

	hotBuckets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hot_buckets",
			Help: "Number of spatial buckets currently tracked for hotness.",
		},
		[]string{"tier"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_events_total",
			Help: "Assessment events by publish result.",
		},
		[]string{"result"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamLatencySeconds, upstreamRequestsTotal,
		cacheResults, cacheOpTotal, redisOpDuration, keyFallbackTotal,
		assessmentScore, hotBuckets, eventsTotal,
	}
}

// Init registers the collectors with reg. Collectors still record when
// disabled, they just are not exported.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstream(upstream string, err error, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
	upstreamRequestsTotal.WithLabelValues(upstream, result(err)).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpTotal.WithLabelValues(op, result(err)).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit()         { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss()        { cacheResults.WithLabelValues("miss").Inc() }
func IncCacheError()       { cacheResults.WithLabelValues("error").Inc() }
func IncCacheDecodeError() { cacheResults.WithLabelValues("decode_error").Inc() }

func IncKeyFallback(scheme string) {
	if scheme == "" {
		scheme = "none"
	}
	keyFallbackTotal.WithLabelValues(scheme).Inc()
}

func ObserveScore(vehicle string, score float64) {
	assessmentScore.WithLabelValues(vehicle).Observe(score)
}

func SetHotBucketsGauge(tier string, n int) {
	hotBuckets.WithLabelValues(tier).Set(float64(n))
}

func IncEvent(result string) {
	eventsTotal.WithLabelValues(result).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
