// Package metricswrap wraps a hotness tracker with Prometheus metrics and logging.
package metricswrap

import (
	"fmt"
	"log/slog"

	xx "github.com/cespare/xxhash/v2"

	"github.com/nnar1o/meteoride/internal/core/observability"
	"github.com/nnar1o/meteoride/internal/hotness"
)

type Sizer interface{ Size() int }

type Options struct {
	Tier      string
	Threshold float64
	// fraction of buckets over the threshold that get logged, 0..1
	LogSample float64
	Logger    *slog.Logger
}

type WithMetrics struct {
	inner hotness.Interface
	opts  Options
}

var _ hotness.Interface = (*WithMetrics)(nil)

func New(inner hotness.Interface, opts Options) *WithMetrics {
	if opts.Tier == "" {
		opts.Tier = "buckets"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &WithMetrics{inner: inner, opts: opts}
}

func (w *WithMetrics) Inc(bucket string) {
	w.inner.Inc(bucket)
	if w.opts.Threshold > 0 {
		score := w.inner.Score(bucket)
		if score >= w.opts.Threshold && shouldLog(w.opts.LogSample, bucket) {
			w.opts.Logger.Info("hot bucket above threshold",
				"event", "hotness_threshold",
				"bucket", bucket,
				"score", score,
				"tier", w.opts.Tier,
				"bucket_hash", fmt.Sprintf("%08x", xx.Sum64String(bucket)))
		}
	}

	if s, ok := w.inner.(Sizer); ok {
		observability.SetHotBucketsGauge(w.opts.Tier, s.Size())
	}
}

func (w *WithMetrics) Score(bucket string) float64 {
	return w.inner.Score(bucket)
}

func shouldLog(sample float64, key string) bool {
	if sample <= 0 {
		return false
	}
	if sample >= 1 {
		return true
	}
	const denom = 10000 // 0.01 => 100/10000
	threshold := uint64(sample*denom + 0.5)
	if threshold == 0 {
		return false
	}
	h := xx.Sum64String(key)
	return (h % denom) < threshold
}
