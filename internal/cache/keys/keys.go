// Package keys derives cache keys for ride-safety assessments.
package keys

import (
	"strings"

	"github.com/nnar1o/meteoride/internal/core/model"
	"github.com/nnar1o/meteoride/internal/core/observability"
	"github.com/nnar1o/meteoride/internal/mapper"
)

const (
	Namespace = "ride"
	Version   = "v1"
	Delimiter = ":"

	// FallbackBucket replaces the spatial bucket whenever encoding fails.
	FallbackBucket = "default"
)

// Derive builds "ride:<bucket>:<vehicle>:v1". Any bucketing failure degrades
// to FallbackBucket instead of failing the request.
func Derive(b mapper.Bucketer, lat, lon float64, vehicle model.Vehicle, precision int) string {
	bucket, ok := encode(b, lat, lon, precision)
	if !ok && b != nil {
		observability.IncKeyFallback(b.Scheme())
	}
	return strings.Join([]string{Namespace, bucket, vehicle.String(), Version}, Delimiter)
}

func encode(b mapper.Bucketer, lat, lon float64, precision int) (string, bool) {
	if b == nil {
		return FallbackBucket, false
	}
	s, err := b.Bucket(lat, lon, precision)
	if err != nil || s == "" {
		return FallbackBucket, false
	}
	return s, true
}

// Deriver binds a bucketer and precision so reads and writes share one derivation.
type Deriver struct {
	Bucketer  mapper.Bucketer
	Precision int
}

func (d Deriver) Key(lat, lon float64, vehicle model.Vehicle) string {
	return Derive(d.Bucketer, lat, lon, vehicle, d.Precision)
}

// Bucket returns only the bucket segment of the key for lat/lon.
func (d Deriver) Bucket(lat, lon float64) string {
	bucket, _ := encode(d.Bucketer, lat, lon, d.Precision)
	return bucket
}
