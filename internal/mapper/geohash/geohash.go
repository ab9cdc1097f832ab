// Package geohash buckets coordinates with base32 geohash strings.
package geohash

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/nnar1o/meteoride/internal/mapper"
)

const (
	MinPrecision = 1
	MaxPrecision = 12
)

type Bucketer struct{}

var _ mapper.Bucketer = Bucketer{}

func New() Bucketer { return Bucketer{} }

func (Bucketer) Scheme() string { return "geohash" }

// Bucket encodes (lat, lon) into a geohash of precision characters.
func (Bucketer) Bucket(lat, lon float64, precision int) (string, error) {
	if precision < MinPrecision || precision > MaxPrecision {
		return "", fmt.Errorf("invalid geohash precision %d (must be %d..%d)", precision, MinPrecision, MaxPrecision)
	}
	if err := mapper.ValidateLatLon(lat, lon); err != nil {
		return "", err
	}
	// the encoder wraps lat=90 into the south pole cell
	if lat >= 90 {
		lat = math.Nextafter(90, 0)
	}
	return geohash.EncodeWithPrecision(lat, lon, uint(precision)), nil
}
