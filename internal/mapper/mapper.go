// Package mapper converts coordinates into spatial bucket identifiers.
package mapper

import (
	"errors"
	"fmt"
	"math"
)

// Bucketer quantizes a coordinate into a stable bucket string. Nearby points
// share a bucket; precision trades bucket size against cache hit rate.
type Bucketer interface {
	Bucket(lat, lon float64, precision int) (string, error)
	Scheme() string
}

var ErrOutOfRange = errors.New("coordinate out of range")

// ValidateLatLon rejects non-finite or out-of-range coordinates.
func ValidateLatLon(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: non-finite lat=%v lon=%v", ErrOutOfRange, lat, lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: lat=%v must be in [-90,90]", ErrOutOfRange, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lon=%v must be in [-180,180]", ErrOutOfRange, lon)
	}
	return nil
}
