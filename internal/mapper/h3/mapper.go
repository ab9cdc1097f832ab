package h3mapper

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/nnar1o/meteoride/internal/mapper"
)

// Bucketer maps coordinates onto H3 cells; precision is the H3 resolution.
type Bucketer struct{}

var _ mapper.Bucketer = Bucketer{}

func New() Bucketer { return Bucketer{} }

func (Bucketer) Scheme() string { return "h3" }

func (Bucketer) Bucket(lat, lon float64, precision int) (string, error) {
	if err := validateRes(precision); err != nil {
		return "", err
	}
	if err := mapper.ValidateLatLon(lat, lon); err != nil {
		return "", err
	}
	// v4 wants degrees
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, precision)
	if err != nil {
		return "", fmt.Errorf("h3 latlng to cell: %w", err)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("invalid h3 cell for lat=%v lon=%v", lat, lon)
	}
	return c.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
