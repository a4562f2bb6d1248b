package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	ErrTooFewVertices    = errors.New("polygon needs at least 3 vertices")
	ErrInvalidRadius     = errors.New("radius must be a positive number of meters")
)

// MinPolygonVertices is the smallest vertex count that encloses an area
const MinPolygonVertices = 3

// IsValidCoordinate validates latitude and longitude values
func IsValidCoordinate(p Point) bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// ValidateCoordinate returns ErrInvalidCoordinate for out-of-range points
func ValidateCoordinate(p Point) error {
	if !IsValidCoordinate(p) {
		return fmt.Errorf("%w (got %v, %v)", ErrInvalidCoordinate, p.Latitude, p.Longitude)
	}
	return nil
}

// ValidatePolygon is the strict check applied when a polygon zone is stored.
func ValidatePolygon(vertices []Point) error {
	if len(vertices) < MinPolygonVertices {
		return fmt.Errorf("%w (got %d)", ErrTooFewVertices, len(vertices))
	}
	for i, v := range vertices {
		if err := ValidateCoordinate(v); err != nil {
			return fmt.Errorf("vertex %d: %w", i, err)
		}
	}
	return nil
}

// ValidateCircle is the strict check applied when a circle zone is stored.
func ValidateCircle(center Point, radiusMeters float64) error {
	if err := ValidateCoordinate(center); err != nil {
		return fmt.Errorf("center: %w", err)
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return fmt.Errorf("%w (got %v)", ErrInvalidRadius, radiusMeters)
	}
	return nil
}
