package geo

// EarthRadiusMeters is the mean Earth radius used by every calculation in this package.
const EarthRadiusMeters = 6371000.0

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// BoundingBox is the min/max latitude and longitude of a vertex set
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lng"`
}

// Contains reports whether p lies inside or on the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}
