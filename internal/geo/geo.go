// Package geo holds the pure geometry used for zone geofencing: great-circle
// distance, point-in-circle and point-in-polygon containment, and area
// estimates.
//
// Polygon containment and polygon area treat (longitude, latitude) as a flat
// plane. That is accurate for facility-sized zones only: results are not valid
// for polygons near the poles or polygons that cross the antimeridian, and
// neither case is corrected for.
//
// None of the evaluation functions return errors. Degenerate input degrades to
// "not contained" or zero area; callers that need strict checks use the
// Validate* functions when a zone is created.
package geo

import "math"

// DistanceMeters calculates great-circle distance between two coordinates using the Haversine formula
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	// Same point is exactly zero, not a rounding residue
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dphi := toRadians(lat2 - lat1)
	dlambda := toRadians(lon2 - lon1)

	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlambda/2)*math.Sin(dlambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Distance is DistanceMeters for two Points
func Distance(p1, p2 Point) float64 {
	return DistanceMeters(p1.Latitude, p1.Longitude, p2.Latitude, p2.Longitude)
}

// PointInCircle reports whether the point is within radiusMeters of the center.
// A point exactly on the circle counts as inside.
func PointInCircle(lat, lon, centerLat, centerLon, radiusMeters float64) bool {
	return DistanceMeters(lat, lon, centerLat, centerLon) <= radiusMeters
}

// PointInPolygon applies the even-odd rule by casting a ray towards increasing
// longitude. Vertices are taken in order and the ring is closed implicitly.
// Fewer than 3 vertices never contain anything.
func PointInPolygon(lat, lon float64, vertices []Point) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := vertices[i].Longitude, vertices[i].Latitude
		xj, yj := vertices[j].Longitude, vertices[j].Latitude

		if (yi > lat) != (yj > lat) {
			crossing := (xj-xi)*(lat-yi)/(yj-yi) + xi
			if lon < crossing {
				inside = !inside
			}
		}
	}

	return inside
}

// PolygonAreaSquareMeters estimates the area enclosed by the ring using the
// spherical excess approximation. Only meaningful as an order of magnitude for
// small polygons. Always non-negative; 0 for fewer than 3 vertices.
func PolygonAreaSquareMeters(vertices []Point) float64 {
	n := len(vertices)
	if n < 3 {
		return 0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		p1 := vertices[i]
		p2 := vertices[(i+1)%n]
		sum += toRadians(p2.Longitude-p1.Longitude) *
			(2 + math.Sin(toRadians(p1.Latitude)) + math.Sin(toRadians(p2.Latitude)))
	}

	return math.Abs(sum * EarthRadiusMeters * EarthRadiusMeters / 2)
}

// CircleAreaSquareMeters returns π·r²
func CircleAreaSquareMeters(radiusMeters float64) float64 {
	return math.Pi * radiusMeters * radiusMeters
}

// Bounds returns the bounding box of the vertices. The zero box is returned for an empty slice.
func Bounds(vertices []Point) BoundingBox {
	if len(vertices) == 0 {
		return BoundingBox{}
	}

	box := BoundingBox{
		MinLat: vertices[0].Latitude,
		MaxLat: vertices[0].Latitude,
		MinLon: vertices[0].Longitude,
		MaxLon: vertices[0].Longitude,
	}
	for _, v := range vertices[1:] {
		box.MinLat = math.Min(box.MinLat, v.Latitude)
		box.MaxLat = math.Max(box.MaxLat, v.Latitude)
		box.MinLon = math.Min(box.MinLon, v.Longitude)
		box.MaxLon = math.Max(box.MaxLon, v.Longitude)
	}
	return box
}

// Centroid returns the vertex average, which is good enough to label a small zone on a map
func Centroid(vertices []Point) Point {
	if len(vertices) == 0 {
		return Point{}
	}

	var lat, lon float64
	for _, v := range vertices {
		lat += v.Latitude
		lon += v.Longitude
	}
	n := float64(len(vertices))
	return Point{Latitude: lat / n, Longitude: lon / n}
}

// Destination returns the point reached by travelling distanceMeters from
// start along the given initial bearing (degrees clockwise from north).
func Destination(start Point, bearingDegrees, distanceMeters float64) Point {
	delta := distanceMeters / EarthRadiusMeters
	theta := toRadians(bearingDegrees)
	phi1 := toRadians(start.Latitude)
	lambda1 := toRadians(start.Longitude)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return Point{
		Latitude:  toDegrees(phi2),
		Longitude: normalizeLongitude(toDegrees(lambda2)),
	}
}

// CircleRing approximates a circle with a closed ring of segments vertices,
// for formats (KML, GeoJSON) that have no circle primitive.
func CircleRing(center Point, radiusMeters float64, segments int) []Point {
	if segments < 3 {
		segments = 3
	}

	ring := make([]Point, 0, segments+1)
	for i := 0; i < segments; i++ {
		bearing := 360 * float64(i) / float64(segments)
		ring = append(ring, Destination(center, bearing, radiusMeters))
	}
	return append(ring, ring[0])
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func normalizeLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
