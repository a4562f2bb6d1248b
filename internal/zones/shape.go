package zones

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vigilia/guard-backend/internal/geo"
)

// ErrMalformedShape means coordenadas could not be parsed for the zone's tipo.
var ErrMalformedShape = errors.New("malformed zone coordinates")

// Shape is a zone geometry parsed once from the stored coordinate text.
// Contains and AreaSquareMeters never fail; Validate is the strict check.
type Shape interface {
	Kind() ZoneKind
	Contains(p geo.Point) bool
	AreaSquareMeters() float64
	Bounds() geo.BoundingBox
	Validate() error
}

type Circle struct {
	Center       geo.Point
	RadiusMeters float64
}

func (Circle) Kind() ZoneKind { return KindCircle }

func (c Circle) Contains(p geo.Point) bool {
	return geo.PointInCircle(p.Latitude, p.Longitude, c.Center.Latitude, c.Center.Longitude, c.RadiusMeters)
}

func (c Circle) AreaSquareMeters() float64 {
	return geo.CircleAreaSquareMeters(c.RadiusMeters)
}

// Bounds approximates the circle's extent from its cardinal points.
func (c Circle) Bounds() geo.BoundingBox {
	north := geo.Destination(c.Center, 0, c.RadiusMeters)
	east := geo.Destination(c.Center, 90, c.RadiusMeters)
	south := geo.Destination(c.Center, 180, c.RadiusMeters)
	west := geo.Destination(c.Center, 270, c.RadiusMeters)
	return geo.Bounds([]geo.Point{north, east, south, west})
}

func (c Circle) Validate() error {
	return geo.ValidateCircle(c.Center, c.RadiusMeters)
}

type Polygon struct {
	Vertices []geo.Point
	box      geo.BoundingBox
}

// NewPolygon precomputes the bounding box used to short-circuit containment.
func NewPolygon(vertices []geo.Point) Polygon {
	return Polygon{Vertices: vertices, box: geo.Bounds(vertices)}
}

func (Polygon) Kind() ZoneKind { return KindPolygon }

func (p Polygon) Contains(pt geo.Point) bool {
	if len(p.Vertices) < geo.MinPolygonVertices {
		return false
	}
	if p.box != (geo.BoundingBox{}) && !p.box.Contains(pt) {
		return false
	}
	return geo.PointInPolygon(pt.Latitude, pt.Longitude, p.Vertices)
}

func (p Polygon) AreaSquareMeters() float64 {
	return geo.PolygonAreaSquareMeters(p.Vertices)
}

func (p Polygon) Bounds() geo.BoundingBox {
	return geo.Bounds(p.Vertices)
}

func (p Polygon) Validate() error {
	return geo.ValidatePolygon(p.Vertices)
}

// circleJSON uses pointers so a missing field is distinguishable from zero.
type circleJSON struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Radio *float64 `json:"radio"`
}

type vertexJSON struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// ParseShape decodes coordenadas for the given tipo. Circles are
// {"lat","lng","radio"}; polygons are [{"lat","lng"}, ...].
// Range checks are left to Shape.Validate.
func ParseShape(kind ZoneKind, raw string) (Shape, error) {
	switch kind {
	case KindCircle:
		var c circleJSON
		if err := decodeCoordinates(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: circulo: %v", ErrMalformedShape, err)
		}
		if c.Lat == nil || c.Lng == nil || c.Radio == nil {
			return nil, fmt.Errorf("%w: circulo needs lat, lng and radio", ErrMalformedShape)
		}
		return Circle{
			Center:       geo.Point{Latitude: *c.Lat, Longitude: *c.Lng},
			RadiusMeters: *c.Radio,
		}, nil

	case KindPolygon:
		var raws []vertexJSON
		if err := decodeCoordinates(raw, &raws); err != nil {
			return nil, fmt.Errorf("%w: poligono: %v", ErrMalformedShape, err)
		}
		vertices := make([]geo.Point, 0, len(raws))
		for i, v := range raws {
			if v.Lat == nil || v.Lng == nil {
				return nil, fmt.Errorf("%w: poligono vertex %d needs lat and lng", ErrMalformedShape, i)
			}
			vertices = append(vertices, geo.Point{Latitude: *v.Lat, Longitude: *v.Lng})
		}
		return NewPolygon(vertices), nil

	default:
		return nil, fmt.Errorf("%w: unknown tipo %q", ErrMalformedShape, kind)
	}
}

// EncodeShape renders a shape back into the stored coordinate text.
func EncodeShape(s Shape) (string, error) {
	var v interface{}
	switch shape := s.(type) {
	case Circle:
		v = map[string]float64{
			"lat":   shape.Center.Latitude,
			"lng":   shape.Center.Longitude,
			"radio": shape.RadiusMeters,
		}
	case Polygon:
		pts := make([]geo.Point, len(shape.Vertices))
		copy(pts, shape.Vertices)
		v = pts
	default:
		return "", fmt.Errorf("%w: unsupported shape %T", ErrMalformedShape, s)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCoordinates(raw string, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after coordinates")
	}
	return nil
}
