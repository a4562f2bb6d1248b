package zones

import (
	"fmt"
	"io"
	"log"

	geojson "github.com/paulmach/go.geojson"
	"github.com/twpayne/go-kml"

	"github.com/vigilia/guard-backend/internal/geo"
)

// circleSegments is the ring resolution used for formats without circles
const circleSegments = 64

// ring returns the closed outline of a shape in vertex order.
func ring(s Shape) []geo.Point {
	switch shape := s.(type) {
	case Circle:
		return geo.CircleRing(shape.Center, shape.RadiusMeters, circleSegments)
	case Polygon:
		if len(shape.Vertices) == 0 {
			return nil
		}
		pts := append([]geo.Point(nil), shape.Vertices...)
		if pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		return pts
	}
	return nil
}

// WriteKML renders zones as a KML document, one placemark per zone.
// Zones whose coordinates do not parse are left out.
func WriteKML(w io.Writer, zones []Zone) error {
	placemarks := make([]kml.Element, 0, len(zones)+1)
	placemarks = append(placemarks, kml.Name("Zonas"))

	for _, z := range zones {
		shape, err := z.Shape()
		if err != nil {
			log.Printf("[zones] export.kml skipping zone %s: %v", z.ID, err)
			continue
		}

		coords := make([]kml.Coordinate, 0)
		for _, p := range ring(shape) {
			coords = append(coords, kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude})
		}

		desc := ""
		if z.Descripcion != nil {
			desc = *z.Descripcion
		}

		placemarks = append(placemarks, kml.Placemark(
			kml.Name(z.Nombre),
			kml.Description(desc),
			kml.ExtendedData(
				kml.Data(kml.Name("id"), kml.Value(z.ID.String())),
				kml.Data(kml.Name("tipo"), kml.Value(string(z.Tipo))),
			),
			kml.Polygon(
				kml.OuterBoundaryIs(
					kml.LinearRing(
						kml.Coordinates(coords...),
					),
				),
			),
		))
	}

	doc := kml.KML(kml.Document(placemarks...))
	if err := doc.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("write kml: %w", err)
	}
	return nil
}

// GeoJSON builds a FeatureCollection of zone outlines. Circles carry their
// center and radius as properties next to the approximated ring.
func GeoJSON(zones []Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, z := range zones {
		shape, err := z.Shape()
		if err != nil {
			log.Printf("[zones] export.geojson skipping zone %s: %v", z.ID, err)
			continue
		}

		outline := ring(shape)
		positions := make([][]float64, 0, len(outline))
		for _, p := range outline {
			positions = append(positions, []float64{p.Longitude, p.Latitude})
		}

		f := geojson.NewPolygonFeature([][][]float64{positions})
		f.ID = z.ID.String()
		f.SetProperty("nombre", z.Nombre)
		f.SetProperty("tipo", string(z.Tipo))
		f.SetProperty("activo", z.Activo)
		f.SetProperty("area_m2", shape.AreaSquareMeters())
		if z.Descripcion != nil {
			f.SetProperty("descripcion", *z.Descripcion)
		}
		if c, ok := shape.(Circle); ok {
			f.SetProperty("centro", []float64{c.Center.Longitude, c.Center.Latitude})
			f.SetProperty("radio", c.RadiusMeters)
		}
		fc.AddFeature(f)
	}

	return fc
}
