package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/vigilia/guard-backend/internal/geo"
	"github.com/vigilia/guard-backend/internal/zones"
)

// Seed file contract
//
//	zonas:
//	  - nombre: Depósito Norte
//	    tipo: circulo
//	    centro: {lat: -34.6, lng: -58.4}
//	    radio: 150
//	  - nombre: Playa de carga
//	    tipo: poligono
//	    vertices: [{lat: .., lng: ..}, ...]
//	asignaciones:
//	  - guardia_id: 5f1c...
//	    zona: Depósito Norte
//	    fecha_inicio: "2024-06-01"
//	    fecha_fin: "2024-06-30"   # optional
//
// Assignments reference zones by name; matching uses the normalized name.

type SeedPoint struct {
	Lat *float64 `yaml:"lat"`
	Lng *float64 `yaml:"lng"`
}

type SeedZone struct {
	Nombre      string         `yaml:"nombre"`
	Descripcion *string        `yaml:"descripcion"`
	Tipo        zones.ZoneKind `yaml:"tipo"`
	Centro      *SeedPoint     `yaml:"centro"`
	Radio       *float64       `yaml:"radio"`
	Vertices    []SeedPoint    `yaml:"vertices"`
	Activo      *bool          `yaml:"activo"`
}

type SeedAssignment struct {
	GuardiaID   string      `yaml:"guardia_id"`
	Zona        string      `yaml:"zona"`
	FechaInicio zones.Date  `yaml:"fecha_inicio"`
	FechaFin    *zones.Date `yaml:"fecha_fin"`
	Activo      *bool       `yaml:"activo"`
}

type SeedFile struct {
	Zonas        []SeedZone       `yaml:"zonas"`
	Asignaciones []SeedAssignment `yaml:"asignaciones"`
}

var errMissingPoint = errors.New("lat and lng are required")

func (p SeedPoint) point() (geo.Point, error) {
	if p.Lat == nil || p.Lng == nil {
		return geo.Point{}, errMissingPoint
	}
	return geo.Point{Latitude: *p.Lat, Longitude: *p.Lng}, nil
}

func loadSeedFile(path string) (SeedFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, err
	}
	return parseSeedFile(b)
}

func parseSeedFile(b []byte) (SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return SeedFile{}, fmt.Errorf("parse yaml: %w", err)
	}
	return f, nil
}

// toZone builds the stored zone and runs the same strict validation the API does.
func (s SeedZone) toZone() (zones.Zone, error) {
	var shape zones.Shape
	switch s.Tipo {
	case zones.KindCircle:
		if s.Centro == nil || s.Radio == nil {
			return zones.Zone{}, fmt.Errorf("%w: circulo needs centro and radio", zones.ErrMalformedShape)
		}
		center, err := s.Centro.point()
		if err != nil {
			return zones.Zone{}, fmt.Errorf("%w: centro: %v", zones.ErrMalformedShape, err)
		}
		shape = zones.Circle{Center: center, RadiusMeters: *s.Radio}
	case zones.KindPolygon:
		vertices := make([]geo.Point, 0, len(s.Vertices))
		for i, v := range s.Vertices {
			p, err := v.point()
			if err != nil {
				return zones.Zone{}, fmt.Errorf("%w: vertex %d: %v", zones.ErrMalformedShape, i, err)
			}
			vertices = append(vertices, p)
		}
		shape = zones.NewPolygon(vertices)
	default:
		return zones.Zone{}, fmt.Errorf("%w: unknown tipo %q", zones.ErrMalformedShape, s.Tipo)
	}

	coords, err := zones.EncodeShape(shape)
	if err != nil {
		return zones.Zone{}, err
	}

	z := zones.Zone{
		Nombre:      s.Nombre,
		Descripcion: s.Descripcion,
		Tipo:        s.Tipo,
		Coordenadas: coords,
		Activo:      s.Activo == nil || *s.Activo,
	}
	z.NombreClave = zones.NormalizeName(z.Nombre)
	if err := z.Validate(); err != nil {
		return zones.Zone{}, err
	}
	return z, nil
}

// plan is a validated seed file ready to write.
type plan struct {
	Zones       []zones.Zone
	Assignments []plannedAssignment
}

type plannedAssignment struct {
	Assignment zones.Assignment
	ZoneKey    string
}

func buildPlan(f SeedFile) (plan, error) {
	var p plan
	var errs []error
	seen := make(map[string]int, len(f.Zonas))

	for i, sz := range f.Zonas {
		z, err := sz.toZone()
		if err != nil {
			errs = append(errs, fmt.Errorf("zonas[%d] %q: %w", i, sz.Nombre, err))
			continue
		}
		if j, dup := seen[z.NombreClave]; dup {
			errs = append(errs, fmt.Errorf("zonas[%d] %q: duplicates zonas[%d]", i, sz.Nombre, j))
			continue
		}
		seen[z.NombreClave] = i
		p.Zones = append(p.Zones, z)
	}

	for i, sa := range f.Asignaciones {
		key := zones.NormalizeName(sa.Zona)
		if _, ok := seen[key]; !ok {
			errs = append(errs, fmt.Errorf("asignaciones[%d]: zona %q is not in the file", i, sa.Zona))
			continue
		}
		a := zones.Assignment{
			GuardiaID:   sa.GuardiaID,
			FechaInicio: sa.FechaInicio,
			FechaFin:    sa.FechaFin,
			Activo:      sa.Activo == nil || *sa.Activo,
		}
		// ZonaID is only known after the zone upsert
		check := a
		check.ZonaID = uuid.New()
		if err := check.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("asignaciones[%d]: %w", i, err))
			continue
		}
		p.Assignments = append(p.Assignments, plannedAssignment{Assignment: a, ZoneKey: key})
	}

	return p, errors.Join(errs...)
}
