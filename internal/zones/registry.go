package zones

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrZoneNotFound       = errors.New("zone not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// ActiveAssignment is an assignment in force together with its zone and the
// zone's parsed geometry. ShapeErr is set instead of Shape when the stored
// coordinates do not parse; the caller decides what to do with it.
type ActiveAssignment struct {
	Assignment Assignment
	Zone       Zone
	Shape      Shape
	ShapeErr   error
}

// Registry answers which zones a subject is assigned to on a given day.
// Results may contain the same zone more than once and are not ordered.
type Registry interface {
	ActiveAssignmentsFor(ctx context.Context, subjectID string, asOf time.Time) ([]ActiveAssignment, error)
}

// AssignmentActiveAt reports whether a is in force on the calendar day of
// asOf in loc. Both window ends are inclusive.
func AssignmentActiveAt(a Assignment, asOf time.Time, loc *time.Location) bool {
	if !a.Activo {
		return false
	}
	day := DateOf(asOf, loc)
	if a.FechaInicio.Compare(day) > 0 {
		return false
	}
	if a.FechaFin != nil && a.FechaFin.Compare(day) < 0 {
		return false
	}
	return true
}

// Resolve pairs an assignment with its zone, parsing the geometry.
func Resolve(a Assignment, z Zone) ActiveAssignment {
	shape, err := z.Shape()
	return ActiveAssignment{Assignment: a, Zone: z, Shape: shape, ShapeErr: err}
}

// MemoryRegistry keeps zones and assignments in process. Zones go through
// strict validation on the way in.
type MemoryRegistry struct {
	mu          sync.RWMutex
	loc         *time.Location
	zones       map[uuid.UUID]Zone
	assignments []Assignment
}

func NewMemoryRegistry(loc *time.Location) *MemoryRegistry {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryRegistry{loc: loc, zones: make(map[uuid.UUID]Zone)}
}

// PutZone validates and stores z, assigning an id when it has none.
func (m *MemoryRegistry) PutZone(z Zone) (Zone, error) {
	if err := z.Validate(); err != nil {
		return Zone{}, err
	}
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	z.NombreClave = NormalizeName(z.Nombre)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[z.ID] = z
	return z, nil
}

// PutZoneUnchecked stores z without validation. Used to load rows that were
// written by other tools and might not parse.
func (m *MemoryRegistry) PutZoneUnchecked(z Zone) Zone {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[z.ID] = z
	return z
}

// PutAssignment stores a for an existing zone.
func (m *MemoryRegistry) PutAssignment(a Assignment) (Assignment, error) {
	if err := a.Validate(); err != nil {
		return Assignment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[a.ZonaID]; !ok {
		return Assignment{}, fmt.Errorf("%w: %s", ErrZoneNotFound, a.ZonaID)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.assignments = append(m.assignments, a)
	return a, nil
}

// SetZoneActive flips a zone's activo flag.
func (m *MemoryRegistry) SetZoneActive(id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	z.Activo = active
	m.zones[id] = z
	return nil
}

// Zones returns every stored zone.
func (m *MemoryRegistry) Zones() []Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	return out
}

func (m *MemoryRegistry) ActiveAssignmentsFor(ctx context.Context, subjectID string, asOf time.Time) ([]ActiveAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ActiveAssignment
	for _, a := range m.assignments {
		if a.GuardiaID != subjectID || !AssignmentActiveAt(a, asOf, m.loc) {
			continue
		}
		z, ok := m.zones[a.ZonaID]
		if !ok {
			continue
		}
		out = append(out, Resolve(a, z))
	}
	return out, nil
}

// GormRegistry reads assignments and their zones from Postgres on every call.
type GormRegistry struct {
	DB       *gorm.DB
	Location *time.Location
}

func NewGormRegistry(d *gorm.DB, loc *time.Location) *GormRegistry {
	if loc == nil {
		loc = time.UTC
	}
	return &GormRegistry{DB: d, Location: loc}
}

func (g *GormRegistry) ActiveAssignmentsFor(ctx context.Context, subjectID string, asOf time.Time) ([]ActiveAssignment, error) {
	day := DateOf(asOf, g.Location)

	var rows []Assignment
	err := g.DB.WithContext(ctx).
		Preload("Zona").
		Where("guardia_id = ? AND activo = ?", subjectID, true).
		Where("fecha_inicio <= ? AND (fecha_fin IS NULL OR fecha_fin >= ?)", day, day).
		Order("fecha_inicio DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("active assignments for %s: %w", subjectID, err)
	}

	out := make([]ActiveAssignment, 0, len(rows))
	for _, a := range rows {
		if a.Zona == nil || !AssignmentActiveAt(a, asOf, g.Location) {
			continue
		}
		z := *a.Zona
		a.Zona = nil
		out = append(out, Resolve(a, z))
	}
	return out, nil
}
