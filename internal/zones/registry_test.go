package zones

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(d Date) *Date { return &d }

func TestAssignmentActiveAt_Window(t *testing.T) {
	a := Assignment{
		Activo:      true,
		FechaInicio: NewDate(2024, time.March, 1),
		FechaFin:    datePtr(NewDate(2024, time.March, 31)),
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"day before start", time.Date(2024, time.February, 29, 23, 59, 0, 0, time.UTC), false},
		{"start day", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), true},
		{"mid window", time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC), true},
		{"end day late evening", time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC), true},
		{"day after end", time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AssignmentActiveAt(a, tc.at, time.UTC))
		})
	}
}

func TestAssignmentActiveAt_OpenEndedAndInactive(t *testing.T) {
	a := Assignment{Activo: true, FechaInicio: NewDate(2020, time.January, 1)}
	assert.True(t, AssignmentActiveAt(a, time.Date(2099, time.January, 1, 0, 0, 0, 0, time.UTC), time.UTC))

	a.Activo = false
	assert.False(t, AssignmentActiveAt(a, time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), time.UTC))
}

// The calendar day is taken in the registry's location, not UTC
func TestAssignmentActiveAt_Location(t *testing.T) {
	buenosAires := time.FixedZone("ART", -3*60*60)
	a := Assignment{Activo: true, FechaInicio: NewDate(2024, time.March, 1)}

	// 01:00 UTC on March 1 is still February 29 in Buenos Aires
	at := time.Date(2024, time.March, 1, 1, 0, 0, 0, time.UTC)
	assert.True(t, AssignmentActiveAt(a, at, time.UTC))
	assert.False(t, AssignmentActiveAt(a, at, buenosAires))
}

func newTestRegistry(t *testing.T) (*MemoryRegistry, Zone) {
	t.Helper()
	reg := NewMemoryRegistry(time.UTC)
	zone, err := reg.PutZone(Zone{Nombre: "Microcentro", Tipo: KindPolygon, Coordenadas: squareJSON, Activo: true})
	require.NoError(t, err)
	return reg, zone
}

func TestMemoryRegistry_ActiveAssignmentsFor(t *testing.T) {
	reg, zone := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.PutAssignment(Assignment{GuardiaID: "g1", ZonaID: zone.ID, FechaInicio: NewDate(2024, 1, 1), Activo: true})
	require.NoError(t, err)
	_, err = reg.PutAssignment(Assignment{GuardiaID: "g1", ZonaID: zone.ID, FechaInicio: NewDate(2025, 1, 1), Activo: true})
	require.NoError(t, err)
	_, err = reg.PutAssignment(Assignment{GuardiaID: "g2", ZonaID: zone.ID, FechaInicio: NewDate(2024, 1, 1), Activo: true})
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	active, err := reg.ActiveAssignmentsFor(ctx, "g1", at)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, zone.ID, active[0].Zone.ID)
	assert.NoError(t, active[0].ShapeErr)
	require.NotNil(t, active[0].Shape)
	assert.Equal(t, KindPolygon, active[0].Shape.Kind())

	// Both assignments of the same zone come back once the second starts
	active, err = reg.ActiveAssignmentsFor(ctx, "g1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, active, 2)

	active, err = reg.ActiveAssignmentsFor(ctx, "nobody", at)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMemoryRegistry_RejectsInvalid(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.PutZone(Zone{Nombre: "Dos puntos", Tipo: KindPolygon, Coordenadas: `[{"lat":0,"lng":0},{"lat":1,"lng":1}]`})
	assert.Error(t, err)

	_, err = reg.PutAssignment(Assignment{GuardiaID: "g1", ZonaID: uuid.New(), FechaInicio: NewDate(2024, 1, 1), Activo: true})
	assert.ErrorIs(t, err, ErrZoneNotFound)

	_, err = reg.PutAssignment(Assignment{GuardiaID: "g1", ZonaID: uuid.New()})
	assert.ErrorIs(t, err, ErrStartDateRequired)
}

// Rows written by other tools may not parse; they surface with ShapeErr set
func TestMemoryRegistry_MalformedZoneSurfacesShapeErr(t *testing.T) {
	reg := NewMemoryRegistry(nil)
	bad := reg.PutZoneUnchecked(Zone{Nombre: "Rota", Tipo: KindCircle, Coordenadas: "{oops", Activo: true})
	_, err := reg.PutAssignment(Assignment{GuardiaID: "g1", ZonaID: bad.ID, FechaInicio: NewDate(2024, 1, 1), Activo: true})
	require.NoError(t, err)

	active, err := reg.ActiveAssignmentsFor(context.Background(), "g1", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Nil(t, active[0].Shape)
	assert.ErrorIs(t, active[0].ShapeErr, ErrMalformedShape)
}

func TestMemoryRegistry_CancelledContext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.ActiveAssignmentsFor(ctx, "g1", time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDate_JSON(t *testing.T) {
	var a struct {
		Inicio Date  `json:"fecha_inicio"`
		Fin    *Date `json:"fecha_fin"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"fecha_inicio":"2024-03-01","fecha_fin":null}`), &a))
	assert.Equal(t, NewDate(2024, time.March, 1), a.Inicio)
	assert.Nil(t, a.Fin)

	require.NoError(t, json.Unmarshal([]byte(`{"fecha_inicio":"2024-03-01T22:00:00-03:00"}`), &a))
	assert.Equal(t, "2024-03-01", a.Inicio.String())

	out, err := json.Marshal(NewDate(2024, time.December, 31))
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-12-31"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"fecha_inicio":"31/12/2024"}`), &a))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-06", d.String())

	require.NoError(t, d.Scan([]byte("2023-01-02")))
	assert.Equal(t, "2023-01-02", d.String())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2023-01-02", v)

	assert.Error(t, d.Scan(42))
}

func TestAssignmentValidate(t *testing.T) {
	zid := uuid.New()
	start := NewDate(2024, 3, 10)

	assert.NoError(t, Assignment{GuardiaID: "g", ZonaID: zid, FechaInicio: start}.Validate())
	assert.NoError(t, Assignment{GuardiaID: "g", ZonaID: zid, FechaInicio: start, FechaFin: datePtr(start)}.Validate())
	assert.ErrorIs(t, Assignment{GuardiaID: "g", ZonaID: zid, FechaInicio: start, FechaFin: datePtr(NewDate(2024, 3, 9))}.Validate(), ErrEndBeforeStart)
	assert.ErrorIs(t, Assignment{ZonaID: zid, FechaInicio: start}.Validate(), ErrGuardRequired)
	assert.ErrorIs(t, Assignment{GuardiaID: "g", FechaInicio: start}.Validate(), ErrZoneRequired)
}
