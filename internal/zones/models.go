package zones

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ZoneKind is the shape tag stored in zonas.tipo
type ZoneKind string

const (
	KindPolygon ZoneKind = "poligono"
	KindCircle  ZoneKind = "circulo"
)

// AlertKind is the transition recorded in alertas_zona.tipo
type AlertKind string

const (
	AlertEntrada AlertKind = "entrada"
	AlertSalida  AlertKind = "salida"
)

var (
	ErrNameRequired      = errors.New("nombre is required")
	ErrGuardRequired     = errors.New("guardia_id is required")
	ErrZoneRequired      = errors.New("zona_id is required")
	ErrStartDateRequired = errors.New("fecha_inicio is required")
	ErrEndBeforeStart    = errors.New("fecha_fin must not be before fecha_inicio")
	ErrUnknownAlertKind  = errors.New("tipo must be entrada or salida")
)

// Zone is an administratively defined circular or polygonal area.
// Coordenadas keeps the JSON text as submitted; Shape parses it.
type Zone struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Nombre      string    `gorm:"not null" json:"nombre"`
	NombreClave string    `gorm:"uniqueIndex;not null" json:"-"`
	Descripcion *string   `json:"descripcion,omitempty"`
	Tipo        ZoneKind  `gorm:"type:varchar(16);not null" json:"tipo"`
	Coordenadas string    `gorm:"type:text;not null" json:"coordenadas"`
	Activo      bool      `gorm:"not null" json:"activo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Assignment links one guard to one zone over a validity window.
// FechaFin nil means open ended. Activo is independent of the window.
type Assignment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GuardiaID   string    `gorm:"index;not null" json:"guardia_id"`
	ZonaID      uuid.UUID `gorm:"type:uuid;index;not null" json:"zona_id"`
	Zona        *Zone     `gorm:"foreignKey:ZonaID;constraint:OnDelete:CASCADE" json:"zona,omitempty"`
	FechaInicio Date      `gorm:"not null" json:"fecha_inicio"`
	FechaFin    *Date     `json:"fecha_fin"`
	Activo      bool      `gorm:"not null" json:"activo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Alert records one detected entry or exit. Only Resuelta ever changes.
type Alert struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GuardiaID string    `gorm:"index;not null" json:"guardia_id"`
	ZonaID    uuid.UUID `gorm:"type:uuid;index;not null" json:"zona_id"`
	Tipo      AlertKind `gorm:"type:varchar(16);not null" json:"tipo"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	Resuelta  bool      `gorm:"not null;default:false" json:"resuelta"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Zone) TableName() string       { return "geofence.zonas" }
func (Assignment) TableName() string { return "geofence.asignaciones_zona" }
func (Alert) TableName() string      { return "geofence.alertas_zona" }

func (z *Zone) BeforeCreate(tx *gorm.DB) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	z.NombreClave = NormalizeName(z.Nombre)
	return nil
}

func (z *Zone) BeforeSave(tx *gorm.DB) error {
	z.NombreClave = NormalizeName(z.Nombre)
	return nil
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Shape parses Coordenadas according to Tipo.
func (z Zone) Shape() (Shape, error) {
	return ParseShape(z.Tipo, z.Coordenadas)
}

// Validate is the strict check run before a zone is stored. Malformed or
// under-specified geometry is rejected here, never at evaluation time.
func (z Zone) Validate() error {
	if strings.TrimSpace(z.Nombre) == "" {
		return ErrNameRequired
	}
	shape, err := z.Shape()
	if err != nil {
		return err
	}
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("zone %q: %w", z.Nombre, err)
	}
	return nil
}

// Validate checks required fields and the window ordering.
func (a Assignment) Validate() error {
	if strings.TrimSpace(a.GuardiaID) == "" {
		return ErrGuardRequired
	}
	if a.ZonaID == uuid.Nil {
		return ErrZoneRequired
	}
	if a.FechaInicio.IsZero() {
		return ErrStartDateRequired
	}
	if a.FechaFin != nil && a.FechaFin.Compare(a.FechaInicio) < 0 {
		return ErrEndBeforeStart
	}
	return nil
}

// Validate checks the alert carries a known transition kind.
func (a Alert) Validate() error {
	switch a.Tipo {
	case AlertEntrada, AlertSalida:
	default:
		return fmt.Errorf("%w (got %q)", ErrUnknownAlertKind, a.Tipo)
	}
	if strings.TrimSpace(a.GuardiaID) == "" {
		return ErrGuardRequired
	}
	if a.ZonaID == uuid.Nil {
		return ErrZoneRequired
	}
	return nil
}
