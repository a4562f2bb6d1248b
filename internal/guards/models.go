package guards

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guard is a person whose location is tracked. UserID links the guard to an
// account; guards created before their account are matched by Email instead.
type Guard struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              *string    `gorm:"uniqueIndex" json:"user_id"`
	Nombre              string     `gorm:"not null" json:"nombre"`
	Apellido            string     `json:"apellido"`
	Email               string     `gorm:"index" json:"email"`
	Activo              bool       `gorm:"not null" json:"activo"`
	Latitud             *float64   `json:"latitud"`
	Longitud            *float64   `json:"longitud"`
	UltimaActualizacion *time.Time `json:"ultima_actualizacion"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (Guard) TableName() string { return "geofence.guardias" }

func (g *Guard) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
