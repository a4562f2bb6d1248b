package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRecord is the durable row behind GormStore.
type StateRecord struct {
	GuardiaID  string    `gorm:"primaryKey" json:"guardia_id"`
	ZonaID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"zona_id"`
	Dentro     bool      `gorm:"not null" json:"dentro"`
	EvaluadoEn time.Time `gorm:"not null" json:"evaluado_en"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (StateRecord) TableName() string { return "geofence.estado_contencion" }

// GormStore keeps containment state in Postgres so it survives restarts.
// Several instances may share it, but per-subject ordering of evaluations
// only holds inside one instance; the store itself only guarantees that a
// row is never replaced by an older evaluation.
type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) Get(ctx context.Context, key Key) (ContainmentState, bool, error) {
	var rec StateRecord
	err := s.DB.WithContext(ctx).
		First(&rec, "guardia_id = ? AND zona_id = ?", key.SubjectID, key.ZoneID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ContainmentState{}, false, nil
	}
	if err != nil {
		return ContainmentState{}, false, fmt.Errorf("read state %s/%s: %w", key.SubjectID, key.ZoneID, err)
	}
	return ContainmentState{Inside: rec.Dentro, EvaluatedAt: rec.EvaluadoEn}, true, nil
}

// notOlder keeps a row from moving back in time when an older sample lands
// late, for example from another instance.
var notOlder = clause.Where{Exprs: []clause.Expression{
	clause.Expr{SQL: "estado_contencion.evaluado_en <= EXCLUDED.evaluado_en"},
}}

func (s GormStore) Put(ctx context.Context, key Key, state ContainmentState) error {
	rec := StateRecord{
		GuardiaID:  key.SubjectID,
		ZonaID:     key.ZoneID,
		Dentro:     state.Inside,
		EvaluadoEn: state.EvaluatedAt,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guardia_id"}, {Name: "zona_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"dentro", "evaluado_en", "updated_at"}),
		Where:     notOlder,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("write state %s/%s: %w", key.SubjectID, key.ZoneID, err)
	}
	return nil
}

func (s GormStore) States(ctx context.Context, subjectID string) (map[uuid.UUID]ContainmentState, error) {
	var recs []StateRecord
	if err := s.DB.WithContext(ctx).Where("guardia_id = ?", subjectID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list states for %s: %w", subjectID, err)
	}

	out := make(map[uuid.UUID]ContainmentState, len(recs))
	for _, r := range recs {
		out[r.ZonaID] = ContainmentState{Inside: r.Dentro, EvaluatedAt: r.EvaluadoEn}
	}
	return out, nil
}
