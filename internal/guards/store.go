package guards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrGuardNotFound = errors.New("guard not found")

// GuardStore records a guard's last reported position.
type GuardStore interface {
	UpdatePosition(ctx context.Context, guardID string, lat, lon float64, at time.Time) (Guard, error)
}

type GormGuardStore struct {
	DB *gorm.DB
}

func (s GormGuardStore) UpdatePosition(ctx context.Context, guardID string, lat, lon float64, at time.Time) (Guard, error) {
	res := s.DB.WithContext(ctx).Model(&Guard{}).
		Where("id = ?", guardID).
		Updates(map[string]interface{}{
			"latitud":              lat,
			"longitud":             lon,
			"ultima_actualizacion": at,
		})
	if res.Error != nil {
		return Guard{}, fmt.Errorf("update position for %s: %w", guardID, res.Error)
	}
	if res.RowsAffected == 0 {
		return Guard{}, fmt.Errorf("%w: %s", ErrGuardNotFound, guardID)
	}

	var g Guard
	if err := s.DB.WithContext(ctx).First(&g, "id = ?", guardID).Error; err != nil {
		return Guard{}, fmt.Errorf("reload guard %s: %w", guardID, err)
	}
	return g, nil
}
