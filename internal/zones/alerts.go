package zones

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var ErrAlertNotFound = errors.New("alert not found")

// GormAlertSink appends alerts to geofence.alertas_zona.
type GormAlertSink struct {
	DB *gorm.DB
}

func (s GormAlertSink) InsertAlert(ctx context.Context, a Alert) (Alert, error) {
	if err := a.Validate(); err != nil {
		return Alert{}, err
	}
	a.Resuelta = false
	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		return Alert{}, fmt.Errorf("insert alert %s/%s: %w", a.GuardiaID, a.ZonaID, err)
	}
	return a, nil
}

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	GuardiaID string
	ZonaIDs   []uuid.UUID
	Resuelta  *bool
	Limit     int
}

// ListAlerts returns alerts newest first.
func ListAlerts(ctx context.Context, d *gorm.DB, f AlertFilter) ([]Alert, error) {
	q := d.WithContext(ctx).Model(&Alert{})
	if f.GuardiaID != "" {
		q = q.Where("guardia_id = ?", f.GuardiaID)
	}
	if len(f.ZonaIDs) > 0 {
		ids := make([]string, len(f.ZonaIDs))
		for i, id := range f.ZonaIDs {
			ids[i] = id.String()
		}
		q = q.Where("zona_id::text = ANY(?)", pq.Array(ids))
	}
	if f.Resuelta != nil {
		q = q.Where("resuelta = ?", *f.Resuelta)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var alerts []Alert
	if err := q.Order("timestamp DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// ResolveAlert marks an alert handled. Resolving twice is a no-op.
func ResolveAlert(ctx context.Context, d *gorm.DB, id uuid.UUID) (Alert, error) {
	var alert Alert
	err := d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&alert, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
			}
			return err
		}
		if alert.Resuelta {
			return nil
		}
		alert.Resuelta = true
		return tx.Model(&alert).Update("resuelta", true).Error
	})
	if err != nil {
		return Alert{}, err
	}
	return alert, nil
}
