package db

import "gorm.io/gorm"

// GeofenceSchema holds zones, assignments, alerts, guards and containment state
const GeofenceSchema = "geofence"

func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}
