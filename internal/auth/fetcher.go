package auth

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vigilia/guard-backend/internal/db"
	"github.com/vigilia/guard-backend/internal/utils"
)

// SessionInfo resolves session tokens against the provider tables and links
// the account to a guard, by user_id first and by email second.
type SessionInfo struct {
	DB *gorm.DB
}

func (si SessionInfo) conn() *gorm.DB {
	if si.DB != nil {
		return si.DB
	}
	return db.DB
}

func (si SessionInfo) FindSubjectByToken(token string) (utils.SubjectData, error) {
	d := si.conn()

	var session Session
	if err := d.First(&session, "session_id = ?", token).Error; err != nil {
		return utils.SubjectData{}, err
	}

	var account Account
	if err := d.First(&account, "user_id = ?", session.UserID).Error; err != nil {
		return utils.SubjectData{}, fmt.Errorf("account for session: %w", err)
	}

	guardID, err := findGuardID(d, account)
	if err != nil {
		return utils.SubjectData{}, err
	}

	return utils.SubjectData{
		UserID:    session.UserID,
		GuardID:   guardID,
		Role:      account.Role,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// findGuardID returns "" when the account is not a guard.
func findGuardID(d *gorm.DB, account Account) (string, error) {
	var ids []string
	err := d.Raw(
		`SELECT id::text FROM geofence.guardias WHERE user_id = ? LIMIT 1`,
		account.UserID,
	).Scan(&ids).Error
	if err != nil {
		return "", fmt.Errorf("guard by user_id: %w", err)
	}
	if len(ids) > 0 {
		return ids[0], nil
	}

	if account.Email == "" {
		return "", nil
	}
	err = d.Raw(
		`SELECT id::text FROM geofence.guardias WHERE lower(email) = lower(?) LIMIT 1`,
		account.Email,
	).Scan(&ids).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("guard by email: %w", err)
	}
	if len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
