package auth

import "time"

// Session is issued by the external auth provider. This service only reads it.
type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;index" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

// Account is the provider's user row. Email links an account to a guard
// created before the account existed.
type Account struct {
	UserID string `gorm:"primaryKey" json:"user_id"`
	Email  string `gorm:"index" json:"email"`
	Role   string `gorm:"default:'guardia'" json:"role"`
}

func (Session) TableName() string { return "app_auth.sessions" }
func (Account) TableName() string { return "app_auth.users" }
