package model

import "time"

// APIKey stores only the SHA-256 hash of the issued key.
type APIKey struct {
	ID          uint64     `gorm:"primaryKey"`
	UserID      uint64     `gorm:"not null;index"`
	KeyHash     string     `gorm:"size:64;not null;uniqueIndex"`
	Prefix      string     `gorm:"size:16;not null"`
	Name        string     `gorm:"size:128"`
	Permissions []string   `gorm:"serializer:json;type:text;not null"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	Revoked     bool       `gorm:"not null;default:false"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

func (APIKey) TableName() string { return "api_key" }

// Active reports whether the key can still authenticate at now.
func (k APIKey) Active(now time.Time) bool {
	if k.Revoked {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}
