package model

import "time"

// IdempotencyRecord marks an external reference as settled. It is written
// once, in the same transaction as the effect it guards, and never updated.
type IdempotencyRecord struct {
	Reference string    `gorm:"primaryKey;size:160"`
	Processed bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_record" }
