package model

import "time"

// Wallet is the custodial balance of exactly one user. Balance is in kobo.
type Wallet struct {
	ID           uint64    `gorm:"primaryKey;column:id"`
	UserID       uint64    `gorm:"not null;uniqueIndex"`
	WalletNumber string    `gorm:"size:13;not null;uniqueIndex"`
	Balance      int64     `gorm:"not null;default:0;check:balance >= 0"`
	Version      uint64    `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallet" }
