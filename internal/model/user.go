package model

import "time"

type User struct {
	ID        uint64    `gorm:"primaryKey"`
	Email     string    `gorm:"size:255;not null;uniqueIndex"`
	Name      string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "app_user" }
