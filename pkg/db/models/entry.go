package models

import (
	"time"

	"gorm.io/gorm"
)

// Entry is a single key/value item, mirroring one browser storage slot.
type Entry struct {
	Name  string `gorm:"primaryKey;type:text"`
	Value string `gorm:"type:text;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time      `gorm:"index"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
