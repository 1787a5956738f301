package models

import (
	"time"

	"gorm.io/gorm"
)

// Migration marks a once-only data migration as done. Affected is the number of
// rows it changed.
type Migration struct {
	gorm.Model
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex;size:255"`
	Affected   int
	ExecutedAt time.Time
}
