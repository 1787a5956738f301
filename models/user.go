package models

import "gorm.io/gorm"

// User is the streak holder. CurrentStreak, LongestStreak and InsuranceLocked are
// written only through the streak ledger.
type User struct {
	gorm.Model
	ID              uint `gorm:"primaryKey"`
	Username        *string
	CurrentStreak   int  `gorm:"not null;default:0"`
	LongestStreak   int  `gorm:"not null;default:0"`
	InsuranceLocked bool `gorm:"not null;default:false"`
}
