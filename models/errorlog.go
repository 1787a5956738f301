package models

import (
	"gorm.io/gorm"
)

// ErrorLog rows are the manual-remediation queue: permanent resolution failures
// and scheduler errors land here.
type ErrorLog struct {
	gorm.Model
	ID       uint   `gorm:"primaryKey"`
	Source   string `gorm:"size:64"`
	ParlayID *uint  `gorm:"index"`
	Message  string
}
