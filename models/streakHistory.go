package models

import "time"

type StreakChangeType string

const (
	StreakChangeWin             StreakChangeType = "WIN"
	StreakChangeLoss            StreakChangeType = "LOSS"
	StreakChangeInsuranceLock   StreakChangeType = "INSURANCE_LOCK"
	StreakChangeInsuranceUnlock StreakChangeType = "INSURANCE_UNLOCK"
)

// StreakHistoryEntry is an append-only audit row. A user's CurrentStreak always
// equals NewStreak of their highest Seq entry.
type StreakHistoryEntry struct {
	ID           uint             `gorm:"primaryKey"`
	UserID       uint             `gorm:"not null;uniqueIndex:idx_history_user_seq,priority:1"`
	Seq          uint             `gorm:"not null;uniqueIndex:idx_history_user_seq,priority:2"`
	ParlayID     uint             `gorm:"not null;uniqueIndex:idx_history_parlay_change,priority:1"`
	OldStreak    int              `gorm:"not null"`
	NewStreak    int              `gorm:"not null"`
	ChangeAmount int              `gorm:"not null"`
	ChangeType   StreakChangeType `gorm:"size:24;not null;uniqueIndex:idx_history_parlay_change,priority:2"`
	At           time.Time        `gorm:"not null"`
}

func (StreakHistoryEntry) TableName() string {
	return "streak_history"
}
