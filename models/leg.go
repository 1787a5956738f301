package models

import "gorm.io/gorm"

type LegOutcome string

const (
	LegPending LegOutcome = "pending"
	LegWin     LegOutcome = "win"
	LegLoss    LegOutcome = "loss"
	LegPush    LegOutcome = "push"
	LegVoid    LegOutcome = "void"
)

// Leg is a single wager on one game. Outcome is graded once, externally.
type Leg struct {
	gorm.Model
	ID       uint       `gorm:"primaryKey"`
	ParlayID uint       `gorm:"index"`
	GameID   uint       `gorm:"index"`
	Game     Game       `gorm:"foreignKey:GameID"`
	Pick     string     `gorm:"size:64"`
	Outcome  LegOutcome `gorm:"size:16;default:pending"`
}

func (l Leg) Graded() bool {
	return l.Outcome != "" && l.Outcome != LegPending
}
