package models

import (
	"time"

	"gorm.io/gorm"
)

type GameStatus string

const (
	GameScheduled  GameStatus = "scheduled"
	GameInProgress GameStatus = "in_progress"
	GameCompleted  GameStatus = "completed"
	GamePostponed  GameStatus = "postponed"
	GameCanceled   GameStatus = "canceled"
)

// Game is owned by the ingestion side. The engine only reads it.
type Game struct {
	gorm.Model
	ID         uint       `gorm:"primaryKey"`
	ExternalID *string    `gorm:"size:64"`
	StartTime  time.Time  `gorm:"index"`
	Status     GameStatus `gorm:"size:16;default:scheduled"`
	HomeScore  *int
	AwayScore  *int
	EndedAt    *time.Time
}

// EndTime is the moment the game stopped counting towards a parlay. Completed
// games report EndedAt; postponed and canceled games fall back to their start
// time when ingestion did not stamp one.
func (g Game) EndTime() (time.Time, bool) {
	if g.EndedAt != nil {
		return *g.EndedAt, true
	}
	switch g.Status {
	case GamePostponed, GameCanceled:
		return g.StartTime, true
	}
	return time.Time{}, false
}
