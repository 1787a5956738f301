package scheduler_jobs

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"streakEngine/metrics"
	"streakEngine/models"
	"streakEngine/services/betService"
)

// CheckGameStart locks every BUILDING parlay whose first game has started. It
// returns how many parlays it locked.
func CheckGameStart(db *gorm.DB, log *zap.Logger, m *metrics.Metrics, now time.Time) (locked int, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered in CheckGameStart", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic recovered in CheckGameStart: %v", r)
		}
	}()
	start := time.Now()
	defer func() { m.ObserveScan("lock", time.Since(start).Seconds()) }()

	var parlayList []models.Parlay
	result := db.Preload("Legs.Game").Where("status = ?", models.ParlayBuilding).Find(&parlayList)
	if result.Error != nil {
		return 0, result.Error
	}

	now = now.UTC()
	for _, parlay := range parlayList {
		if len(parlay.Legs) == 0 {
			continue
		}
		first, started := betService.FirstGameStart(parlay)
		if !started && now.Before(first) {
			continue
		}

		res := db.Model(&models.Parlay{}).
			Where("id = ? AND status = ?", parlay.ID, models.ParlayBuilding).
			Updates(map[string]interface{}{
				"status":    models.ParlayLocked,
				"locked_at": now,
			})
		if res.Error != nil {
			return locked, fmt.Errorf("lock parlay %d: %w", parlay.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			locked++
			log.Debug("parlay locked", zap.Uint("parlay_id", parlay.ID), zap.Time("first_game", first))
		}
	}

	m.Locked(locked)
	return locked, nil
}
