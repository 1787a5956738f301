package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"streakEngine/models"
	"streakEngine/services/betService"
)

const lastLegEndBackfill = "backfill_last_leg_end_time"

// RunLastLegEndTimeBackfill stamps LastLegEndTime on unresolved parlays created
// before the column existed, so the first resolution scan orders them correctly.
// It runs once per database.
func RunLastLegEndTimeBackfill(db *gorm.DB, log *zap.Logger) error {
	var existingMigration models.Migration
	result := db.Where("name = ?", lastLegEndBackfill).First(&existingMigration)
	if result.Error == nil && existingMigration.ID != 0 {
		log.Debug("migration already executed, skipping", zap.String("migration", lastLegEndBackfill))
		return nil
	}
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("error checking migration %s: %w", lastLegEndBackfill, result.Error)
	}

	log.Info("starting migration", zap.String("migration", lastLegEndBackfill))

	var parlays []models.Parlay
	err := db.Preload("Legs.Game").
		Where("last_leg_end_time IS NULL AND resolved_at IS NULL AND status IN ?",
			[]models.ParlayStatus{models.ParlayLocked, models.ParlayResolutionFailed}).
		Find(&parlays).Error
	if err != nil {
		return fmt.Errorf("error fetching parlays: %w", err)
	}

	updated := 0
	for _, parlay := range parlays {
		end := betService.LastLegEndTime(parlay)
		if end == nil {
			continue
		}
		if err := db.Model(&models.Parlay{}).Where("id = ?", parlay.ID).Update("last_leg_end_time", *end).Error; err != nil {
			log.Warn("could not backfill parlay", zap.Uint("parlay_id", parlay.ID), zap.Error(err))
			continue
		}
		updated++
	}

	migration := models.Migration{
		Name:       lastLegEndBackfill,
		Affected:   updated,
		ExecutedAt: time.Now().UTC(),
	}
	if err := db.Create(&migration).Error; err != nil {
		return fmt.Errorf("error marking migration as complete: %w", err)
	}

	log.Info("migration completed", zap.String("migration", lastLegEndBackfill), zap.Int("updated", updated))
	return nil
}
