package scheduler_jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"streakEngine/metrics"
	"streakEngine/models"
	"streakEngine/services/betService"
	"streakEngine/services/resolutionService"
)

// Submitter takes ready parlays for ordered resolution.
type Submitter interface {
	Submit(ctx context.Context, items []resolutionService.Item) int
}

type ScanResult struct {
	Refreshed int // LastLegEndTime values filled in
	Ready     int // LOCKED parlays with every leg graded
	Released  int // handed to the orderer
	Withheld  int // ready but behind an earlier unresolved parlay
}

// CheckGameEnd finds LOCKED parlays whose legs are all graded and releases them
// per user in resolution order. A user's release stops at the first parlay that
// is not ready or is RESOLUTION_FAILED.
func CheckGameEnd(ctx context.Context, db *gorm.DB, sub Submitter, log *zap.Logger, m *metrics.Metrics) (scan ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered in CheckGameEnd", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic recovered in CheckGameEnd: %v", r)
		}
	}()
	start := time.Now()
	defer func() { m.ObserveScan("resolution", time.Since(start).Seconds()) }()

	var parlayList []models.Parlay
	result := db.WithContext(ctx).Preload("Legs.Game").
		Where("resolved_at IS NULL AND status IN ?", []models.ParlayStatus{models.ParlayLocked, models.ParlayResolutionFailed}).
		Find(&parlayList)
	if result.Error != nil {
		return scan, result.Error
	}

	byUser := make(map[uint][]models.Parlay)
	for _, parlay := range parlayList {
		if parlay.Status == models.ParlayLocked && parlay.LastLegEndTime == nil {
			if end := betService.LastLegEndTime(parlay); end != nil {
				res := db.WithContext(ctx).Model(&models.Parlay{}).
					Where("id = ? AND last_leg_end_time IS NULL", parlay.ID).
					Update("last_leg_end_time", *end)
				if res.Error != nil {
					return scan, fmt.Errorf("refresh last leg end for parlay %d: %w", parlay.ID, res.Error)
				}
				parlay.LastLegEndTime = end
				scan.Refreshed++
			}
		}
		byUser[parlay.UserID] = append(byUser[parlay.UserID], parlay)
	}

	userIDs := make([]uint, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	var items []resolutionService.Item
	for _, userID := range userIDs {
		list := byUser[userID]
		sort.Slice(list, func(i, j int) bool { return list[i].OrderedBefore(list[j]) })

		blocked := false
		for _, parlay := range list {
			ready := betService.Ready(parlay)
			if ready {
				scan.Ready++
			}
			if blocked {
				if ready {
					scan.Withheld++
				}
				continue
			}
			if !ready {
				blocked = true
				continue
			}
			items = append(items, resolutionService.Item{
				ParlayID:       parlay.ID,
				UserID:         parlay.UserID,
				LastLegEndTime: parlay.LastLegEndTime,
			})
		}
	}

	scan.Released = len(items)
	if len(items) > 0 {
		sub.Submit(ctx, items)
	}
	m.Blocked(scan.Withheld)
	if scan.Withheld > 0 {
		log.Info("ready parlays withheld behind earlier unresolved parlays", zap.Int("withheld", scan.Withheld))
	}
	return scan, nil
}
