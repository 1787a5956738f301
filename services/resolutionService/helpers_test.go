package resolutionService

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"streakEngine/database"
	"streakEngine/models"
	"streakEngine/services/common"
	"streakEngine/services/ledgerService"
)

var base = time.Date(2026, 9, 6, 17, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEngine(db *gorm.DB, cfg Config) *Engine {
	var mu sync.Mutex
	clock := base.Add(24 * time.Hour)
	return NewEngine(db, ledgerService.NewLedger(nil), nil, nil, nil, cfg).WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBudget = 3
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	return cfg
}

func createUser(t *testing.T, db *gorm.DB, streak int, locked bool) models.User {
	t.Helper()
	user := models.User{CurrentStreak: streak, LongestStreak: streak, InsuranceLocked: locked}
	require.NoError(t, db.Create(&user).Error)
	return user
}

type parlaySpec struct {
	outcomes []models.LegOutcome
	insured  bool
	cost     int
	status   models.ParlayStatus
	endedAt  time.Time
	legCount int // defaults to len(outcomes)
}

// createParlay stores a parlay whose games all ended at spec.endedAt, except for
// pending legs, whose games are still running.
func createParlay(t *testing.T, db *gorm.DB, user models.User, spec parlaySpec) models.Parlay {
	t.Helper()

	legCount := spec.legCount
	if legCount == 0 {
		legCount = len(spec.outcomes)
	}
	value, err := common.ParlayValue(legCount)
	require.NoError(t, err)

	status := spec.status
	if status == "" {
		status = models.ParlayLocked
	}

	var legs []models.Leg
	allEnded := true
	for _, o := range spec.outcomes {
		game := models.Game{StartTime: spec.endedAt.Add(-3 * time.Hour), Status: models.GameCompleted}
		if o == models.LegPending {
			game.Status = models.GameInProgress
			allEnded = false
		} else {
			ended := spec.endedAt
			game.EndedAt = &ended
		}
		require.NoError(t, db.Create(&game).Error)
		legs = append(legs, models.Leg{GameID: game.ID, Outcome: o})
	}

	locked := spec.endedAt.Add(-3 * time.Hour)
	parlay := models.Parlay{
		UserID:        user.ID,
		LegCount:      legCount,
		Value:         value,
		Insured:       spec.insured,
		InsuranceCost: spec.cost,
		Status:        status,
		LockedAt:      &locked,
		Legs:          legs,
	}
	if allEnded {
		end := spec.endedAt
		parlay.LastLegEndTime = &end
	}
	require.NoError(t, db.Create(&parlay).Error)
	return parlay
}

func wins(n int) []models.LegOutcome {
	out := make([]models.LegOutcome, n)
	for i := range out {
		out[i] = models.LegWin
	}
	return out
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return user
}

func reloadParlay(t *testing.T, db *gorm.DB, id uint) models.Parlay {
	t.Helper()
	var parlay models.Parlay
	require.NoError(t, db.First(&parlay, id).Error)
	return parlay
}

func history(t *testing.T, db *gorm.DB, userID uint) []models.StreakHistoryEntry {
	t.Helper()
	entries, err := ledgerService.NewLedger(nil).History(db, userID)
	require.NoError(t, err)
	return entries
}
