package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"streakEngine/logger"
	"streakEngine/metrics"
	"streakEngine/models"
	"streakEngine/scheduler/scheduler_jobs"
)

type Specs struct {
	LockScan       string
	ResolutionScan string
}

// SetupCron registers the lock and resolution scans and starts the scheduler. A
// scan still running when its next tick fires is skipped, not stacked.
func SetupCron(ctx context.Context, db *gorm.DB, sub scheduler_jobs.Submitter, log *zap.Logger, m *metrics.Metrics, specs Specs) (*cron.Cron, error) {
	cl := logger.Cron(log)
	cronService := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err := cronService.AddFunc(specs.LockScan, func() {
		locked, err := scheduler_jobs.CheckGameStart(db, log, m, time.Now())
		if err != nil {
			logJobError(db, log, "CheckGameStart", err)
			return
		}
		if locked > 0 {
			log.Info("lock scan", zap.Int("locked", locked))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule lock scan %q: %w", specs.LockScan, err)
	}

	_, err = cronService.AddFunc(specs.ResolutionScan, func() {
		scan, err := scheduler_jobs.CheckGameEnd(ctx, db, sub, log, m)
		if err != nil {
			logJobError(db, log, "CheckGameEnd", err)
			return
		}
		if scan.Released > 0 || scan.Withheld > 0 {
			log.Info("resolution scan",
				zap.Int("ready", scan.Ready),
				zap.Int("released", scan.Released),
				zap.Int("withheld", scan.Withheld),
				zap.Int("refreshed", scan.Refreshed),
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule resolution scan %q: %w", specs.ResolutionScan, err)
	}

	cronService.Start()
	return cronService, nil
}

func logJobError(db *gorm.DB, log *zap.Logger, job string, err error) {
	log.Error("scheduled job failed", zap.String("job", job), zap.Error(err))
	errLog := models.ErrorLog{
		Source:  "CRON " + job,
		Message: fmt.Sprintf("%v", err),
	}
	if dbErr := db.Create(&errLog).Error; dbErr != nil {
		log.Warn("could not store cron error", zap.Error(dbErr))
	}
}
