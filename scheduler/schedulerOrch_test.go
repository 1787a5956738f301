package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"streakEngine/services/resolutionService"
)

func newMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})

	return gormDB, mock, err
}

type nopSubmitter struct{}

func (nopSubmitter) Submit(context.Context, []resolutionService.Item) int { return 0 }

func TestLogJobError(t *testing.T) {
	t.Run("stores the failure", func(t *testing.T) {
		db, mock, err := newMockDB()
		if err != nil {
			t.Fatalf("Failed to create mock DB: %v", err)
		}
		defer func() {
			sqlDB, _ := db.DB()
			sqlDB.Close()
		}()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `error_logs`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		logJobError(db, zap.NewNop(), "CheckGameEnd", errors.New("boom"))

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("database down does not panic", func(t *testing.T) {
		db, mock, err := newMockDB()
		if err != nil {
			t.Fatalf("Failed to create mock DB: %v", err)
		}
		defer func() {
			sqlDB, _ := db.DB()
			sqlDB.Close()
		}()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `error_logs`").WillReturnError(errors.New("connection refused"))
		mock.ExpectRollback()

		logJobError(db, zap.NewNop(), "CheckGameStart", errors.New("boom"))

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})
}

func TestSetupCronRejectsBadSpec(t *testing.T) {
	db, _, err := newMockDB()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}

	_, err = SetupCron(context.Background(), db, nopSubmitter{}, zap.NewNop(), nil, Specs{
		LockScan:       "every now and then",
		ResolutionScan: "*/15 * * * * *",
	})
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestSetupCronRegistersBothScans(t *testing.T) {
	db, _, err := newMockDB()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}

	c, err := SetupCron(context.Background(), db, nopSubmitter{}, zap.NewNop(), nil, Specs{
		LockScan:       "0 0 0 1 1 *",
		ResolutionScan: "0 0 0 1 1 *",
	})
	if err != nil {
		t.Fatalf("SetupCron: %v", err)
	}
	defer c.Stop()

	if n := len(c.Entries()); n != 2 {
		t.Errorf("registered %d jobs, want 2", n)
	}
}
