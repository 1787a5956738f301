package ledgerService

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"streakEngine/models"
)

var (
	ErrNegativeStreak = errors.New("streak cannot go below zero")
	ErrLedgerDrift    = errors.New("user streak does not match ledger")
	ErrUnknownChange  = errors.New("unknown streak change type")
)

// Timestamps are kept at millisecond precision, the finest MySQL DATETIME(3) keeps.
const tick = time.Millisecond

// Mutation is one requested change to a user's streak state.
type Mutation struct {
	ParlayID   uint
	ChangeType models.StreakChangeType
	NewStreak  int
	At         time.Time
}

// Ledger is the only writer of User.CurrentStreak, LongestStreak and InsuranceLocked.
// Every write appends a StreakHistoryEntry in the same transaction.
type Ledger struct {
	log *zap.Logger
}

func NewLedger(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{log: log}
}

// LockUser loads the user row FOR UPDATE. Everything that mutates one user's
// streak goes through this lock, which serializes writers across processes.
func (l *Ledger) LockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	return &user, nil
}

func lastEntry(tx *gorm.DB, userID uint) (*models.StreakHistoryEntry, error) {
	var entries []models.StreakHistoryEntry
	if err := tx.Where("user_id = ?", userID).Order("seq DESC").Limit(1).Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// NextTimestamp returns the earliest timestamp at or after now that keeps the
// user's history strictly increasing.
func (l *Ledger) NextTimestamp(tx *gorm.DB, userID uint, now time.Time) (time.Time, error) {
	at := now.UTC().Truncate(tick)
	last, err := lastEntry(tx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("read last history entry: %w", err)
	}
	if last != nil && !at.After(last.At.UTC()) {
		at = last.At.UTC().Add(tick)
	}
	return at, nil
}

// Append applies m to user inside tx and records it. user must have been loaded
// with LockUser in the same transaction; it is updated in place.
func (l *Ledger) Append(tx *gorm.DB, user *models.User, m Mutation) (models.StreakHistoryEntry, error) {
	if m.NewStreak < 0 {
		return models.StreakHistoryEntry{}, fmt.Errorf("%w: %d", ErrNegativeStreak, m.NewStreak)
	}

	locked := user.InsuranceLocked
	switch m.ChangeType {
	case models.StreakChangeWin, models.StreakChangeLoss:
	case models.StreakChangeInsuranceLock:
		locked = true
	case models.StreakChangeInsuranceUnlock:
		locked = false
	default:
		return models.StreakHistoryEntry{}, fmt.Errorf("%w: %q", ErrUnknownChange, m.ChangeType)
	}

	last, err := lastEntry(tx, user.ID)
	if err != nil {
		return models.StreakHistoryEntry{}, fmt.Errorf("read last history entry: %w", err)
	}
	if last != nil && last.NewStreak != user.CurrentStreak {
		return models.StreakHistoryEntry{}, fmt.Errorf("%w: user %d has %d, ledger has %d",
			ErrLedgerDrift, user.ID, user.CurrentStreak, last.NewStreak)
	}

	at := m.At.UTC().Truncate(tick)
	var seq uint = 1
	if last != nil {
		seq = last.Seq + 1
		if !at.After(last.At.UTC()) {
			at = last.At.UTC().Add(tick)
		}
	}

	longest := user.LongestStreak
	if m.NewStreak > longest {
		longest = m.NewStreak
	}

	res := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"current_streak":   m.NewStreak,
		"longest_streak":   longest,
		"insurance_locked": locked,
	})
	if res.Error != nil {
		return models.StreakHistoryEntry{}, fmt.Errorf("update user %d: %w", user.ID, res.Error)
	}

	entry := models.StreakHistoryEntry{
		UserID:       user.ID,
		Seq:          seq,
		ParlayID:     m.ParlayID,
		OldStreak:    user.CurrentStreak,
		NewStreak:    m.NewStreak,
		ChangeAmount: m.NewStreak - user.CurrentStreak,
		ChangeType:   m.ChangeType,
		At:           at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return models.StreakHistoryEntry{}, fmt.Errorf("append history for user %d: %w", user.ID, err)
	}

	user.CurrentStreak = m.NewStreak
	user.LongestStreak = longest
	user.InsuranceLocked = locked

	l.log.Debug("streak ledger append",
		zap.Uint("user_id", user.ID),
		zap.Uint("parlay_id", m.ParlayID),
		zap.String("change", string(m.ChangeType)),
		zap.Int("old", entry.OldStreak),
		zap.Int("new", entry.NewStreak),
		zap.Uint("seq", seq),
	)
	return entry, nil
}

// History returns a user's entries oldest first.
func (l *Ledger) History(db *gorm.DB, userID uint) ([]models.StreakHistoryEntry, error) {
	var entries []models.StreakHistoryEntry
	err := db.Where("user_id = ?", userID).Order("seq ASC").Find(&entries).Error
	return entries, err
}
