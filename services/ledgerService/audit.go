package ledgerService

import (
	"fmt"

	"gorm.io/gorm"

	"streakEngine/models"
)

// Violation is a ledger inconsistency found by Audit.
type Violation struct {
	UserID  uint
	Seq     uint
	Problem string
}

func (v Violation) String() string {
	return fmt.Sprintf("user %d seq %d: %s", v.UserID, v.Seq, v.Problem)
}

// Audit replays a user's history and checks it against the user row: sequence
// and timestamps strictly increase, each entry starts where the previous ended,
// the latest entry matches CurrentStreak and LongestStreak covers every value seen.
func (l *Ledger) Audit(db *gorm.DB, userID uint) ([]Violation, error) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	entries, err := l.History(db, userID)
	if err != nil {
		return nil, fmt.Errorf("load history for user %d: %w", userID, err)
	}

	var out []Violation
	add := func(seq uint, format string, args ...interface{}) {
		out = append(out, Violation{UserID: userID, Seq: seq, Problem: fmt.Sprintf(format, args...)})
	}

	peak := 0
	for i, e := range entries {
		if e.NewStreak < 0 {
			add(e.Seq, "negative streak %d", e.NewStreak)
		}
		if e.ChangeAmount != e.NewStreak-e.OldStreak {
			add(e.Seq, "change %d does not match %d -> %d", e.ChangeAmount, e.OldStreak, e.NewStreak)
		}
		if e.NewStreak > peak {
			peak = e.NewStreak
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.Seq != prev.Seq+1 {
			add(e.Seq, "sequence gap after %d", prev.Seq)
		}
		if !e.At.After(prev.At) {
			add(e.Seq, "timestamp %s not after %s", e.At.UTC(), prev.At.UTC())
		}
		if e.OldStreak != prev.NewStreak {
			add(e.Seq, "starts at %d, previous entry ended at %d", e.OldStreak, prev.NewStreak)
		}
	}

	if n := len(entries); n > 0 {
		last := entries[n-1]
		if last.NewStreak != user.CurrentStreak {
			add(last.Seq, "current streak %d, ledger says %d", user.CurrentStreak, last.NewStreak)
		}
	}
	if user.LongestStreak < peak {
		add(0, "longest streak %d below observed %d", user.LongestStreak, peak)
	}
	return out, nil
}

// AuditAll audits every user that has ledger history.
func (l *Ledger) AuditAll(db *gorm.DB) ([]Violation, error) {
	var userIDs []uint
	if err := db.Model(&models.StreakHistoryEntry{}).Distinct("user_id").Pluck("user_id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("list ledger users: %w", err)
	}
	var out []Violation
	for _, id := range userIDs {
		v, err := l.Audit(db, id)
		if err != nil {
			return out, err
		}
		out = append(out, v...)
	}
	return out, nil
}
