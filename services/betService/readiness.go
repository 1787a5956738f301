package betService

import (
	"time"

	"streakEngine/models"
)

// Ready reports whether every loaded leg of a locked parlay has been graded. A
// leg count that disagrees with the stored legs does not hold the parlay back:
// the engine fails it with an alert instead of leaving the user stuck.
func Ready(p models.Parlay) bool {
	if p.Status != models.ParlayLocked || len(p.Legs) == 0 {
		return false
	}
	for _, l := range p.Legs {
		if !l.Graded() {
			return false
		}
	}
	return true
}

// LastLegEndTime is the latest end time across the parlay's games, or nil while
// any game is still open. Legs must be loaded with their games.
func LastLegEndTime(p models.Parlay) *time.Time {
	if len(p.Legs) == 0 {
		return nil
	}
	var last time.Time
	for _, l := range p.Legs {
		end, ok := l.Game.EndTime()
		if !ok {
			return nil
		}
		if end.After(last) {
			last = end
		}
	}
	last = last.UTC()
	return &last
}

// FirstGameStart is the earliest start across the parlay's games and whether any
// of them has already left the scheduled state.
func FirstGameStart(p models.Parlay) (time.Time, bool) {
	var first time.Time
	started := false
	for i, l := range p.Legs {
		if i == 0 || l.Game.StartTime.Before(first) {
			first = l.Game.StartTime
		}
		if l.Game.Status != "" && l.Game.Status != models.GameScheduled {
			started = true
		}
	}
	return first, started
}
