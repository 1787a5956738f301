package betService

import (
	"sort"
	"time"

	"streakEngine/models"
)

type InsuranceState string

const (
	InsuranceUnlocked InsuranceState = "UNLOCKED"
	InsuranceLocked   InsuranceState = "LOCKED"
)

type InsuranceTransition string

const (
	InsuranceNoChange InsuranceTransition = ""
	InsuranceLock     InsuranceTransition = "LOCK"
	InsuranceUnlock   InsuranceTransition = "UNLOCK"
)

// ResolutionRecord is one resolved parlay as seen by the insurance machine.
type ResolutionRecord struct {
	ParlayID   uint
	Insured    bool
	Won        bool
	ResolvedAt time.Time
}

// InsuranceMachine tracks a single user's insurance eligibility. It only depends on
// the order in which that user's parlays resolved.
type InsuranceMachine struct {
	State             InsuranceState
	LastInsuredLossAt *time.Time
}

// ReplayInsurance folds a user's resolution history into the machine state.
func ReplayInsurance(history []ResolutionRecord) InsuranceMachine {
	records := make([]ResolutionRecord, len(history))
	copy(records, history)
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ResolvedAt.Equal(records[j].ResolvedAt) {
			return records[i].ResolvedAt.Before(records[j].ResolvedAt)
		}
		return records[i].ParlayID < records[j].ParlayID
	})

	m := InsuranceMachine{State: InsuranceUnlocked}
	for _, r := range records {
		m, _ = m.Step(r)
	}
	return m
}

// Step applies one resolution and returns the new machine and the transition it caused.
// An insured loss locks. An uninsured resolution unlocks only when it resolved strictly
// after the most recent insured loss.
func (m InsuranceMachine) Step(r ResolutionRecord) (InsuranceMachine, InsuranceTransition) {
	if r.Insured {
		if r.Won {
			return m, InsuranceNoChange
		}
		at := r.ResolvedAt
		m.LastInsuredLossAt = &at
		if m.State == InsuranceLocked {
			return m, InsuranceNoChange
		}
		m.State = InsuranceLocked
		return m, InsuranceLock
	}

	if m.State != InsuranceLocked {
		return m, InsuranceNoChange
	}
	if m.LastInsuredLossAt != nil && !r.ResolvedAt.After(*m.LastInsuredLossAt) {
		return m, InsuranceNoChange
	}
	m.State = InsuranceUnlocked
	return m, InsuranceUnlock
}

// ResolutionRecordFor builds the record for an already resolved parlay.
func ResolutionRecordFor(p models.Parlay) (ResolutionRecord, bool) {
	if !p.Terminal() || p.ResolvedAt == nil {
		return ResolutionRecord{}, false
	}
	return ResolutionRecord{
		ParlayID:   p.ID,
		Insured:    p.Insured,
		Won:        p.Status == models.ParlayWon,
		ResolvedAt: *p.ResolvedAt,
	}, true
}
