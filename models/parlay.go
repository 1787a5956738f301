package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type ParlayStatus string

const (
	ParlayBuilding         ParlayStatus = "BUILDING"
	ParlayLocked           ParlayStatus = "LOCKED"
	ParlayWon              ParlayStatus = "WON"
	ParlayLost             ParlayStatus = "LOST"
	ParlayResolutionFailed ParlayStatus = "RESOLUTION_FAILED"
)

const (
	MinParlayLegs = 1
	MaxParlayLegs = 5
	// InsurableLegs is the smallest parlay that can carry insurance.
	InsurableLegs = 4
)

var ErrParlayInvariant = errors.New("parlay invariant violated")

type Parlay struct {
	gorm.Model
	ID                  uint `gorm:"primaryKey"`
	UserID              uint `gorm:"index:idx_parlay_user_status,priority:1"`
	User                User `gorm:"foreignKey:UserID"`
	LegCount            int
	Value               int
	Insured             bool
	InsuranceCost       int
	Status              ParlayStatus `gorm:"size:24;index:idx_parlay_user_status,priority:2;default:BUILDING"`
	LockedAt            *time.Time
	ResolvedAt          *time.Time
	LastLegEndTime      *time.Time
	ResolutionAttempts  int
	LastResolutionError string `gorm:"size:512"`
	Legs                []Leg
}

// Terminal reports whether the parlay has been resolved to WON or LOST.
func (p Parlay) Terminal() bool {
	return p.Status == ParlayWon || p.Status == ParlayLost
}

// Unresolved parlays still hold a place in their user's resolution order.
func (p Parlay) Unresolved() bool {
	return p.Status == ParlayLocked || p.Status == ParlayResolutionFailed
}

// OrderedBefore is the per-user resolution order: LastLegEndTime ascending with the
// parlay id as tie breaker. Unknown end times sort last.
func (p Parlay) OrderedBefore(o Parlay) bool {
	switch {
	case p.LastLegEndTime == nil && o.LastLegEndTime == nil:
		return p.ID < o.ID
	case p.LastLegEndTime == nil:
		return false
	case o.LastLegEndTime == nil:
		return true
	case !p.LastLegEndTime.Equal(*o.LastLegEndTime):
		return p.LastLegEndTime.Before(*o.LastLegEndTime)
	}
	return p.ID < o.ID
}

// BeforeCreate rejects parlays that break the value/insurance invariants.
func (p *Parlay) BeforeCreate(tx *gorm.DB) error {
	if p.LegCount < MinParlayLegs || p.LegCount > MaxParlayLegs {
		return fmt.Errorf("%w: leg count %d", ErrParlayInvariant, p.LegCount)
	}
	if want := 1 << (p.LegCount - 1); p.Value != want {
		return fmt.Errorf("%w: value %d for %d legs", ErrParlayInvariant, p.Value, p.LegCount)
	}
	if p.InsuranceCost < 0 {
		return fmt.Errorf("%w: negative insurance cost", ErrParlayInvariant)
	}
	if p.InsuranceCost > 0 && (!p.Insured || p.LegCount < InsurableLegs) {
		return fmt.Errorf("%w: insurance cost on uninsurable parlay", ErrParlayInvariant)
	}
	if p.Insured && p.LegCount < InsurableLegs {
		return fmt.Errorf("%w: insurance needs %d legs", ErrParlayInvariant, InsurableLegs)
	}
	if p.Status == "" {
		p.Status = ParlayBuilding
	}
	return nil
}
