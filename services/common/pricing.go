package common

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"streakEngine/models"
)

var ErrInvalidLegCount = errors.New("invalid leg count")

var parlayValues = map[int]int{1: 1, 2: 2, 3: 4, 4: 8, 5: 16}

// ParlayValue is the streak credit for a parlay of legCount winning legs.
func ParlayValue(legCount int) (int, error) {
	v, ok := parlayValues[legCount]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLegCount, legCount)
	}
	return v, nil
}

// StreakBracket applies Multiplier to streaks at or above Min, up to the next bracket.
type StreakBracket struct {
	Min        int     `yaml:"min"`
	Multiplier float64 `yaml:"multiplier"`
}

// InsuranceTable holds the static insurance pricing inputs.
type InsuranceTable struct {
	BaseCost map[int]int     `yaml:"base_cost"`
	Brackets []StreakBracket `yaml:"brackets"`
}

func DefaultInsuranceTable() InsuranceTable {
	return InsuranceTable{
		BaseCost: map[int]int{4: 3, 5: 5},
		Brackets: []StreakBracket{
			{Min: 0, Multiplier: 1.0},
			{Min: 15, Multiplier: 1.67},
			{Min: 25, Multiplier: 2.0},
			{Min: 35, Multiplier: 2.67},
			{Min: 45, Multiplier: 3.0},
		},
	}
}

// Validate sorts the brackets and checks that every streak maps to a multiplier.
func (t *InsuranceTable) Validate() error {
	if len(t.Brackets) == 0 {
		return errors.New("insurance table: no streak brackets")
	}
	sort.Slice(t.Brackets, func(i, j int) bool { return t.Brackets[i].Min < t.Brackets[j].Min })
	if t.Brackets[0].Min != 0 {
		return fmt.Errorf("insurance table: first bracket starts at %d, want 0", t.Brackets[0].Min)
	}
	for i, b := range t.Brackets {
		if b.Multiplier <= 0 {
			return fmt.Errorf("insurance table: bracket %d has multiplier %v", i, b.Multiplier)
		}
		if i > 0 && b.Min == t.Brackets[i-1].Min {
			return fmt.Errorf("insurance table: duplicate bracket at %d", b.Min)
		}
	}
	for legs := models.InsurableLegs; legs <= models.MaxParlayLegs; legs++ {
		if c, ok := t.BaseCost[legs]; !ok || c < 0 {
			return fmt.Errorf("insurance table: missing base cost for %d legs", legs)
		}
	}
	return nil
}

func (t InsuranceTable) multiplier(streak int) float64 {
	m := 1.0
	for _, b := range t.Brackets {
		if streak < b.Min {
			break
		}
		m = b.Multiplier
	}
	return m
}

// InsuranceCost prices insurance for a parlay against the buyer's streak at purchase time.
func (t InsuranceTable) InsuranceCost(legCount, streak int) int {
	if legCount < models.InsurableLegs {
		return 0
	}
	base, ok := t.BaseCost[legCount]
	if !ok {
		return 0
	}
	return int(math.Round(float64(base) * t.multiplier(streak)))
}

// InsuranceCost prices against the default table.
func InsuranceCost(legCount, streak int) int {
	return DefaultInsuranceTable().InsuranceCost(legCount, streak)
}
