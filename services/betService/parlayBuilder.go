package betService

import (
	"errors"
	"fmt"

	"streakEngine/models"
	"streakEngine/services/common"
)

var (
	ErrInsuranceNotOffered = errors.New("insurance requires at least 4 legs")
	ErrInsuranceLocked     = errors.New("insurance locked until an uninsured parlay resolves")
	ErrDuplicateGame       = errors.New("parlay has two legs on the same game")
)

// NewParlay validates a finalized leg set and prices it for the user. Leg counts
// outside [1,5] are rejected here so resolution never sees them.
func NewParlay(user models.User, legs []models.Leg, insured bool, table common.InsuranceTable) (models.Parlay, error) {
	value, err := common.ParlayValue(len(legs))
	if err != nil {
		return models.Parlay{}, err
	}

	seen := make(map[uint]bool, len(legs))
	for _, l := range legs {
		if seen[l.GameID] {
			return models.Parlay{}, fmt.Errorf("%w: game %d", ErrDuplicateGame, l.GameID)
		}
		seen[l.GameID] = true
	}

	cost := 0
	if insured {
		if len(legs) < models.InsurableLegs {
			return models.Parlay{}, ErrInsuranceNotOffered
		}
		if user.InsuranceLocked {
			return models.Parlay{}, ErrInsuranceLocked
		}
		cost = table.InsuranceCost(len(legs), user.CurrentStreak)
	}

	built := make([]models.Leg, len(legs))
	for i, l := range legs {
		l.Outcome = models.LegPending
		built[i] = l
	}

	return models.Parlay{
		UserID:        user.ID,
		LegCount:      len(legs),
		Value:         value,
		Insured:       insured,
		InsuranceCost: cost,
		Status:        models.ParlayBuilding,
		Legs:          built,
	}, nil
}
