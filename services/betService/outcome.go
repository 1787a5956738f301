package betService

import (
	"fmt"
	"sort"
	"strings"

	"streakEngine/models"
)

type Outcome string

const (
	OutcomeWin           Outcome = "WIN"
	OutcomeLoss          Outcome = "LOSS"
	OutcomeIndeterminate Outcome = "INDETERMINATE"
)

// PushPolicy decides what a push or void leg does to its parlay.
type PushPolicy string

const (
	// PushAsLoss grades push/void legs as losses. This is the default.
	PushAsLoss PushPolicy = "loss"
	// PushVoidsLeg drops push/void legs and prices the parlay on the legs left.
	PushVoidsLeg PushPolicy = "void_leg"
)

func ParsePushPolicy(s string) (PushPolicy, error) {
	switch p := PushPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PushAsLoss, nil
	case PushAsLoss, PushVoidsLeg:
		return p, nil
	}
	return "", fmt.Errorf("unknown push policy %q", s)
}

// Evaluation is the graded result of a parlay. EffectiveLegs is the leg count the
// win is priced on after the push policy dropped any legs.
type Evaluation struct {
	Outcome       Outcome
	EffectiveLegs int
}

// EvaluateOutcome grades a parlay from its leg outcomes. Any pending leg makes the
// result indeterminate; any loss makes it a loss; it wins only if every leg counted wins.
func EvaluateOutcome(outcomes []models.LegOutcome, policy PushPolicy) Evaluation {
	if len(outcomes) == 0 {
		return Evaluation{Outcome: OutcomeIndeterminate}
	}

	effective := 0
	lost := false
	for _, o := range outcomes {
		switch o {
		case models.LegWin:
			effective++
		case models.LegLoss:
			effective++
			lost = true
		case models.LegPush, models.LegVoid:
			if policy != PushVoidsLeg {
				effective++
				lost = true
			}
		default:
			return Evaluation{Outcome: OutcomeIndeterminate, EffectiveLegs: len(outcomes)}
		}
	}

	if lost {
		return Evaluation{Outcome: OutcomeLoss, EffectiveLegs: effective}
	}
	if effective == 0 {
		return Evaluation{Outcome: OutcomeIndeterminate}
	}
	return Evaluation{Outcome: OutcomeWin, EffectiveLegs: effective}
}

// LegOutcomes lists a parlay's leg outcomes in leg id order.
func LegOutcomes(p models.Parlay) []models.LegOutcome {
	legs := make([]models.Leg, len(p.Legs))
	copy(legs, p.Legs)
	sort.Slice(legs, func(i, j int) bool { return legs[i].ID < legs[j].ID })
	out := make([]models.LegOutcome, 0, len(legs))
	for _, l := range legs {
		out = append(out, l.Outcome)
	}
	return out
}
