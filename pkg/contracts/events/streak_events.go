package events

import "time"

// Event names as seen by the presentation layer.
const (
	ParlayResolved    = "parlay:resolved"
	StreakUpdated     = "streak:updated"
	InsuranceLocked   = "insurance:locked"
	InsuranceUnlocked = "insurance:unlocked"
)

// Envelope wraps every engine event. Delivery is best effort and may repeat;
// consumers dedupe on ID.
type Envelope struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	UserID  uint        `json:"userId"`
	Ts      time.Time   `json:"ts"`
	Payload interface{} `json:"payload"`
}

type ParlayResolvedPayload struct {
	ParlayID      uint      `json:"parlayId"`
	Status        string    `json:"status"` // "WON" | "LOST"
	Insured       bool      `json:"insured"`
	Value         int       `json:"value"`
	InsuranceCost int       `json:"insuranceCost"`
	ResolvedAt    time.Time `json:"resolvedAt"`
}

type StreakUpdatedPayload struct {
	ParlayID      uint   `json:"parlayId"`
	OldStreak     int    `json:"oldStreak"`
	NewStreak     int    `json:"newStreak"`
	ChangeAmount  int    `json:"changeAmount"`
	ChangeType    string `json:"changeType"`
	LongestStreak int    `json:"longestStreak"`
}

type InsurancePayload struct {
	ParlayID uint `json:"parlayId"`
	Locked   bool `json:"locked"`
}
