package common

import (
	"errors"
	"testing"
)

func TestParlayValue(t *testing.T) {
	tests := []struct {
		legs     int
		expected int
		wantErr  bool
	}{
		{legs: 1, expected: 1},
		{legs: 2, expected: 2},
		{legs: 3, expected: 4},
		{legs: 4, expected: 8},
		{legs: 5, expected: 16},
		{legs: 0, wantErr: true},
		{legs: 6, wantErr: true},
		{legs: -1, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParlayValue(tt.legs)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidLegCount) {
				t.Errorf("ParlayValue(%d) error = %v, want ErrInvalidLegCount", tt.legs, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParlayValue(%d) unexpected error: %v", tt.legs, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParlayValue(%d) = %d, want %d", tt.legs, got, tt.expected)
		}
	}
}

func TestInsuranceCost(t *testing.T) {
	tests := []struct {
		name     string
		legs     int
		streak   int
		expected int
	}{
		{name: "four legs, cold streak", legs: 4, streak: 10, expected: 3},
		{name: "four legs at zero", legs: 4, streak: 0, expected: 3},
		{name: "four legs, bracket edge", legs: 4, streak: 15, expected: 5},
		{name: "four legs, just below edge", legs: 4, streak: 14, expected: 3},
		{name: "five legs, 1.67x", legs: 5, streak: 20, expected: 8},
		{name: "four legs, 2x", legs: 4, streak: 25, expected: 6},
		{name: "five legs, 2.67x", legs: 5, streak: 35, expected: 13},
		{name: "four legs, top bracket", legs: 4, streak: 50, expected: 9},
		{name: "five legs, top bracket", legs: 5, streak: 100, expected: 15},
		{name: "three legs not insurable", legs: 3, streak: 40, expected: 0},
		{name: "single leg not insurable", legs: 1, streak: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InsuranceCost(tt.legs, tt.streak); got != tt.expected {
				t.Errorf("InsuranceCost(%d, %d) = %d, want %d", tt.legs, tt.streak, got, tt.expected)
			}
		})
	}
}

func TestInsuranceTableValidate(t *testing.T) {
	def := DefaultInsuranceTable()
	if err := def.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}

	unsorted := InsuranceTable{
		BaseCost: map[int]int{4: 2, 5: 4},
		Brackets: []StreakBracket{{Min: 10, Multiplier: 2}, {Min: 0, Multiplier: 1}},
	}
	if err := unsorted.Validate(); err != nil {
		t.Fatalf("unsorted table rejected: %v", err)
	}
	if unsorted.Brackets[0].Min != 0 {
		t.Errorf("brackets not sorted: %+v", unsorted.Brackets)
	}
	if got := unsorted.InsuranceCost(5, 12); got != 8 {
		t.Errorf("custom table cost = %d, want 8", got)
	}

	bad := []struct {
		name  string
		table InsuranceTable
	}{
		{name: "no brackets", table: InsuranceTable{BaseCost: map[int]int{4: 3, 5: 5}}},
		{name: "gap below first bracket", table: InsuranceTable{
			BaseCost: map[int]int{4: 3, 5: 5},
			Brackets: []StreakBracket{{Min: 5, Multiplier: 1}},
		}},
		{name: "zero multiplier", table: InsuranceTable{
			BaseCost: map[int]int{4: 3, 5: 5},
			Brackets: []StreakBracket{{Min: 0, Multiplier: 0}},
		}},
		{name: "duplicate bracket", table: InsuranceTable{
			BaseCost: map[int]int{4: 3, 5: 5},
			Brackets: []StreakBracket{{Min: 0, Multiplier: 1}, {Min: 0, Multiplier: 2}},
		}},
		{name: "missing five-leg cost", table: InsuranceTable{
			BaseCost: map[int]int{4: 3},
			Brackets: []StreakBracket{{Min: 0, Multiplier: 1}},
		}},
	}
	for _, tt := range bad {
		if err := tt.table.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
