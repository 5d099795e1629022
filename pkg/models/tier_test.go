package models

import "testing"

func TestNewLadder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []Tier
		costs   map[Tier]float64
		wantErr bool
	}{
		{
			"valid three-tier ladder",
			[]Tier{TierCheap, TierCapable, TierPremium},
			map[Tier]float64{TierCheap: 0.01, TierCapable: 0.05, TierPremium: 0.25},
			false,
		},
		{
			"single tier is valid",
			[]Tier{TierPremium},
			map[Tier]float64{TierPremium: 0.25},
			false,
		},
		{"empty ladder", nil, nil, true},
		{
			"duplicate tier",
			[]Tier{TierCheap, TierCheap},
			map[Tier]float64{TierCheap: 0.01},
			true,
		},
		{
			"empty tier name",
			[]Tier{TierCheap, ""},
			map[Tier]float64{TierCheap: 0.01, "": 0.02},
			true,
		},
		{
			"missing cost entry",
			[]Tier{TierCheap, TierCapable},
			map[Tier]float64{TierCheap: 0.01},
			true,
		},
		{
			"negative cost",
			[]Tier{TierCheap},
			map[Tier]float64{TierCheap: -1},
			true,
		},
		{
			"cost decreases up the ladder",
			[]Tier{TierCheap, TierCapable, TierPremium},
			map[Tier]float64{TierCheap: 0.05, TierCapable: 0.01, TierPremium: 0.25},
			true,
		},
		{
			"equal adjacent costs are allowed",
			[]Tier{TierCheap, TierCapable},
			map[Tier]float64{TierCheap: 0.05, TierCapable: 0.05},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLadder(tt.tiers, tt.costs)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLadder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLadder_Order(t *testing.T) {
	ladder := DefaultLadder()

	if got := ladder.First(); got != TierCheap {
		t.Errorf("First() = %v, want %v", got, TierCheap)
	}
	if got := ladder.Terminal(); got != TierPremium {
		t.Errorf("Terminal() = %v, want %v", got, TierPremium)
	}
	if !ladder.IsTerminal(TierPremium) {
		t.Error("IsTerminal(premium) = false, want true")
	}
	if ladder.IsTerminal(TierCheap) {
		t.Error("IsTerminal(cheap) = true, want false")
	}

	next, ok := ladder.Next(TierCheap)
	if !ok || next != TierCapable {
		t.Errorf("Next(cheap) = (%v, %v), want (capable, true)", next, ok)
	}
	if _, ok := ladder.Next(TierPremium); ok {
		t.Error("Next(premium) returned a tier, want none")
	}
	if _, ok := ladder.Next(Tier("unknown")); ok {
		t.Error("Next(unknown) returned a tier, want none")
	}
}

func TestLadder_UnitCost(t *testing.T) {
	ladder := DefaultLadder()

	if got := ladder.UnitCost(TierPremium); got != 0.25 {
		t.Errorf("UnitCost(premium) = %v, want 0.25", got)
	}
	if got := ladder.UnitCost(Tier("unknown")); got != 0 {
		t.Errorf("UnitCost(unknown) = %v, want 0", got)
	}
}

func TestLadder_TiersReturnsCopy(t *testing.T) {
	ladder := DefaultLadder()
	tiers := ladder.Tiers()
	tiers[0] = Tier("mutated")

	if got := ladder.First(); got != TierCheap {
		t.Errorf("First() after mutating Tiers() copy = %v, want %v", got, TierCheap)
	}
}
