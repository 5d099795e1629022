// Package models defines the shared data types for tiered execution:
// the tier ladder, attempt and stage records, cost reports, and the
// composite quality score.
package models

import "fmt"

// Tier identifies one rung of the cost/quality ladder.
type Tier string

// Conventional tier names. The engine only assumes the ladder is totally
// ordered; the actual set of tiers and their unit costs are configuration.
const (
	// TierCheap is the cheapest rung, tried first.
	TierCheap Tier = "cheap"
	// TierCapable is the mid-range rung.
	TierCapable Tier = "capable"
	// TierPremium is the most expensive rung.
	TierPremium Tier = "premium"
)

// Ladder is an ordered set of tiers, cheapest first, with a nominal unit
// cost per call for each tier. The last tier is terminal: a failure there
// can no longer escalate.
type Ladder struct {
	tiers []Tier
	costs map[Tier]float64
}

// NewLadder creates a validated ladder from an ordered tier list and a
// per-tier unit cost map. Every tier must be named, unique, and have a
// non-negative cost entry, and costs must not decrease up the ladder.
func NewLadder(tiers []Tier, costs map[Tier]float64) (*Ladder, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("ladder requires at least one tier")
	}

	seen := make(map[Tier]bool, len(tiers))
	for i, t := range tiers {
		if t == "" {
			return nil, fmt.Errorf("ladder contains an empty tier name")
		}
		if seen[t] {
			return nil, fmt.Errorf("ladder contains duplicate tier %q", t)
		}
		seen[t] = true

		cost, ok := costs[t]
		if !ok {
			return nil, fmt.Errorf("no unit cost configured for tier %q", t)
		}
		if cost < 0 {
			return nil, fmt.Errorf("tier %q has negative unit cost %v", t, cost)
		}
		if i > 0 {
			if prev := costs[tiers[i-1]]; cost < prev {
				return nil, fmt.Errorf("tier %q unit cost %v is below %q's %v: costs must not decrease up the ladder",
					t, cost, tiers[i-1], prev)
			}
		}
	}

	l := &Ladder{
		tiers: append([]Tier{}, tiers...),
		costs: make(map[Tier]float64, len(costs)),
	}
	for _, t := range tiers {
		l.costs[t] = costs[t]
	}
	return l, nil
}

// DefaultLadder returns the conventional cheap/capable/premium ladder with
// illustrative unit costs. Real deployments supply their own via config.
func DefaultLadder() *Ladder {
	l, _ := NewLadder(
		[]Tier{TierCheap, TierCapable, TierPremium},
		map[Tier]float64{TierCheap: 0.01, TierCapable: 0.05, TierPremium: 0.25},
	)
	return l
}

// Tiers returns a copy of the ordered tier list.
func (l *Ladder) Tiers() []Tier {
	return append([]Tier{}, l.tiers...)
}

// First returns the cheapest tier.
func (l *Ladder) First() Tier {
	return l.tiers[0]
}

// Terminal returns the most expensive tier.
func (l *Ladder) Terminal() Tier {
	return l.tiers[len(l.tiers)-1]
}

// IsTerminal returns true if t is the last rung of the ladder.
func (l *Ladder) IsTerminal(t Tier) bool {
	return t == l.Terminal()
}

// Contains returns true if t is one of the ladder's tiers.
func (l *Ladder) Contains(t Tier) bool {
	_, ok := l.index(t)
	return ok
}

// Next returns the tier above t. The second return is false when t is
// terminal or not part of the ladder.
func (l *Ladder) Next(t Tier) (Tier, bool) {
	idx, ok := l.index(t)
	if !ok || idx >= len(l.tiers)-1 {
		return "", false
	}
	return l.tiers[idx+1], true
}

// UnitCost returns the nominal cost of one call at tier t, or 0 for an
// unknown tier.
func (l *Ladder) UnitCost(t Tier) float64 {
	return l.costs[t]
}

func (l *Ladder) index(t Tier) (int, bool) {
	for i, candidate := range l.tiers {
		if candidate == t {
			return i, true
		}
	}
	return 0, false
}
