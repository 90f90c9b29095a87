// Package combat implements the combat-resolution core of a duel: the damage
// model, the append-only combat log, weapons, consumable items, and the
// per-participant combat state.
//
// Nothing in this package locks; callers serialise mutation of a Combatant
// (the duel session does so with its own mutex). The Log is the exception and
// is safe for concurrent use because display refreshes read it from other
// goroutines.
package combat

import "math"

// Stats is the mutable health/armor state of one combatant.
//
// Invariant: 0 <= Health <= MaxHealth; Armor >= 0.
type Stats struct {
	Health    int
	MaxHealth int
	Armor     int
}

// NewStats returns full-health Stats with no armor.
//
// Precondition: maxHealth > 0.
// Postcondition: Health == MaxHealth == maxHealth; Armor == 0.
func NewStats(maxHealth int) Stats {
	return Stats{Health: maxHealth, MaxHealth: maxHealth}
}

// ApplyDamage removes raw damage from Health after armor reduction.
// Effective armor is max(0, Armor-pierce); dealt is
// min(Health, max(0, raw-effectiveArmor)). Negative raw or pierce are treated as 0.
//
// Postcondition: returns dealt with 0 <= dealt <= raw and dealt <= pre-damage Health;
// Health stays within [0, MaxHealth].
func (s *Stats) ApplyDamage(raw, pierce int) int {
	raw = max(raw, 0)
	pierce = max(pierce, 0)
	reduction := max(s.Armor-pierce, 0)
	dealt := max(raw-reduction, 0)
	dealt = min(dealt, s.Health)
	s.Health -= dealt
	return dealt
}

// ApplyHeal restores up to raw Health without exceeding MaxHealth.
//
// Postcondition: returns healed with 0 <= healed <= MaxHealth-pre-heal Health.
func (s *Stats) ApplyHeal(raw int) int {
	raw = max(raw, 0)
	healed := min(raw, max(s.MaxHealth-s.Health, 0))
	s.Health += healed
	return healed
}

// AddArmor increases Armor by amount, saturating at math.MaxInt.
//
// Postcondition: Armor is non-decreasing; returns the amount actually granted.
func (s *Stats) AddArmor(amount int) int {
	amount = max(amount, 0)
	before := s.Armor
	s.Armor = SatAdd(s.Armor, amount)
	return s.Armor - before
}

// Zero sets Health to 0. Used for surrender and forfeit.
func (s *Stats) Zero() { s.Health = 0 }

// Alive reports whether Health is positive.
func (s Stats) Alive() bool { return s.Health > 0 }

// SatAdd returns a+b for non-negative operands, saturating at math.MaxInt.
func SatAdd(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// SatMul returns a*b for non-negative operands, saturating at math.MaxInt.
func SatMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}
