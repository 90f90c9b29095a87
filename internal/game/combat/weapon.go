package combat

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// Weapon is the immutable attack profile equipped by a combatant for a whole duel.
//
// Weapons differ only in their numbers, so a single resolution (ResolveAttack)
// covers every catalog entry.
type Weapon struct {
	Key            string
	Name           string
	Icon           string
	MinDamage      int
	MaxDamage      int
	Crit           dice.Ratio
	CritMultiplier int
	Pierce         int
}

// Validate checks that the weapon's numbers are usable.
//
// Postcondition: returns nil iff every field is within range.
func (w Weapon) Validate() error {
	var errs []error
	if w.Key == "" {
		errs = append(errs, errors.New("key must not be empty"))
	}
	if w.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if w.MinDamage < 0 {
		errs = append(errs, fmt.Errorf("min damage must be >= 0, got %d", w.MinDamage))
	}
	if w.MaxDamage < w.MinDamage {
		errs = append(errs, fmt.Errorf("max damage %d must be >= min damage %d", w.MaxDamage, w.MinDamage))
	}
	if err := w.Crit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("crit: %w", err))
	}
	if w.CritMultiplier < 1 {
		errs = append(errs, fmt.Errorf("crit multiplier must be >= 1, got %d", w.CritMultiplier))
	}
	if w.Pierce < 0 {
		errs = append(errs, fmt.Errorf("pierce must be >= 0, got %d", w.Pierce))
	}
	if len(errs) > 0 {
		return fmt.Errorf("weapon %q validation failed: %w", w.Key, errors.Join(errs...))
	}
	return nil
}

// Reference weapons.
var (
	// Sword is the balanced default.
	Sword = Weapon{Key: "sword", Name: "Sword", Icon: "⚔", MinDamage: 10, MaxDamage: 20, Crit: dice.Percent(2), CritMultiplier: 2}
	// Dagger trades damage for frequent, large criticals.
	Dagger = Weapon{Key: "dagger", Name: "Dagger", Icon: "🗡", MinDamage: 5, MaxDamage: 12, Crit: dice.Percent(15), CritMultiplier: 3}
	// Hammer hits hard and rarely crits.
	Hammer = Weapon{Key: "hammer", Name: "Hammer", Icon: "🔨", MinDamage: 15, MaxDamage: 30, Crit: dice.Percent(1), CritMultiplier: 2}
	// Spear ignores part of the target's armor.
	Spear = Weapon{Key: "spear", Name: "Spear", Icon: "🔱", MinDamage: 10, MaxDamage: 20, Crit: dice.Percent(2), CritMultiplier: 2, Pierce: 5}
)

// ReferenceWeapons returns the builtin weapon catalog.
func ReferenceWeapons() []Weapon {
	return []Weapon{Sword, Dagger, Hammer, Spear}
}

// AttackResult describes one resolved attack.
type AttackResult struct {
	// Rolled is the raw damage after any critical multiplier.
	Rolled int
	// Critical is true when the critical check succeeded.
	Critical bool
	// Dealt is the health actually removed from the target.
	Dealt int
}

// ResolveAttack rolls attacker's weapon against target, applies the damage,
// and appends an Attack or Critical entry carrying the damage actually dealt.
// Draw order: damage in [MinDamage, MaxDamage], then the critical check.
//
// Precondition: src, attacker, target, and log must be non-nil; caller holds
// exclusive access to attacker and target.
// Postcondition: exactly one entry is appended; target health delta == result.Dealt.
func ResolveAttack(src dice.Source, attacker, target *Combatant, log *Log) AttackResult {
	w := attacker.Weapon
	rolled := dice.Between(src, w.MinDamage, w.MaxDamage)
	critical := dice.Chance(src, w.Crit)
	if critical {
		rolled = SatMul(rolled, w.CritMultiplier)
	}

	dealt := target.Stats.ApplyDamage(rolled, w.Pierce)
	if critical {
		log.Add(CriticalEntry(attacker.Name, target.Name, dealt))
	} else {
		log.Add(AttackEntry(w.Icon, attacker.Name, target.Name, dealt))
	}
	return AttackResult{Rolled: rolled, Critical: critical, Dealt: dealt}
}
