// Package catalog holds the weapon and item definitions duels are dealt from.
package catalog

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// ErrNoWeapons is returned by RandomWeapon on an empty registry.
var ErrNoWeapons = errors.New("catalog: no weapons registered")

// Registry holds weapon and item definitions indexed by key, remembering
// registration order so draws are reproducible under a seeded source.
//
// A Registry is populated once at startup and read-only afterwards.
type Registry struct {
	weapons     map[string]combat.Weapon
	weaponOrder []string
	items       map[string]*combat.ItemDef
	itemOrder   []string
}

// NewRegistry returns an empty Registry.
//
// Postcondition: all internal maps are initialised.
func NewRegistry() *Registry {
	return &Registry{
		weapons: make(map[string]combat.Weapon),
		items:   make(map[string]*combat.ItemDef),
	}
}

// RegisterWeapon adds w to the registry.
//
// Postcondition: Weapon(w.Key) returns w; returns error if w is invalid or
// w.Key is already registered.
func (r *Registry) RegisterWeapon(w combat.Weapon) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("catalog: Registry.RegisterWeapon: %w", err)
	}
	if _, exists := r.weapons[w.Key]; exists {
		return fmt.Errorf("catalog: Registry.RegisterWeapon: weapon key %q already registered", w.Key)
	}
	r.weapons[w.Key] = w
	r.weaponOrder = append(r.weaponOrder, w.Key)
	return nil
}

// RegisterItem adds d to the registry.
//
// Precondition: d must not be nil.
// Postcondition: Item(d.Key) returns (d, true); returns error if d is invalid
// or d.Key is already registered.
func (r *Registry) RegisterItem(d *combat.ItemDef) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("catalog: Registry.RegisterItem: %w", err)
	}
	if _, exists := r.items[d.Key]; exists {
		return fmt.Errorf("catalog: Registry.RegisterItem: item key %q already registered", d.Key)
	}
	r.items[d.Key] = d
	r.itemOrder = append(r.itemOrder, d.Key)
	return nil
}

// Weapon returns the weapon for key and whether it was found.
func (r *Registry) Weapon(key string) (combat.Weapon, bool) {
	w, ok := r.weapons[key]
	return w, ok
}

// Item returns the ItemDef for key and whether it was found.
func (r *Registry) Item(key string) (*combat.ItemDef, bool) {
	d, ok := r.items[key]
	return d, ok
}

// Weapons returns every weapon in registration order.
func (r *Registry) Weapons() []combat.Weapon {
	out := make([]combat.Weapon, 0, len(r.weaponOrder))
	for _, k := range r.weaponOrder {
		out = append(out, r.weapons[k])
	}
	return out
}

// Items returns every item definition in registration order.
func (r *Registry) Items() []*combat.ItemDef {
	out := make([]*combat.ItemDef, 0, len(r.itemOrder))
	for _, k := range r.itemOrder {
		out = append(out, r.items[k])
	}
	return out
}

// RandomWeapon draws a weapon uniformly.
//
// Postcondition: returns ErrNoWeapons iff no weapon is registered.
func (r *Registry) RandomWeapon(src dice.Source) (combat.Weapon, error) {
	if len(r.weaponOrder) == 0 {
		return combat.Weapon{}, ErrNoWeapons
	}
	return r.weapons[r.weaponOrder[dice.Between(src, 0, len(r.weaponOrder)-1)]], nil
}

// FromDefs builds a Registry from already-loaded definitions.
//
// Postcondition: returns the first registration error, if any.
func FromDefs(weapons []combat.Weapon, items []*combat.ItemDef) (*Registry, error) {
	r := NewRegistry()
	for _, w := range weapons {
		if err := r.RegisterWeapon(w); err != nil {
			return nil, err
		}
	}
	for _, d := range items {
		if err := r.RegisterItem(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Builtin returns a Registry holding the reference weapons and items.
func Builtin() *Registry {
	r, err := FromDefs(combat.ReferenceWeapons(), combat.ReferenceItems())
	if err != nil {
		panic(fmt.Sprintf("catalog: builtin definitions invalid: %v", err))
	}
	return r
}
