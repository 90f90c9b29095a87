package combat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// ItemKind selects the effect an item applies. The set is closed; every kind
// is handled by ResolveItem.
type ItemKind string

const (
	// ItemHeal heals the user for [Min, Max].
	ItemHeal ItemKind = "heal"
	// ItemGamble flips a coin: heal or damage the opponent for [Min, Max].
	ItemGamble ItemKind = "gamble"
	// ItemRiskyDamage damages the opponent for [Min, Max] unless it backfires
	// (probability Backfire) onto the user for [BackfireMin, BackfireMax].
	ItemRiskyDamage ItemKind = "risky_damage"
	// ItemArmor grants the user [Min, Max] armor.
	ItemArmor ItemKind = "armor"
	// ItemScript runs the Lua source in Script.
	ItemScript ItemKind = "script"
)

// Valid reports whether k is one of the known kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemHeal, ItemGamble, ItemRiskyDamage, ItemArmor, ItemScript:
		return true
	}
	return false
}

// ItemDef is a catalog entry. Instances handed to combatants are Items.
type ItemDef struct {
	Key         string
	Name        string
	Description string
	Icon        string
	Kind        ItemKind
	Min         int
	Max         int
	Backfire    dice.Ratio
	BackfireMin int
	BackfireMax int
	Script      string
}

// Validate checks that the definition is usable for its kind.
//
// Postcondition: returns nil iff the definition is complete and consistent.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.Key == "" {
		errs = append(errs, errors.New("key must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !d.Kind.Valid() {
		errs = append(errs, fmt.Errorf("unknown kind %q", d.Kind))
	}
	switch d.Kind {
	case ItemScript:
		if d.Script == "" {
			errs = append(errs, errors.New("script items need a script"))
		}
	default:
		if d.Min < 0 || d.Max < d.Min {
			errs = append(errs, fmt.Errorf("range [%d, %d] is invalid", d.Min, d.Max))
		}
	}
	if d.Kind == ItemRiskyDamage {
		if err := d.Backfire.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("backfire: %w", err))
		}
		if d.BackfireMin < 0 || d.BackfireMax < d.BackfireMin {
			errs = append(errs, fmt.Errorf("backfire range [%d, %d] is invalid", d.BackfireMin, d.BackfireMax))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("item %q validation failed: %w", d.Key, errors.Join(errs...))
	}
	return nil
}

// Reference items.
var (
	Apple = &ItemDef{Key: "apple", Name: "Apple", Description: "Heal 5-20 HP.", Icon: "🍎",
		Kind: ItemHeal, Min: 5, Max: 20}
	Coin = &ItemDef{Key: "coin", Name: "Coin", Description: "50/50 chance to heal/hurt your opponent for 20-35 health.", Icon: "🪙",
		Kind: ItemGamble, Min: 20, Max: 35}
	FaultyWaterGun = &ItemDef{Key: "faulty_water_gun", Name: "Faulty Water Gun", Description: "90% chance to deal 30-40 damage; 10% chance to backfire for 50-60 damage.", Icon: "🔫",
		Kind: ItemRiskyDamage, Min: 30, Max: 40, Backfire: dice.Ratio{Num: 1, Den: 10}, BackfireMin: 50, BackfireMax: 60}
	Shield = &ItemDef{Key: "shield", Name: "Shield", Description: "Gain 5-10 armor.", Icon: "🛡",
		Kind: ItemArmor, Min: 5, Max: 10}
)

// ReferenceItems returns the builtin item catalog.
func ReferenceItems() []*ItemDef {
	return []*ItemDef{Apple, Coin, FaultyWaterGun, Shield}
}

// Item is one consumable instance in a combatant's inventory.
type Item struct {
	ID  uuid.UUID
	Def *ItemDef
}

// NewItem creates a fresh instance of def.
//
// Precondition: def must be non-nil.
func NewItem(def *ItemDef) *Item {
	return &Item{ID: uuid.New(), Def: def}
}

// DrawItems builds a bag holding every definition in pool twice, shuffles it,
// and returns fresh instances of the first n.
//
// Postcondition: len(result) == min(n, 2*len(pool)); every ID is unique.
func DrawItems(src dice.Source, pool []*ItemDef, n int) []*Item {
	bag := make([]*ItemDef, 0, 2*len(pool))
	for _, def := range pool {
		bag = append(bag, def, def)
	}
	dice.Shuffle(src, len(bag), func(i, j int) { bag[i], bag[j] = bag[j], bag[i] })

	n = min(max(n, 0), len(bag))
	out := make([]*Item, 0, n)
	for _, def := range bag[:n] {
		out = append(out, NewItem(def))
	}
	return out
}

// ScriptRunner executes ItemScript effects.
type ScriptRunner interface {
	RunItem(ctx context.Context, src dice.Source, item *Item, user, opponent *Combatant, log *Log) error
}

// ItemResult describes what an item did.
type ItemResult struct {
	// Amount is the health healed, damage dealt, or armor gained.
	Amount int
	// Target is the combatant the effect landed on.
	Target *Combatant
	// Healed is true for healing effects.
	Healed bool
	// Backfired is true when a risky item hit its user.
	Backfired bool
}

var (
	// ErrNoScriptRunner is returned when a script item is used without a runner.
	ErrNoScriptRunner = errors.New("combat: no script runner configured")
	// ErrScriptFailed wraps a script error. The item has still been spent and a
	// fizzle entry logged, so the turn stands.
	ErrScriptFailed = errors.New("combat: item script failed")
)

// CanResolve reports whether ResolveItem can apply def with scripts. An item
// that passes is never rejected by ResolveItem; a failing script is still
// resolved as a fizzle.
func CanResolve(def *ItemDef, scripts ScriptRunner) error {
	if !def.Kind.Valid() {
		return fmt.Errorf("combat: unknown item kind %q", def.Kind)
	}
	if def.Kind == ItemScript && scripts == nil {
		return ErrNoScriptRunner
	}
	return nil
}

// ResolveItem applies item's effect for user against opponent and records at
// least one log entry. It does not touch the user's inventory.
//
// Precondition: caller holds exclusive access to user and opponent; scripts
// may be nil when no ItemScript items are in play.
// Postcondition: on success at least one entry has been appended to log.
func ResolveItem(ctx context.Context, src dice.Source, scripts ScriptRunner, item *Item, user, opponent *Combatant, log *Log) (ItemResult, error) {
	def := item.Def
	switch def.Kind {
	case ItemHeal:
		healed := user.Stats.ApplyHeal(dice.Between(src, def.Min, def.Max))
		log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s used %s and healed for %d health.", user.Name, def.Name, healed)))
		return ItemResult{Amount: healed, Target: user, Healed: true}, nil

	case ItemGamble:
		heal := dice.Coin(src)
		amount := dice.Between(src, def.Min, def.Max)
		if heal {
			healed := opponent.Stats.ApplyHeal(amount)
			log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s flipped %d healing against %s.", user.Name, healed, opponent.Name)))
			return ItemResult{Amount: healed, Target: opponent, Healed: true}, nil
		}
		dealt := opponent.Stats.ApplyDamage(amount, 0)
		log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s flipped %d damage against %s.", user.Name, dealt, opponent.Name)))
		return ItemResult{Amount: dealt, Target: opponent}, nil

	case ItemRiskyDamage:
		if dice.Chance(src, def.Backfire) {
			dealt := user.Stats.ApplyDamage(dice.Between(src, def.BackfireMin, def.BackfireMax), 0)
			log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s's %s backfired, dealing %d damage to themselves.", user.Name, def.Name, dealt)))
			return ItemResult{Amount: dealt, Target: user, Backfired: true}, nil
		}
		dealt := opponent.Stats.ApplyDamage(dice.Between(src, def.Min, def.Max), 0)
		log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s hit %s with a %s, dealing %d damage.", user.Name, opponent.Name, def.Name, dealt)))
		return ItemResult{Amount: dealt, Target: opponent}, nil

	case ItemArmor:
		granted := user.Stats.AddArmor(dice.Between(src, def.Min, def.Max))
		log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s equipped a %s, gaining %d armor.", user.Name, def.Name, granted)))
		return ItemResult{Amount: granted, Target: user}, nil

	case ItemScript:
		if scripts == nil {
			return ItemResult{}, ErrNoScriptRunner
		}
		before := log.Len()
		if err := scripts.RunItem(ctx, src, item, user, opponent, log); err != nil {
			log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s's %s fizzled.", user.Name, def.Name)))
			return ItemResult{Target: user}, fmt.Errorf("%w: item %q: %w", ErrScriptFailed, def.Key, err)
		}
		if log.Len() == before {
			log.Add(ItemEntry(def.Icon, fmt.Sprintf("%s used %s.", user.Name, def.Name)))
		}
		return ItemResult{Target: user}, nil

	default:
		return ItemResult{}, fmt.Errorf("combat: unknown item kind %q", def.Kind)
	}
}
