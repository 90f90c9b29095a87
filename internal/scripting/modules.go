package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// Bindings is everything one item script may touch.
type Bindings struct {
	Source   dice.Source
	Item     *combat.Item
	User     *combat.Combatant
	Opponent *combat.Combatant
	Log      *combat.Log
}

// RegisterModules installs the item globals into L:
//
//	user, opponent   combatant tables: name, health, max_health, armor,
//	                 damage(n [, pierce]) -> dealt, heal(n) -> healed,
//	                 add_armor(n) -> granted
//	item             name, icon, key
//	roll(lo, hi)     uniform int in [lo, hi]
//	chance(num, den) true with probability num/den
//	log(text)        append an item entry to the duel log
//
// Precondition: L must be from NewSandboxedState; every field of b non-nil.
func RegisterModules(L *lua.LState, b Bindings) {
	L.SetGlobal("user", combatantTable(L, b.User))
	L.SetGlobal("opponent", combatantTable(L, b.Opponent))

	item := L.NewTable()
	item.RawSetString("name", lua.LString(b.Item.Def.Name))
	item.RawSetString("icon", lua.LString(b.Item.Def.Icon))
	item.RawSetString("key", lua.LString(b.Item.Def.Key))
	L.SetGlobal("item", item)

	L.SetGlobal("roll", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(dice.Between(b.Source, L.CheckInt(1), L.CheckInt(2))))
		return 1
	}))
	L.SetGlobal("chance", L.NewFunction(func(L *lua.LState) int {
		r := dice.Ratio{Num: L.CheckInt(1), Den: L.CheckInt(2)}
		L.Push(lua.LBool(dice.Chance(b.Source, r)))
		return 1
	}))
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		b.Log.Add(combat.ItemEntry(b.Item.Def.Icon, L.CheckString(1)))
		return 0
	}))
}

// combatantTable exposes c to Lua. The numeric fields are refreshed after
// every mutation so scripts can read them back.
func combatantTable(L *lua.LState, c *combat.Combatant) *lua.LTable {
	t := L.NewTable()
	refresh := func() {
		t.RawSetString("health", lua.LNumber(c.Stats.Health))
		t.RawSetString("max_health", lua.LNumber(c.Stats.MaxHealth))
		t.RawSetString("armor", lua.LNumber(c.Stats.Armor))
	}
	t.RawSetString("name", lua.LString(c.Name))
	refresh()

	t.RawSetString("damage", L.NewFunction(func(L *lua.LState) int {
		dealt := c.Stats.ApplyDamage(L.CheckInt(1), L.OptInt(2, 0))
		refresh()
		L.Push(lua.LNumber(dealt))
		return 1
	}))
	t.RawSetString("heal", L.NewFunction(func(L *lua.LState) int {
		healed := c.Stats.ApplyHeal(L.CheckInt(1))
		refresh()
		L.Push(lua.LNumber(healed))
		return 1
	}))
	t.RawSetString("add_armor", L.NewFunction(func(L *lua.LState) int {
		granted := c.Stats.AddArmor(L.CheckInt(1))
		refresh()
		L.Push(lua.LNumber(granted))
		return 1
	}))
	return t
}
