package combat

import "github.com/google/uuid"

// Combatant is the combat state of one duel participant. The duel session owns
// every Combatant it creates; nothing else holds a reference across turns.
type Combatant struct {
	// ID is unique within the process for the lifetime of the session.
	ID uuid.UUID
	// UserID is the external identity; empty for non-human participants.
	UserID string
	Name   string
	Icon   string
	// IsP1 orders the display; it has no bearing on turn order.
	IsP1   bool
	Stats  Stats
	Weapon Weapon

	items map[uuid.UUID]*Item
	order []uuid.UUID
}

// NewCombatant creates a full-health Combatant carrying weapon and items.
//
// Precondition: maxHealth > 0.
// Postcondition: Items() returns items in the given order.
func NewCombatant(id uuid.UUID, userID, name, icon string, isP1 bool, maxHealth int, weapon Weapon, items []*Item) *Combatant {
	c := &Combatant{
		ID:     id,
		UserID: userID,
		Name:   name,
		Icon:   icon,
		IsP1:   isP1,
		Stats:  NewStats(maxHealth),
		Weapon: weapon,
		items:  make(map[uuid.UUID]*Item, len(items)),
	}
	for _, it := range items {
		c.items[it.ID] = it
		c.order = append(c.order, it.ID)
	}
	return c
}

// Items returns the inventory in the order it was dealt.
func (c *Combatant) Items() []*Item {
	out := make([]*Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// HasItem reports whether id is in the inventory.
func (c *Combatant) HasItem(id uuid.UUID) bool {
	_, ok := c.items[id]
	return ok
}

// Item returns the inventory item id without removing it.
func (c *Combatant) Item(id uuid.UUID) (*Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// TakeItem removes id from the inventory and returns it.
//
// Postcondition: ok is false and the inventory is unchanged when id is absent;
// otherwise HasItem(id) is false afterwards.
func (c *Combatant) TakeItem(id uuid.UUID) (*Item, bool) {
	it, ok := c.items[id]
	if !ok {
		return nil, false
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return it, true
}

// ItemView is the displayable form of an inventory item.
type ItemView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Kind        string `json:"kind"`
}

// View is a point-in-time snapshot of a Combatant for rendering.
type View struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id,omitempty"`
	Name       string     `json:"name"`
	Icon       string     `json:"icon,omitempty"`
	IsP1       bool       `json:"is_p1"`
	Health     int        `json:"health"`
	MaxHealth  int        `json:"max_health"`
	Armor      int        `json:"armor"`
	WeaponName string     `json:"weapon_name"`
	WeaponIcon string     `json:"weapon_icon"`
	Items      []ItemView `json:"items"`
}

// View snapshots c.
func (c *Combatant) View() View {
	items := make([]ItemView, 0, len(c.order))
	for _, it := range c.Items() {
		items = append(items, ItemView{
			ID:          it.ID.String(),
			Name:        it.Def.Name,
			Description: it.Def.Description,
			Icon:        it.Def.Icon,
			Kind:        string(it.Def.Kind),
		})
	}
	return View{
		ID:         c.ID.String(),
		UserID:     c.UserID,
		Name:       c.Name,
		Icon:       c.Icon,
		IsP1:       c.IsP1,
		Health:     c.Stats.Health,
		MaxHealth:  c.Stats.MaxHealth,
		Armor:      c.Stats.Armor,
		WeaponName: c.Weapon.Name,
		WeaponIcon: c.Weapon.Icon,
		Items:      items,
	}
}
