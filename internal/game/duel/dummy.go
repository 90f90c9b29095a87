package duel

import (
	"context"

	"github.com/google/uuid"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
)

// Dummy is a non-human training battler. It heals with an item when below
// 30% health and carrying one, and attacks otherwise. It never times out.
type Dummy struct {
	id   uuid.UUID
	name string
	icon string
}

// NewDummy creates a Dummy.
func NewDummy(name, icon string) *Dummy {
	return &Dummy{id: uuid.New(), name: name, icon: icon}
}

func (d *Dummy) ID() uuid.UUID          { return d.id }
func (d *Dummy) UserID() (string, bool) { return "", false }
func (d *Dummy) Name() string           { return d.name }
func (d *Dummy) Icon() string           { return d.icon }

// TakeTurn implements Battler.
func (d *Dummy) TakeTurn(ctx context.Context, t *Turn) error {
	self := t.Self()
	if self.Health*10 < self.MaxHealth*3 {
		for _, it := range self.Items {
			if it.Kind == string(combat.ItemHeal) {
				return t.UseItem(ctx, it.ID)
			}
		}
	}
	return t.Attack()
}
