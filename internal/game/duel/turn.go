package duel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
)

// Turn is a battler's handle on the session for exactly one turn. It is the
// only path by which a battler reads or mutates combat state.
//
// Every mutating method resolves the turn. Once the turn is resolved, or the
// session has concluded, every mutating method returns ErrStaleSession.
type Turn struct {
	s     *Session
	epoch uint64
	side  int

	// guarded by s.mu
	resolved bool
}

// SessionID returns the owning session's id.
func (t *Turn) SessionID() uuid.UUID { return t.s.id }

// Self snapshots the acting battler.
func (t *Turn) Self() combat.View {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.combatants[t.side].View()
}

// Opponent snapshots the waiting battler.
func (t *Turn) Opponent() combat.View {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.combatants[1-t.side].View()
}

// Render pushes the current turn view to the display sink and refreshes the
// session's registry entries.
func (t *Turn) Render(ctx context.Context) error {
	t.s.refresh(ctx)
	t.s.mu.RLock()
	v := t.s.turnView(t.side)
	t.s.mu.RUnlock()
	if err := t.s.render.RenderTurn(ctx, v); err != nil {
		return fmt.Errorf("duel: rendering turn: %w", err)
	}
	return nil
}

// Attack resolves the acting battler's weapon against the opponent.
func (t *Turn) Attack() error {
	return t.resolve(ActionAttack, func(self, opp *combat.Combatant) error {
		combat.ResolveAttack(t.s.src, self, opp, t.s.log)
		return nil
	})
}

// UseItem spends the item with the given id and applies its effect.
//
// Postcondition: an id not in the inventory returns ErrUnknownItem, and an
// item the session cannot apply returns its error; either way the turn stays
// unresolved and the item stays in the inventory. A failing item script is
// logged and still resolves the turn.
func (t *Turn) UseItem(ctx context.Context, id string) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	return t.resolve(ActionItem, func(self, opp *combat.Combatant) error {
		it, ok := self.Item(itemID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
		if err := combat.CanResolve(it.Def, t.s.scripts); err != nil {
			return err
		}
		self.TakeItem(itemID)
		_, err := combat.ResolveItem(ctx, t.s.src, t.s.scripts, it, self, opp, t.s.log)
		if errors.Is(err, combat.ErrScriptFailed) {
			t.s.logger.Warn("item script failed", zap.String("item", it.Def.Key), zap.Error(err))
			return nil
		}
		return err
	})
}

// Surrender zeroes the acting battler's health.
func (t *Turn) Surrender() error {
	return t.resolve(ActionSurrender, func(self, _ *combat.Combatant) error {
		self.Stats.Zero()
		t.s.log.Add(combat.SurrenderEntry(self.Name))
		return nil
	})
}

// Timeout records that the acting battler did not answer in time. Under
// TimeoutForfeit it also zeroes the battler's health.
func (t *Turn) Timeout() error {
	return t.resolve("timeout", func(self, _ *combat.Combatant) error {
		t.s.log.Add(combat.TimeoutEntry(self.Name))
		if t.s.cfg.TimeoutPolicy == TimeoutForfeit {
			self.Stats.Zero()
		}
		return nil
	})
}

// resolve runs fn under the session lock and marks the turn resolved when fn
// succeeds.
func (t *Turn) resolve(action Action, fn func(self, opp *combat.Combatant) error) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.concluded || t.resolved || t.epoch != s.epoch {
		return ErrStaleSession
	}
	self, opp := s.combatants[t.side], s.combatants[1-t.side]
	if err := fn(self, opp); err != nil {
		return err
	}
	t.resolved = true
	s.logger.Debug("turn resolved",
		zap.Int("turn", s.turns+1),
		zap.String("actor", self.Name),
		zap.String("action", string(action)),
		zap.Int("actor_health", self.Stats.Health),
		zap.Int("opponent_health", opp.Stats.Health),
		zap.Int("actor_armor", self.Stats.Armor),
		zap.Int("opponent_armor", opp.Stats.Armor),
	)
	return nil
}
