package duel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
)

// Player is a human battler driven by an Interactor.
type Player struct {
	id      uuid.UUID
	p       Participant
	in      Interactor
	timeout time.Duration
}

// NewPlayer creates a Player for p whose prompts wait at most timeout.
//
// Precondition: p.UserID must be non-empty; in must be non-nil.
func NewPlayer(p Participant, in Interactor, timeout time.Duration) *Player {
	return &Player{id: uuid.New(), p: p, in: in, timeout: timeout}
}

func (p *Player) ID() uuid.UUID          { return p.id }
func (p *Player) UserID() (string, bool) { return p.p.UserID, true }
func (p *Player) Name() string           { return p.p.Name }
func (p *Player) Icon() string           { return p.p.Icon }

// TakeTurn prompts for attack, item or surrender. Leaving the item menu, by
// choosing back or letting it time out, returns to the top-level prompt
// without spending the turn. A top-level timeout resolves the turn as a
// Timeout.
func (p *Player) TakeTurn(ctx context.Context, t *Turn) error {
	for {
		self := t.Self()
		actions := []Action{ActionAttack}
		if len(self.Items) > 0 {
			actions = append(actions, ActionItem)
		}
		actions = append(actions, ActionSurrender)

		sel, err := p.in.Await(ctx, Prompt{
			SessionID: t.SessionID(),
			UserID:    p.p.UserID,
			Stage:     StageTurn,
			Actions:   actions,
			Timeout:   p.timeout,
		})
		if err != nil {
			return fmt.Errorf("awaiting turn action: %w", err)
		}
		if sel.TimedOut {
			return t.Timeout()
		}

		switch sel.Action {
		case ActionAttack:
			return t.Attack()
		case ActionSurrender:
			return t.Surrender()
		case ActionItem:
			used, err := p.itemMenu(ctx, t, self.Items)
			if err != nil || used {
				return err
			}
			if err := t.Render(ctx); err != nil {
				return err
			}
		default:
			return protocolError(StageTurn, string(sel.Action))
		}
	}
}

// itemMenu offers the inventory plus back. It reports whether an item was used.
func (p *Player) itemMenu(ctx context.Context, t *Turn, items []combat.ItemView) (bool, error) {
	actions := []Action{ActionBack}
	if len(items) > 0 {
		actions = []Action{ActionItem, ActionBack}
	}
	sel, err := p.in.Await(ctx, Prompt{
		SessionID: t.SessionID(),
		UserID:    p.p.UserID,
		Stage:     StageItemMenu,
		Actions:   actions,
		Items:     items,
		Timeout:   p.timeout,
	})
	if err != nil {
		return false, fmt.Errorf("awaiting item selection: %w", err)
	}
	if sel.TimedOut {
		return false, nil
	}
	switch sel.Action {
	case ActionBack:
		return false, nil
	case ActionItem:
		err := t.UseItem(ctx, sel.Value)
		if errors.Is(err, ErrUnknownItem) {
			return false, fmt.Errorf("%w: %w", protocolError(StageItemMenu, sel.Value), err)
		}
		return err == nil, err
	default:
		return false, protocolError(StageItemMenu, string(sel.Action))
	}
}
