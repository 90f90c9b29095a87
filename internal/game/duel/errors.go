package duel

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol is returned when the interaction collaborator delivers an
	// action identifier outside the set offered for the current stage. It is
	// fatal for the session.
	ErrProtocol = errors.New("duel: protocol violation")

	// ErrStaleSession is returned when a Turn handle is used after its turn
	// resolved or after the session concluded.
	ErrStaleSession = errors.New("duel: stale session reference")

	// ErrAlreadyEngaged is returned by Registry.Register when any identity is
	// already in a duel.
	ErrAlreadyEngaged = errors.New("duel: participant already engaged")

	// ErrUnknownItem is returned by Turn.UseItem for an id not in the acting
	// battler's inventory. No state is changed.
	ErrUnknownItem = errors.New("duel: item not in inventory")

	// ErrTurnUnresolved is returned when a battler's TakeTurn returns without
	// resolving an action.
	ErrTurnUnresolved = fmt.Errorf("%w: turn returned without an action", ErrProtocol)
)

func protocolError(stage Stage, id string) error {
	return fmt.Errorf("%w: unexpected action %q at %s stage", ErrProtocol, id, stage)
}
