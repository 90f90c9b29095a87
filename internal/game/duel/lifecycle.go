package duel

import (
	"fmt"
	"time"

	"github.com/looplab/fsm"
)

// Lifecycle states.
const (
	StateInviting  = "inviting"
	StateDeclined  = "declined"
	StateAccepted  = "accepted"
	StateTurnLoop  = "turn_loop"
	StateConcluded = "concluded"
)

const (
	eventAccept   = "accept"
	eventDecline  = "decline"
	eventBegin    = "begin"
	eventConclude = "conclude"
)

func newLifecycle(initial string) *fsm.FSM {
	return fsm.NewFSM(initial, fsm.Events{
		{Name: eventAccept, Src: []string{StateInviting}, Dst: StateAccepted},
		{Name: eventDecline, Src: []string{StateInviting}, Dst: StateDeclined},
		{Name: eventBegin, Src: []string{StateAccepted}, Dst: StateTurnLoop},
		{Name: eventConclude, Src: []string{StateInviting, StateAccepted, StateTurnLoop}, Dst: StateConcluded},
	}, fsm.Callbacks{})
}

// TimeoutPolicy decides what a turn timeout does beyond logging it.
type TimeoutPolicy string

const (
	// TimeoutLog records the timeout and passes the turn.
	TimeoutLog TimeoutPolicy = "log"
	// TimeoutForfeit records the timeout and zeroes the battler's health.
	TimeoutForfeit TimeoutPolicy = "forfeit"
)

// ParseTimeoutPolicy converts s to a TimeoutPolicy.
//
// Postcondition: returns an error for anything other than "log" or "forfeit".
func ParseTimeoutPolicy(s string) (TimeoutPolicy, error) {
	switch p := TimeoutPolicy(s); p {
	case TimeoutLog, TimeoutForfeit:
		return p, nil
	}
	return "", fmt.Errorf("duel: unknown timeout policy %q", s)
}

// Config holds the numbers a session is played with.
type Config struct {
	InviteTimeout   time.Duration
	TurnTimeout     time.Duration
	MaxHealth       int
	ItemsPerBattler int
	TimeoutPolicy   TimeoutPolicy
	RecentEntries   int
	SummaryEntries  int
}

// DefaultConfig returns the standard duel rules.
func DefaultConfig() Config {
	return Config{
		InviteTimeout:   time.Minute,
		TurnTimeout:     time.Minute,
		MaxHealth:       100,
		ItemsPerBattler: 3,
		TimeoutPolicy:   TimeoutLog,
		RecentEntries:   3,
		SummaryEntries:  30,
	}
}
