package duel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
)

// Action is an identifier delivered by the interaction collaborator.
type Action string

const (
	ActionFight     Action = "fight"
	ActionRun       Action = "run"
	ActionAttack    Action = "attack"
	ActionItem      Action = "item"
	ActionSurrender Action = "surrender"
	ActionBack      Action = "back"
)

// Stage names the prompt an Action answers.
type Stage string

const (
	StageInvite   Stage = "invite"
	StageTurn     Stage = "turn"
	StageItemMenu Stage = "item_menu"
)

// Prompt asks one user for one selection.
type Prompt struct {
	SessionID uuid.UUID
	UserID    string
	Stage     Stage
	// Actions lists the identifiers offered, in display order.
	Actions []Action
	// Items is the inventory offered by an item menu.
	Items []combat.ItemView
	// Timeout bounds the wait; zero means the collaborator's default.
	Timeout time.Duration
}

// Selection is the answer to a Prompt. When TimedOut is set Action and Value
// are empty.
type Selection struct {
	Action Action
	// Value carries the item id for item menu selections.
	Value    string
	TimedOut bool
}

// Interactor is the bounded wait for a specific user's selection.
//
// Await MUST return a TimedOut selection, not an error, once the prompt's
// timeout elapses. Errors are reserved for ctx cancellation and transport
// failures.
type Interactor interface {
	Await(ctx context.Context, p Prompt) (Selection, error)
}

// Renderer is the display sink. The session calls it without holding any
// lock, after every state change.
type Renderer interface {
	RenderInvite(ctx context.Context, v InviteView) error
	RenderTurn(ctx context.Context, v TurnView) error
	RenderSummary(ctx context.Context, v SummaryView) error
	RenderNotice(ctx context.Context, n Notice) error
}

// Battler is a duel participant. The session owns the participant's combat
// state; a Battler reads and mutates it only through the Turn it is handed.
type Battler interface {
	// ID is unique for the lifetime of the session.
	ID() uuid.UUID
	// UserID returns the external identity, if any.
	UserID() (string, bool)
	Name() string
	Icon() string
	// TakeTurn resolves exactly one of Attack, UseItem, Surrender or Timeout
	// on t. It is the only operation that may block.
	TakeTurn(ctx context.Context, t *Turn) error
}

// Participant identifies a human invited to or issuing a duel.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
}

// InviteStatus tracks the invite sub-protocol.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRanAway  InviteStatus = "ran_away"
	InviteTimedOut InviteStatus = "timed_out"
)

// InviteView is the displayable state of an invite.
type InviteView struct {
	SessionID  uuid.UUID    `json:"session_id"`
	Challenger Participant  `json:"challenger"`
	Target     Participant  `json:"target"`
	Status     InviteStatus `json:"status"`
}

// TurnView is the displayable state at the start of, or during, a turn.
type TurnView struct {
	SessionID uuid.UUID   `json:"session_id"`
	Number    int         `json:"number"`
	ActingID  string      `json:"acting_id"`
	P1        combat.View `json:"p1"`
	P2        combat.View `json:"p2"`
	// Recent holds the latest log lines, most recent first.
	Recent []string `json:"recent"`
}

// Acting returns the view of the battler whose turn it is.
func (v TurnView) Acting() combat.View {
	if v.P2.ID == v.ActingID {
		return v.P2
	}
	return v.P1
}

// SummaryView is the displayable terminal state.
type SummaryView struct {
	SessionID uuid.UUID    `json:"session_id"`
	P1        combat.View  `json:"p1"`
	P2        combat.View  `json:"p2"`
	Winner    *combat.View `json:"winner,omitempty"`
	Tie       bool         `json:"tie"`
	Turns     int          `json:"turns"`
	// Log holds up to the summary window of lines, most recent first.
	Log []string `json:"log"`
}

// Notice is a one-off message for the listed users.
type Notice struct {
	SessionID uuid.UUID `json:"session_id"`
	UserIDs   []string  `json:"user_ids"`
	Text      string    `json:"text"`
}

// Notice texts.
const (
	NoticeAlreadyEngaged = "You cannot be in two battles at once."
	NoticeInviteTimedOut = "The invitation timed out."
	NoticeErrored        = "The duel encountered an error."
)

// Outcome classifies how a duel or invite ended.
type Outcome string

const (
	OutcomeWinner         Outcome = "winner"
	OutcomeTie            Outcome = "tie"
	OutcomeDeclined       Outcome = "declined"
	OutcomeTimedOut       Outcome = "timed_out"
	OutcomeAlreadyEngaged Outcome = "already_engaged"
	OutcomeErrored        Outcome = "errored"
)

// Result is the terminal state reported to the caller.
type Result struct {
	SessionID uuid.UUID
	Outcome   Outcome
	// Winner and Loser are set only for OutcomeWinner.
	Winner *combat.View
	Loser  *combat.View
	Turns  int
	// Err is set only for OutcomeErrored.
	Err error
}
