// Package gateway exposes duels over HTTP. The Hub turns button presses posted
// by chat clients into duel selections and keeps the latest rendered text of
// every duel for clients to poll.
package gateway

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rpgbot/internal/game/duel"
	"github.com/cory-johannsen/rpgbot/internal/render"
)

// ErrNoWaiter is returned by Press when the user has no open prompt in the
// session.
var ErrNoWaiter = errors.New("gateway: no pending prompt for user in session")

// DefaultTimeout bounds a wait whose prompt carries no timeout.
const DefaultTimeout = time.Minute

// ViewKind names what a View last showed.
type ViewKind string

const (
	ViewInvite  ViewKind = "invite"
	ViewTurn    ViewKind = "turn"
	ViewSummary ViewKind = "summary"
)

// View is the latest display of one duel.
type View struct {
	SessionID uuid.UUID `json:"session_id"`
	Kind      ViewKind  `json:"kind"`
	Text      string    `json:"text"`
	Notices   []string  `json:"notices,omitempty"`
	Updated   time.Time `json:"updated"`
}

// waitKey scopes an open prompt to one user in one duel. A user may be
// prompted by several duels at once, e.g. invited while fighting.
type waitKey struct {
	session uuid.UUID
	user    string
}

type waiter struct {
	prompt duel.Prompt
	seq    uint64
	ch     chan duel.Selection
}

// Hub implements duel.Interactor and duel.Renderer for HTTP clients.
// All methods are safe for concurrent use.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	seq     uint64
	waiters map[waitKey]*waiter
	// TODO: evict concluded views once clients have had a chance to fetch the summary.
	views map[uuid.UUID]*View
}

// NewHub returns an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		waiters: make(map[waitKey]*waiter),
		views:   make(map[uuid.UUID]*View),
	}
}

// Await opens p for p.UserID in p.SessionID and blocks until Press answers it,
// the prompt's timeout elapses or ctx is done. Prompts of other sessions for
// the same user are left untouched.
//
// Postcondition: the prompt is closed when Await returns.
func (h *Hub) Await(ctx context.Context, p duel.Prompt) (duel.Selection, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	key := waitKey{session: p.SessionID, user: p.UserID}
	w := &waiter{prompt: p, ch: make(chan duel.Selection, 1)}

	h.mu.Lock()
	if prev, ok := h.waiters[key]; ok {
		h.logger.Warn("replacing open prompt",
			zap.String("user_id", p.UserID),
			zap.String("session_id", p.SessionID.String()),
			zap.String("previous_stage", string(prev.prompt.Stage)),
		)
	}
	h.seq++
	w.seq = h.seq
	h.waiters[key] = w
	h.mu.Unlock()
	defer h.close(key, w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sel := <-w.ch:
		return sel, nil
	case <-timer.C:
		// A press may have landed as the timer fired.
		select {
		case sel := <-w.ch:
			return sel, nil
		default:
			return duel.Selection{TimedOut: true}, nil
		}
	case <-ctx.Done():
		return duel.Selection{}, ctx.Err()
	}
}

func (h *Hub) close(key waitKey, w *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.waiters[key] == w {
		delete(h.waiters, key)
	}
}

// Press answers the open prompt of userID in sessionID. The action is
// delivered as given; rejecting identifiers the prompt did not offer is the
// engine's job.
//
// Postcondition: returns ErrNoWaiter when userID has no open prompt in
// sessionID; a prompt is answered at most once.
func (h *Hub) Press(sessionID uuid.UUID, userID string, action duel.Action, value string) error {
	key := waitKey{session: sessionID, user: userID}
	h.mu.Lock()
	w, ok := h.waiters[key]
	if ok {
		delete(h.waiters, key)
	}
	h.mu.Unlock()
	if !ok {
		return ErrNoWaiter
	}
	w.ch <- duel.Selection{Action: action, Value: value}
	return nil
}

// Pending returns the open prompts of userID across all sessions, oldest
// first.
func (h *Hub) Pending(userID string) []duel.Prompt {
	h.mu.Lock()
	var open []*waiter
	for key, w := range h.waiters {
		if key.user == userID {
			open = append(open, w)
		}
	}
	h.mu.Unlock()
	slices.SortFunc(open, func(a, b *waiter) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]duel.Prompt, 0, len(open))
	for _, w := range open {
		out = append(out, w.prompt)
	}
	return out
}

// View returns a copy of the latest display of session id.
func (h *Hub) View(id uuid.UUID) (View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.views[id]
	if !ok {
		return View{}, false
	}
	out := *v
	out.Notices = append([]string(nil), v.Notices...)
	return out, true
}

// RenderInvite implements duel.Renderer.
func (h *Hub) RenderInvite(_ context.Context, v duel.InviteView) error {
	h.store(v.SessionID, ViewInvite, render.Invite(v))
	return nil
}

// RenderTurn implements duel.Renderer.
func (h *Hub) RenderTurn(_ context.Context, v duel.TurnView) error {
	h.store(v.SessionID, ViewTurn, render.Turn(v))
	return nil
}

// RenderSummary implements duel.Renderer.
func (h *Hub) RenderSummary(_ context.Context, v duel.SummaryView) error {
	h.store(v.SessionID, ViewSummary, render.Summary(v))
	return nil
}

// RenderNotice implements duel.Renderer. Notices accumulate on the session's
// view; a notice for a session with nothing rendered yet starts an empty one.
func (h *Hub) RenderNotice(_ context.Context, n duel.Notice) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := h.view(n.SessionID)
	v.Notices = append(v.Notices, n.Text)
	v.Updated = time.Now()
	return nil
}

func (h *Hub) store(id uuid.UUID, kind ViewKind, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := h.view(id)
	v.Kind = kind
	v.Text = text
	v.Updated = time.Now()
}

// view returns the stored view for id, creating it.
//
// Precondition: h.mu must be held.
func (h *Hub) view(id uuid.UUID) *View {
	v, ok := h.views[id]
	if !ok {
		v = &View{SessionID: id}
		h.views[id] = v
	}
	return v
}
