package duel_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
	"github.com/cory-johannsen/rpgbot/internal/game/duel"
)

var (
	axe = combat.Weapon{Key: "axe", Name: "Axe", Icon: "🪓", MinDamage: 1000, MaxDamage: 1000, Crit: dice.Percent(0), CritMultiplier: 1}
	pin = combat.Weapon{Key: "pin", Name: "Pin", Icon: "📍", MinDamage: 1, MaxDamage: 1, Crit: dice.Percent(0), CritMultiplier: 1}

	alice = duel.Participant{UserID: "u-alice", Name: "Alice", Icon: "a.png"}
	bob   = duel.Participant{UserID: "u-bob", Name: "Bob", Icon: "b.png"}
)

type fixedCatalog struct {
	weapon combat.Weapon
	items  []*combat.ItemDef
}

func (c fixedCatalog) RandomWeapon(dice.Source) (combat.Weapon, error) { return c.weapon, nil }
func (c fixedCatalog) Items() []*combat.ItemDef                        { return c.items }

// step produces the selection for one prompt.
type step func(p duel.Prompt) duel.Selection

func pick(a duel.Action) step {
	return func(duel.Prompt) duel.Selection { return duel.Selection{Action: a} }
}

func timedOut(duel.Prompt) duel.Selection { return duel.Selection{TimedOut: true} }

func firstItem(p duel.Prompt) duel.Selection {
	return duel.Selection{Action: duel.ActionItem, Value: p.Items[0].ID}
}

// scriptedInteractor answers each user's prompts from a per-user script.
type scriptedInteractor struct {
	mu      sync.Mutex
	scripts map[string][]step
	prompts []duel.Prompt
	// onAwait, when set, runs before each answer.
	onAwait func(p duel.Prompt)
}

func newInteractor(scripts map[string][]step) *scriptedInteractor {
	return &scriptedInteractor{scripts: scripts}
}

func (s *scriptedInteractor) Await(_ context.Context, p duel.Prompt) (duel.Selection, error) {
	if s.onAwait != nil {
		s.onAwait(p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)
	queue := s.scripts[p.UserID]
	if len(queue) == 0 {
		return duel.Selection{}, fmt.Errorf("no selection scripted for %s", p.UserID)
	}
	s.scripts[p.UserID] = queue[1:]
	return queue[0](p), nil
}

func (s *scriptedInteractor) Prompts() []duel.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]duel.Prompt(nil), s.prompts...)
}

// repeat returns a script of n copies of st.
func repeat(st step, n int) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = st
	}
	return out
}

type recordingRenderer struct {
	mu        sync.Mutex
	invites   []duel.InviteView
	turns     []duel.TurnView
	summaries []duel.SummaryView
	notices   []duel.Notice
}

func (r *recordingRenderer) RenderInvite(_ context.Context, v duel.InviteView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invites = append(r.invites, v)
	return nil
}

func (r *recordingRenderer) RenderTurn(_ context.Context, v duel.TurnView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, v)
	return nil
}

func (r *recordingRenderer) RenderSummary(_ context.Context, v duel.SummaryView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, v)
	return nil
}

func (r *recordingRenderer) RenderNotice(_ context.Context, n duel.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

// battlerFunc is a Battler whose turn logic is supplied by the test.
type battlerFunc struct {
	id     uuid.UUID
	userID string
	name   string
	fn     func(ctx context.Context, t *duel.Turn) error
}

func newBattler(userID, name string, fn func(ctx context.Context, t *duel.Turn) error) *battlerFunc {
	return &battlerFunc{id: uuid.New(), userID: userID, name: name, fn: fn}
}

func (b *battlerFunc) ID() uuid.UUID                                    { return b.id }
func (b *battlerFunc) UserID() (string, bool)                           { return b.userID, b.userID != "" }
func (b *battlerFunc) Name() string                                     { return b.name }
func (b *battlerFunc) Icon() string                                     { return "" }
func (b *battlerFunc) TakeTurn(ctx context.Context, t *duel.Turn) error { return b.fn(ctx, t) }

func attacker(_ context.Context, t *duel.Turn) error { return t.Attack() }

// zeroBoth is a script runner whose every item drops both sides to zero.
type zeroBoth struct{}

func (zeroBoth) RunItem(_ context.Context, _ dice.Source, it *combat.Item, user, opp *combat.Combatant, log *combat.Log) error {
	user.Stats.Zero()
	opp.Stats.Zero()
	log.Add(combat.ItemEntry(it.Def.Icon, user.Name+" detonated a "+it.Def.Name+"."))
	return nil
}

var bomb = &combat.ItemDef{Key: "bomb", Name: "Bomb", Icon: "💣", Kind: combat.ItemScript, Script: "boom()"}

type fixture struct {
	opts     duel.Options
	registry *duel.MemoryRegistry
	renderer *recordingRenderer
}

func newFixture(t *testing.T, seed uint64, cat fixedCatalog) *fixture {
	t.Helper()
	reg := duel.NewMemoryRegistry()
	r := &recordingRenderer{}
	return &fixture{
		registry: reg,
		renderer: r,
		opts: duel.Options{
			Config:   duel.DefaultConfig(),
			Source:   dice.NewSeededSource(seed),
			Catalog:  cat,
			Renderer: r,
			Registry: reg,
			Logger:   zaptest.NewLogger(t),
		},
	}
}

func (f *fixture) deps(in duel.Interactor) duel.Deps {
	return duel.Deps{Options: f.opts, Interactor: in}
}

func (f *fixture) engaged(t *testing.T, users ...string) []bool {
	t.Helper()
	out := make([]bool, 0, len(users))
	for _, u := range users {
		ok, err := f.registry.IsEngaged(context.Background(), u)
		if err != nil {
			t.Fatalf("IsEngaged(%s): %v", u, err)
		}
		out = append(out, ok)
	}
	return out
}
