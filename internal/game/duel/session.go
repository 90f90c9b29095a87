package duel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// Catalog supplies the weapons and items dealt at session start.
type Catalog interface {
	RandomWeapon(src dice.Source) (combat.Weapon, error)
	Items() []*combat.ItemDef
}

// Options carries a session's collaborators.
type Options struct {
	Config   Config
	Source   dice.Source
	Catalog  Catalog
	Scripts  combat.ScriptRunner
	Renderer Renderer
	Registry Registry
	Logger   *zap.Logger
}

func (o Options) validate() error {
	var errs []error
	if o.Source == nil {
		errs = append(errs, errors.New("source must not be nil"))
	}
	if o.Catalog == nil {
		errs = append(errs, errors.New("catalog must not be nil"))
	}
	if o.Renderer == nil {
		errs = append(errs, errors.New("renderer must not be nil"))
	}
	if o.Registry == nil {
		errs = append(errs, errors.New("registry must not be nil"))
	}
	if o.Logger == nil {
		errs = append(errs, errors.New("logger must not be nil"))
	}
	if o.Config.MaxHealth <= 0 {
		errs = append(errs, fmt.Errorf("max health must be > 0, got %d", o.Config.MaxHealth))
	}
	if len(errs) > 0 {
		return fmt.Errorf("duel: invalid options: %w", errors.Join(errs...))
	}
	return nil
}

// Session is one duel from acceptance to conclusion. It owns both battlers'
// combat state and the log; battlers reach that state only through Turn.
//
// The mutex guards combatants, log writes, side, turns, epoch and concluded.
// It is never held while a battler waits for input or while rendering.
type Session struct {
	id       uuid.UUID
	cfg      Config
	src      dice.Source
	scripts  combat.ScriptRunner
	render   Renderer
	logger   *zap.Logger
	lc       *fsm.FSM
	registry Registry
	release  Release

	battlers [2]Battler

	mu         sync.RWMutex
	combatants [2]*combat.Combatant
	log        *combat.Log
	side       int
	turns      int
	epoch      uint64
	concluded  bool
}

// NewSession creates a session between p1 and p2 and registers their external
// identities in opts.Registry.
//
// Precondition: p1 and p2 are distinct battlers.
// Postcondition: on success both identities are registered until Run returns
// or Close is called; on error nothing is registered. An error wrapping
// ErrAlreadyEngaged means one of the identities is in another duel.
func NewSession(ctx context.Context, opts Options, p1, p2 Battler) (*Session, error) {
	return newSession(ctx, opts, uuid.New(), newLifecycle(StateAccepted), p1, p2)
}

func newSession(ctx context.Context, opts Options, id uuid.UUID, lc *fsm.FSM, p1, p2 Battler) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	s := &Session{
		id:       id,
		cfg:      opts.Config,
		src:      opts.Source,
		scripts:  opts.Scripts,
		render:   opts.Renderer,
		logger:   opts.Logger.With(zap.String("session_id", id.String())),
		lc:       lc,
		registry: opts.Registry,
		battlers: [2]Battler{p1, p2},
		log:      combat.NewLog(),
	}
	for i, b := range s.battlers {
		w, err := opts.Catalog.RandomWeapon(s.src)
		if err != nil {
			return nil, fmt.Errorf("duel: assigning weapon to %s: %w", b.Name(), err)
		}
		userID, _ := b.UserID()
		items := combat.DrawItems(s.src, opts.Catalog.Items(), s.cfg.ItemsPerBattler)
		s.combatants[i] = combat.NewCombatant(b.ID(), userID, b.Name(), b.Icon(), i == 0, s.cfg.MaxHealth, w, items)
	}
	if dice.Coin(s.src) {
		s.side = 1
	}

	release, err := Acquire(ctx, opts.Registry, id, s.userIDs()...)
	if err != nil {
		return nil, err
	}
	s.release = release
	return s, nil
}

func (s *Session) userIDs() []string {
	var ids []string
	for _, b := range s.battlers {
		if id, ok := b.UserID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() string { return s.lc.Current() }

// Views snapshots both battlers in display order.
func (s *Session) Views() (p1, p2 combat.View) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.combatants[0].View(), s.combatants[1].View()
}

// Close deregisters the session without running it. It is safe to call after
// Run and more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.concluded = true
	s.mu.Unlock()
	return s.release()
}

// Run drives the turn loop until a battler reaches zero health, then renders
// the summary.
//
// Precondition: Run is called at most once.
// Postcondition: the registry entry is removed on every return path, including
// panics inside a battler. A non-nil error is paired with OutcomeErrored and
// wraps ErrProtocol or ErrStaleSession for the fatal categories.
func (s *Session) Run(ctx context.Context) (res Result, err error) {
	defer func() {
		if rerr := s.release(); rerr != nil {
			s.logger.Error("deregistering session", zap.Error(rerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("duel: session %s panicked: %v", s.id, r)
		}
		if err != nil {
			s.abort(ctx)
			s.logger.Error("duel aborted", zap.Error(err))
			res = Result{SessionID: s.id, Outcome: OutcomeErrored, Turns: s.turnCount(), Err: err}
		}
	}()

	if err := s.lc.Event(ctx, eventBegin); err != nil {
		return Result{}, fmt.Errorf("duel: starting session %s: %w", s.id, err)
	}
	p1, p2 := s.Views()
	s.logger.Info("duel started",
		zap.String("p1", p1.Name),
		zap.String("p2", p2.Name),
		zap.String("p1_weapon", p1.WeaponName),
		zap.String("p2_weapon", p2.WeaponName),
	)

	for s.bothAlive() {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("duel: session %s: %w", s.id, err)
		}
		if err := s.playTurn(ctx); err != nil {
			return Result{}, err
		}
	}
	return s.conclude(ctx)
}

func (s *Session) bothAlive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.combatants[0].Stats.Alive() && s.combatants[1].Stats.Alive()
}

func (s *Session) turnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turns
}

// playTurn hands the acting battler a fresh Turn and flips the side once the
// battler has resolved it.
func (s *Session) playTurn(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	t := &Turn{s: s, epoch: s.epoch, side: s.side}
	actor := s.battlers[s.side]
	s.mu.Unlock()

	if err := t.Render(ctx); err != nil {
		return err
	}
	if err := actor.TakeTurn(ctx, t); err != nil {
		return fmt.Errorf("duel: %s's turn: %w", actor.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.resolved {
		return fmt.Errorf("duel: %s: %w", actor.Name(), ErrTurnUnresolved)
	}
	s.epoch++
	s.turns++
	s.side = 1 - s.side
	return nil
}

// refresh extends the registry entries of a session whose registry expires
// them. It runs whenever a turn view is rendered, so every prompt, including
// a return from the item menu, keeps the entries alive. A failed refresh is
// logged; the entries keep the lifetime they had.
func (s *Session) refresh(ctx context.Context) {
	r, ok := s.registry.(Refresher)
	if !ok {
		return
	}
	if err := r.Refresh(ctx, s.id); err != nil {
		s.logger.Warn("refreshing registry entries", zap.Error(err))
	}
}

func (s *Session) conclude(ctx context.Context) (Result, error) {
	s.mu.Lock()
	s.concluded = true
	s.epoch++
	p1, p2 := s.combatants[0].View(), s.combatants[1].View()
	turns := s.turns
	lines := s.log.Lines(s.cfg.SummaryEntries)
	s.mu.Unlock()

	if err := s.lc.Event(context.WithoutCancel(ctx), eventConclude); err != nil {
		return Result{}, fmt.Errorf("duel: concluding session %s: %w", s.id, err)
	}

	res := Result{SessionID: s.id, Turns: turns}
	summary := SummaryView{SessionID: s.id, P1: p1, P2: p2, Turns: turns, Log: lines}
	switch {
	case p1.Health > 0:
		res.Outcome, res.Winner, res.Loser = OutcomeWinner, &p1, &p2
	case p2.Health > 0:
		res.Outcome, res.Winner, res.Loser = OutcomeWinner, &p2, &p1
	default:
		res.Outcome = OutcomeTie
		summary.Tie = true
	}
	summary.Winner = res.Winner

	if res.Outcome == OutcomeTie {
		s.logger.Info("duel concluded", zap.Bool("tie", true), zap.Int("turns", turns))
	} else {
		s.logger.Info("duel concluded", zap.String("winner", res.Winner.Name), zap.Int("turns", turns))
	}
	if err := s.render.RenderSummary(ctx, summary); err != nil {
		return Result{}, fmt.Errorf("duel: rendering summary: %w", err)
	}
	return res, nil
}

// abort marks the session concluded after a fatal error so outstanding Turn
// handles go stale.
func (s *Session) abort(ctx context.Context) {
	s.mu.Lock()
	s.concluded = true
	s.epoch++
	s.mu.Unlock()
	if !s.lc.Is(StateConcluded) {
		if err := s.lc.Event(context.WithoutCancel(ctx), eventConclude); err != nil {
			s.logger.Warn("concluding aborted session", zap.Error(err))
		}
	}
}

func (s *Session) turnView(side int) TurnView {
	return TurnView{
		SessionID: s.id,
		Number:    s.turns + 1,
		ActingID:  s.combatants[side].ID.String(),
		P1:        s.combatants[0].View(),
		P2:        s.combatants[1].View(),
		Recent:    s.log.Lines(s.cfg.RecentEntries),
	}
}
