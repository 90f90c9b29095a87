package duel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Deps carries everything Challenge and Practice need.
type Deps struct {
	Options
	Interactor Interactor
}

// Challenge runs the invite sub-protocol between challenger and target and,
// if target accepts, the whole duel. A participant already in a duel is
// rejected before target is prompted, and again after acceptance in case a
// duel started in between.
//
// Precondition: challenger and target are distinct users.
// Postcondition: the registry holds neither identity for this session when
// Challenge returns. A non-nil error is paired with OutcomeErrored and the
// participants have been sent NoticeErrored.
func Challenge(ctx context.Context, d Deps, challenger, target Participant) (Result, error) {
	id := uuid.New()
	logger := d.Logger.With(zap.String("session_id", id.String()))
	lc := newLifecycle(StateInviting)
	invite := InviteView{SessionID: id, Challenger: challenger, Target: target, Status: InvitePending}
	users := []string{challenger.UserID, target.UserID}
	fail := func(err error) (Result, error) {
		logger.Error("challenge aborted", zap.Error(err))
		d.notify(ctx, id, users, NoticeErrored)
		return errored(id, err)
	}

	engaged, err := anyEngaged(ctx, d.Registry, users)
	if err != nil {
		return fail(err)
	}
	if engaged {
		return alreadyEngaged(ctx, d, id, users)
	}

	if err := d.Renderer.RenderInvite(ctx, invite); err != nil {
		return fail(fmt.Errorf("duel: rendering invite: %w", err))
	}
	sel, err := d.Interactor.Await(ctx, Prompt{
		SessionID: id,
		UserID:    target.UserID,
		Stage:     StageInvite,
		Actions:   []Action{ActionFight, ActionRun},
		Timeout:   d.Config.InviteTimeout,
	})
	if err != nil {
		return fail(fmt.Errorf("duel: awaiting invite answer: %w", err))
	}

	switch {
	case sel.TimedOut:
		logger.Info("invite timed out", zap.String("target", target.UserID))
		return declined(ctx, d, lc, invite, InviteTimedOut, OutcomeTimedOut, fail)
	case sel.Action == ActionRun:
		logger.Info("invite declined", zap.String("target", target.UserID))
		return declined(ctx, d, lc, invite, InviteRanAway, OutcomeDeclined, fail)
	case sel.Action != ActionFight:
		return fail(protocolError(StageInvite, string(sel.Action)))
	}

	if err := lc.Event(ctx, eventAccept); err != nil {
		return fail(fmt.Errorf("duel: accepting invite: %w", err))
	}
	engaged, err = anyEngaged(ctx, d.Registry, users)
	if err != nil {
		return fail(err)
	}
	if engaged {
		return alreadyEngaged(ctx, d, id, users)
	}

	invite.Status = InviteAccepted
	if err := d.Renderer.RenderInvite(ctx, invite); err != nil {
		return fail(fmt.Errorf("duel: rendering invite: %w", err))
	}

	s, err := newSession(ctx, d.Options, id, lc,
		NewPlayer(challenger, d.Interactor, d.Config.TurnTimeout),
		NewPlayer(target, d.Interactor, d.Config.TurnTimeout),
	)
	if errors.Is(err, ErrAlreadyEngaged) {
		return alreadyEngaged(ctx, d, id, users)
	}
	if err != nil {
		return fail(err)
	}
	return d.run(ctx, s, users)
}

// anyEngaged reports whether any of users is already in a duel.
func anyEngaged(ctx context.Context, reg Registry, users []string) (bool, error) {
	for _, u := range users {
		engaged, err := reg.IsEngaged(ctx, u)
		if err != nil {
			return false, fmt.Errorf("duel: checking registry: %w", err)
		}
		if engaged {
			return true, nil
		}
	}
	return false, nil
}

// Practice runs a duel between challenger and a Dummy, without an invite.
func Practice(ctx context.Context, d Deps, challenger Participant) (Result, error) {
	users := []string{challenger.UserID}
	s, err := NewSession(ctx, d.Options,
		NewPlayer(challenger, d.Interactor, d.Config.TurnTimeout),
		NewDummy("Training Dummy", "🎯"),
	)
	if errors.Is(err, ErrAlreadyEngaged) {
		return alreadyEngaged(ctx, d, uuid.Nil, users)
	}
	if err != nil {
		return errored(uuid.Nil, err)
	}
	return d.run(ctx, s, users)
}

func (d Deps) run(ctx context.Context, s *Session, users []string) (Result, error) {
	res, err := s.Run(ctx)
	if err != nil {
		d.notify(ctx, s.ID(), users, NoticeErrored)
	}
	return res, err
}

func (d Deps) notify(ctx context.Context, id uuid.UUID, users []string, text string) {
	n := Notice{SessionID: id, UserIDs: users, Text: text}
	if err := d.Renderer.RenderNotice(context.WithoutCancel(ctx), n); err != nil {
		d.Logger.Warn("rendering notice", zap.String("session_id", id.String()), zap.Error(err))
	}
}

func declined(ctx context.Context, d Deps, lc *fsm.FSM, invite InviteView, status InviteStatus, outcome Outcome, fail func(error) (Result, error)) (Result, error) {
	if err := lc.Event(ctx, eventDecline); err != nil {
		return fail(fmt.Errorf("duel: declining invite: %w", err))
	}
	invite.Status = status
	if err := d.Renderer.RenderInvite(ctx, invite); err != nil {
		return fail(fmt.Errorf("duel: rendering invite: %w", err))
	}
	if status == InviteTimedOut {
		d.notify(ctx, invite.SessionID, []string{invite.Challenger.UserID}, NoticeInviteTimedOut)
	}
	return Result{SessionID: invite.SessionID, Outcome: outcome}, nil
}

func alreadyEngaged(ctx context.Context, d Deps, id uuid.UUID, users []string) (Result, error) {
	d.notify(ctx, id, users, NoticeAlreadyEngaged)
	return Result{SessionID: id, Outcome: OutcomeAlreadyEngaged}, nil
}

func errored(id uuid.UUID, err error) (Result, error) {
	return Result{SessionID: id, Outcome: OutcomeErrored, Err: err}, err
}
