package scripting

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// ItemRunner executes ItemScript effects. Each run gets a fresh sandbox;
// compiled chunks are cached by item key and source.
//
// ItemRunner is safe for concurrent use.
type ItemRunner struct {
	limit  int
	logger *zap.Logger

	mu     sync.RWMutex
	protos map[string]*lua.FunctionProto
}

// NewItemRunner creates an ItemRunner whose scripts may execute at most
// instLimit opcodes per run.
//
// Precondition: logger must be non-nil; instLimit >= 0 (0 uses the default).
func NewItemRunner(instLimit int, logger *zap.Logger) *ItemRunner {
	return &ItemRunner{
		limit:  instLimit,
		logger: logger,
		protos: make(map[string]*lua.FunctionProto),
	}
}

// Compile parses and compiles an item script, caching the result.
//
// Postcondition: returns a syntax error without caching when src is invalid.
func (r *ItemRunner) Compile(key, src string) (*lua.FunctionProto, error) {
	cacheKey := key + "\x00" + src
	r.mu.RLock()
	proto, ok := r.protos[cacheKey]
	r.mu.RUnlock()
	if ok {
		return proto, nil
	}

	chunk, err := parse.Parse(strings.NewReader(src), key)
	if err != nil {
		return nil, fmt.Errorf("scripting: parsing item %q: %w", key, err)
	}
	proto, err = lua.Compile(chunk, key)
	if err != nil {
		return nil, fmt.Errorf("scripting: compiling item %q: %w", key, err)
	}

	r.mu.Lock()
	r.protos[cacheKey] = proto
	r.mu.Unlock()
	return proto, nil
}

// RunItem implements combat.ScriptRunner.
//
// Precondition: item.Def.Kind is ItemScript; caller holds exclusive access to
// user and opponent.
// Postcondition: a runtime error, an exceeded instruction limit, or a
// cancelled ctx is returned as an error; entries logged before the failure
// remain in log.
func (r *ItemRunner) RunItem(ctx context.Context, src dice.Source, item *combat.Item, user, opponent *combat.Combatant, log *combat.Log) error {
	proto, err := r.Compile(item.Def.Key, item.Def.Script)
	if err != nil {
		return err
	}

	L, cancel := newSandbox(ctx, r.limit)
	defer L.Close()
	defer cancel()

	RegisterModules(L, Bindings{Source: src, Item: item, User: user, Opponent: opponent, Log: log})

	before := log.Len()
	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		r.logger.Warn("scripting: item script failed",
			zap.String("item", item.Def.Key),
			zap.String("user", user.Name),
			zap.Error(err),
		)
		return fmt.Errorf("scripting: running item %q: %w", item.Def.Key, err)
	}
	r.logger.Debug("scripting: item script ran",
		zap.String("item", item.Def.Key),
		zap.String("user", user.Name),
		zap.Int("entries", log.Len()-before),
	)
	return nil
}
