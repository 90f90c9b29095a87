package duel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which external identities are currently in a duel.
//
// Implementations MUST be safe for concurrent use.
type Registry interface {
	// IsEngaged reports whether userID is part of a registered session.
	IsEngaged(ctx context.Context, userID string) (bool, error)
	// Register records userIDs as engaged in sessionID.
	//
	// Postcondition: either every userID is registered, or none are and the
	// error wraps ErrAlreadyEngaged.
	Register(ctx context.Context, sessionID uuid.UUID, userIDs ...string) error
	// Deregister removes every identity registered under sessionID. Unknown
	// sessions are not an error.
	Deregister(ctx context.Context, sessionID uuid.UUID) error
}

// Refresher is implemented by registries whose entries expire on their own.
// A running session calls Refresh at the start of every turn so its entries
// outlive any number of turns.
type Refresher interface {
	// Refresh extends the lifetime of every entry held by sessionID. Unknown
	// sessions are not an error.
	Refresh(ctx context.Context, sessionID uuid.UUID) error
}

// MemoryRegistry is the in-process Registry.
// All methods are safe for concurrent use.
type MemoryRegistry struct {
	mu       sync.RWMutex
	engaged  map[string]uuid.UUID
	sessions map[uuid.UUID][]string
}

// NewMemoryRegistry creates an empty MemoryRegistry.
//
// Postcondition: Returns a non-nil registry ready for use.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		engaged:  make(map[string]uuid.UUID),
		sessions: make(map[uuid.UUID][]string),
	}
}

// IsEngaged implements Registry.
func (r *MemoryRegistry) IsEngaged(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engaged[userID]
	return ok, nil
}

// Register implements Registry.
//
// Precondition: sessionID must not already be registered.
func (r *MemoryRegistry) Register(_ context.Context, sessionID uuid.UUID, userIDs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return fmt.Errorf("duel: session %s already registered", sessionID)
	}
	for _, id := range userIDs {
		if other, ok := r.engaged[id]; ok {
			return fmt.Errorf("%w: %q is in session %s", ErrAlreadyEngaged, id, other)
		}
	}
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, dup := r.engaged[id]; dup {
			continue
		}
		r.engaged[id] = sessionID
		ids = append(ids, id)
	}
	r.sessions[sessionID] = ids
	return nil
}

// Deregister implements Registry.
func (r *MemoryRegistry) Deregister(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.sessions[sessionID] {
		delete(r.engaged, id)
	}
	delete(r.sessions, sessionID)
	return nil
}

// Sessions returns the number of registered sessions.
func (r *MemoryRegistry) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Release undoes an Acquire. Calling it more than once is safe; later calls
// return the first call's result.
type Release func() error

// Acquire registers userIDs under sessionID and returns the matching Release.
// Release deregisters with a context detached from ctx's cancellation so
// teardown still runs after the caller's context is done.
//
// Postcondition: on error nothing is registered and the Release is nil.
func Acquire(ctx context.Context, reg Registry, sessionID uuid.UUID, userIDs ...string) (Release, error) {
	if err := reg.Register(ctx, sessionID, userIDs...); err != nil {
		return nil, err
	}
	detached := context.WithoutCancel(ctx)
	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() {
			err = reg.Deregister(detached, sessionID)
		})
		return err
	}, nil
}
