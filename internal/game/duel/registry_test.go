package duel_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/rpgbot/internal/game/duel"
)

func TestMemoryRegistry_RegisterAndDeregister(t *testing.T) {
	ctx := context.Background()
	r := duel.NewMemoryRegistry()
	id := uuid.New()

	require.NoError(t, r.Register(ctx, id, "a", "b"))
	for _, u := range []string{"a", "b"} {
		ok, err := r.IsEngaged(ctx, u)
		require.NoError(t, err)
		assert.True(t, ok, u)
	}

	require.NoError(t, r.Deregister(ctx, id))
	ok, _ := r.IsEngaged(ctx, "a")
	assert.False(t, ok)
	assert.NoError(t, r.Deregister(ctx, id))
}

func TestMemoryRegistry_RegisterIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	r := duel.NewMemoryRegistry()
	require.NoError(t, r.Register(ctx, uuid.New(), "b"))

	err := r.Register(ctx, uuid.New(), "a", "b")
	require.ErrorIs(t, err, duel.ErrAlreadyEngaged)
	ok, _ := r.IsEngaged(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Sessions())
}

func TestMemoryRegistry_DuplicateSession(t *testing.T) {
	ctx := context.Background()
	r := duel.NewMemoryRegistry()
	id := uuid.New()
	require.NoError(t, r.Register(ctx, id, "a"))
	assert.Error(t, r.Register(ctx, id, "c"))
}

func TestMemoryRegistry_ConcurrentRegisterOneWinner(t *testing.T) {
	ctx := context.Background()
	r := duel.NewMemoryRegistry()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.Register(ctx, uuid.New(), "shared", fmt.Sprintf("u%d", i))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

type failingRegistry struct {
	*duel.MemoryRegistry
	deregisters int
}

func (f *failingRegistry) Deregister(ctx context.Context, id uuid.UUID) error {
	f.deregisters++
	_ = f.MemoryRegistry.Deregister(ctx, id)
	return errors.New("backend unavailable")
}

func TestAcquire_ReleaseIsIdempotent(t *testing.T) {
	reg := &failingRegistry{MemoryRegistry: duel.NewMemoryRegistry()}
	ctx, cancel := context.WithCancel(context.Background())
	release, err := duel.Acquire(ctx, reg, uuid.New(), "a")
	require.NoError(t, err)
	cancel()

	first := release()
	second := release()
	assert.Error(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, reg.deregisters)
	ok, _ := reg.IsEngaged(context.Background(), "a")
	assert.False(t, ok)
}

func TestAcquire_ConflictReturnsNoRelease(t *testing.T) {
	reg := duel.NewMemoryRegistry()
	require.NoError(t, reg.Register(context.Background(), uuid.New(), "a"))

	release, err := duel.Acquire(context.Background(), reg, uuid.New(), "a")
	assert.ErrorIs(t, err, duel.ErrAlreadyEngaged)
	assert.Nil(t, release)
}

func TestParseTimeoutPolicy(t *testing.T) {
	p, err := duel.ParseTimeoutPolicy("forfeit")
	require.NoError(t, err)
	assert.Equal(t, duel.TimeoutForfeit, p)
	_, err = duel.ParseTimeoutPolicy("ignore")
	assert.Error(t, err)
}
