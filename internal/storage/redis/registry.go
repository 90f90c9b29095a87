// Package redisstore keeps the active-duel registry in Redis so several
// duel server processes can share one view of who is fighting.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/rpgbot/internal/config"
	"github.com/cory-johannsen/rpgbot/internal/game/duel"
)

// DefaultTTL expires registry keys left behind by a process that died
// mid-duel. Running sessions push the expiry forward on every turn through
// Refresh, so it only needs to outlast one turn.
const DefaultTTL = 2 * time.Hour

// Register result codes returned by registerScript.
const (
	registered       = 0
	conflictEngaged  = 1
	conflictSessions = 2
)

// registerScript claims every user key for ARGV[1] or none of them.
//
// KEYS[1] is the session set; KEYS[2..] are the per-user keys.
// ARGV[1] is the session id, ARGV[2] the TTL in ms, ARGV[3..] the user ids.
var registerScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 2
end
for i = 2, #KEYS do
	if redis.call("EXISTS", KEYS[i]) == 1 then
		return 1
	end
end
for i = 2, #KEYS do
	redis.call("SET", KEYS[i], ARGV[1], "PX", ARGV[2])
	redis.call("SADD", KEYS[1], ARGV[i + 1])
end
if #KEYS == 1 then
	redis.call("SADD", KEYS[1], "")
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 0
`)

// deregisterScript releases the user keys still held by ARGV[1] and drops the
// session set.
//
// KEYS[1] is the session set; KEYS[2..] are the per-user keys.
var deregisterScript = redis.NewScript(`
for i = 2, #KEYS do
	if redis.call("GET", KEYS[i]) == ARGV[1] then
		redis.call("DEL", KEYS[i])
	end
end
redis.call("DEL", KEYS[1])
return 0
`)

// refreshScript pushes the expiry of every key still held by ARGV[1] to
// ARGV[2] ms from now.
//
// KEYS[1] is the session set; KEYS[2..] are the per-user keys.
var refreshScript = redis.NewScript(`
for i = 2, #KEYS do
	if redis.call("GET", KEYS[i]) == ARGV[1] then
		redis.call("PEXPIRE", KEYS[i], ARGV[2])
	end
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 0
`)

// Registry implements duel.Registry on Redis.
type Registry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var (
	_ duel.Registry  = (*Registry)(nil)
	_ duel.Refresher = (*Registry)(nil)
)

// NewRegistry returns a Registry storing its keys under prefix.
//
// Precondition: client must be non-nil; prefix must be non-empty.
func NewRegistry(client redis.UniversalClient, prefix string) *Registry {
	return &Registry{client: client, prefix: prefix, ttl: DefaultTTL}
}

// WithTTL returns a copy of r whose keys expire ttl after their last
// Register or Refresh.
//
// Precondition: ttl must be > 0.
func (r *Registry) WithTTL(ttl time.Duration) *Registry {
	out := *r
	out.ttl = ttl
	return &out
}

// NewClient connects to the Redis described by cfg.
//
// Postcondition: Returns a client that answered PING, or a non-nil error.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func (r *Registry) userKey(userID string) string {
	return fmt.Sprintf("%s:duel:engaged:%s", r.prefix, userID)
}

func (r *Registry) sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:duel:session:%s", r.prefix, id)
}

// IsEngaged implements duel.Registry.
func (r *Registry) IsEngaged(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.userKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: checking %q: %w", userID, err)
	}
	return n == 1, nil
}

// Register implements duel.Registry. The check and the claim run as one
// script, so two processes racing for the same user cannot both win.
func (r *Registry) Register(ctx context.Context, sessionID uuid.UUID, userIDs ...string) error {
	keys := make([]string, 0, len(userIDs)+1)
	keys = append(keys, r.sessionKey(sessionID))
	args := make([]any, 0, len(userIDs)+2)
	args = append(args, sessionID.String(), r.ttl.Milliseconds())
	for _, u := range userIDs {
		keys = append(keys, r.userKey(u))
		args = append(args, u)
	}

	code, err := registerScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("redisstore: registering session %s: %w", sessionID, err)
	}
	switch code {
	case registered:
		return nil
	case conflictEngaged:
		return fmt.Errorf("redisstore: registering session %s: %w", sessionID, duel.ErrAlreadyEngaged)
	case conflictSessions:
		return fmt.Errorf("redisstore: session %s already registered", sessionID)
	default:
		return fmt.Errorf("redisstore: registering session %s: unexpected result %d", sessionID, code)
	}
}

// Deregister implements duel.Registry. Unknown sessions are a no-op.
func (r *Registry) Deregister(ctx context.Context, sessionID uuid.UUID) error {
	keys, err := r.sessionKeys(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := deregisterScript.Run(ctx, r.client, keys, sessionID.String()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisstore: deregistering session %s: %w", sessionID, err)
	}
	return nil
}

// Refresh implements duel.Refresher. Unknown sessions are a no-op.
func (r *Registry) Refresh(ctx context.Context, sessionID uuid.UUID) error {
	keys, err := r.sessionKeys(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := refreshScript.Run(ctx, r.client, keys, sessionID.String(), r.ttl.Milliseconds()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisstore: refreshing session %s: %w", sessionID, err)
	}
	return nil
}

// sessionKeys returns the session set key followed by the user keys it lists.
func (r *Registry) sessionKeys(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.sessionKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisstore: reading session %s: %w", sessionID, err)
	}
	keys := make([]string, 0, len(members)+1)
	keys = append(keys, r.sessionKey(sessionID))
	for _, u := range members {
		if u != "" {
			keys = append(keys, r.userKey(u))
		}
	}
	return keys, nil
}

// Check pings Redis, shaped for readiness checks.
func (r *Registry) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
