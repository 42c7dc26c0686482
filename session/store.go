package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable wraps every Redis failure, including timeouts. It
	// never means "record absent".
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrInvalidKey is returned for an empty user or session identifier, or
	// one containing the key separator.
	ErrInvalidKey = errors.New("invalid session key component")
	// ErrInvalidTTL is returned by Register for a non-positive TTL.
	ErrInvalidTTL = errors.New("session ttl must be positive")
)

const (
	// DefaultPrefix namespaces every key written by the store.
	DefaultPrefix = "authcore"
	// DefaultOperationTimeout bounds each store call when none is configured.
	DefaultOperationTimeout = 2 * time.Second
)

// KEYS[1]=session key KEYS[2]=user index; ARGV[1]=session id ARGV[2]=value ARGV[3]=ttl ms
const registerScript = `
local ttl = tonumber(ARGV[3])
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
redis.call("SADD", KEYS[2], ARGV[1])
local current = redis.call("PTTL", KEYS[2])
if current < ttl then
  redis.call("PEXPIRE", KEYS[2], ARGV[3])
end
return 1
`

// KEYS[1]=session key KEYS[2]=user index; ARGV[1]=session id
const consumeScript = `
local deleted = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return deleted
`

// KEYS[1]=user index; ARGV[1]=session key prefix for the user
const revokeAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local revoked = 0
for _, id in ipairs(ids) do
  revoked = revoked + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return revoked
`

var (
	registerLua  = redis.NewScript(registerScript)
	consumeLua   = redis.NewScript(consumeScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
)

// Info describes one live session.
type Info struct {
	SessionID string
	CreatedAt time.Time
	ExpiresIn time.Duration
}

// Store is the Redis-backed session whitelist. A record exists exactly while
// its refresh token is redeemable.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	opTimeout time.Duration
	now       func() time.Time
}

// NewStore builds a Store. An empty prefix uses DefaultPrefix and a
// non-positive timeout uses DefaultOperationTimeout.
func NewStore(rdb redis.UniversalClient, prefix string, opTimeout time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if opTimeout <= 0 {
		opTimeout = DefaultOperationTimeout
	}
	return &Store{
		redis:     rdb,
		prefix:    prefix,
		opTimeout: opTimeout,
		now:       time.Now,
	}
}

func (s *Store) key(userID, sessionID string) string {
	return s.userSessionPrefix(userID) + sessionID
}

func (s *Store) userSessionPrefix(userID string) string {
	return s.prefix + keySep + "s" + keySep + userID + keySep
}

func (s *Store) userKey(userID string) string {
	return s.prefix + keySep + "u" + keySep + userID
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// keySep joins key components. Components may not contain it, otherwise
// ("a", "b:c") and ("a:b", "c") would share a key.
const keySep = ":"

func checkComponent(v string) error {
	if v == "" || strings.Contains(v, keySep) {
		return ErrInvalidKey
	}
	return nil
}

func checkKey(userID, sessionID string) error {
	if err := checkComponent(userID); err != nil {
		return err
	}
	return checkComponent(sessionID)
}

// Register records (userID, sessionID) as redeemable for ttl. Registering an
// existing pair overwrites it and resets its TTL.
func (s *Store) Register(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	if err := checkKey(userID, sessionID); err != nil {
		return err
	}
	ms := ttl.Milliseconds()
	if ms <= 0 {
		return ErrInvalidTTL
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created := strconv.FormatInt(s.now().UTC().UnixMilli(), 10)
	err := registerLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID, sessionID), s.userKey(userID)},
		sessionID, created, ms,
	).Err()
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Consume atomically deletes the record and reports whether it existed.
// Among concurrent callers for the same pair at most one observes true.
func (s *Store) Consume(ctx context.Context, userID, sessionID string) (bool, error) {
	return s.remove(ctx, userID, sessionID)
}

// Revoke deletes the record unconditionally. It is idempotent; the boolean
// reports whether a record was present.
func (s *Store) Revoke(ctx context.Context, userID, sessionID string) (bool, error) {
	return s.remove(ctx, userID, sessionID)
}

func (s *Store) remove(ctx context.Context, userID, sessionID string) (bool, error) {
	if err := checkKey(userID, sessionID); err != nil {
		return false, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	deleted, err := consumeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID, sessionID), s.userKey(userID)},
		sessionID,
	).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return deleted == 1, nil
}

// RevokeAll deletes every session of userID and returns how many were live.
func (s *Store) RevokeAll(ctx context.Context, userID string) (int, error) {
	if err := checkComponent(userID); err != nil {
		return 0, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	revoked, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.userSessionPrefix(userID),
	).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(revoked), nil
}

// ListSessions returns the live sessions of userID, oldest first. Index
// entries whose record already expired are pruned.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]Info, error) {
	if err := checkComponent(userID); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	getCmds := make([]*redis.StringCmd, len(ids))
	ttlCmds := make([]*redis.DurationCmd, len(ids))
	for i, id := range ids {
		getCmds[i] = pipe.Get(ctx, s.key(userID, id))
		ttlCmds[i] = pipe.PTTL(ctx, s.key(userID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	out := make([]Info, 0, len(ids))
	var stale []interface{}
	for i, id := range ids {
		raw, err := getCmds[i].Result()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, unavailable(err)
		}
		info := Info{SessionID: id, ExpiresIn: ttlCmds[i].Val()}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			info.CreatedAt = time.UnixMilli(ms).UTC()
		}
		out = append(out, info)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, unavailable(err)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ping measures round-trip latency to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, unavailable(err)
	}
	return time.Since(start), nil
}
