package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrThrottled        = errors.New("too many failed logins")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// KEYS[1]=counter; ARGV[1]=window ms. A counter left without a TTL (a
// previous PEXPIRE that never ran) gets one on the next hit.
const incrementScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrementLua = redis.NewScript(incrementScript)

// Config holds the failure budget.
type Config struct {
	Prefix       string
	MaxFailures  int
	Window       time.Duration
	ThrottleByIP bool

	// OperationTimeout bounds each Redis call.
	OperationTimeout time.Duration
}

// DefaultConfig allows five failures per identifier per fifteen minutes.
func DefaultConfig() Config {
	return Config{
		Prefix:       "authcore",
		MaxFailures:  5,
		Window:       15 * time.Minute,
		ThrottleByIP: true,

		OperationTimeout: 2 * time.Second,
	}
}

// LoginThrottle enforces per-identifier and per-IP failed-login budgets
// using Redis counters.
type LoginThrottle struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *LoginThrottle {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultConfig().OperationTimeout
	}
	return &LoginThrottle{redis: redisClient, config: cfg}
}

// Check returns ErrThrottled when either budget is spent.
func (t *LoginThrottle) Check(ctx context.Context, identifier, ip string) error {
	if err := t.checkCounter(ctx, t.identifierKey(identifier)); err != nil {
		return err
	}
	if t.config.ThrottleByIP && ip != "" {
		if err := t.checkCounter(ctx, t.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Fail records one failed attempt against both counters.
func (t *LoginThrottle) Fail(ctx context.Context, identifier, ip string) error {
	if _, err := t.incrementWithTTL(ctx, t.identifierKey(identifier)); err != nil {
		return err
	}
	if t.config.ThrottleByIP && ip != "" {
		if _, err := t.incrementWithTTL(ctx, t.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the identifier counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, identifier string) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	if err := t.redis.Del(ctx, t.identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Failures returns the current identifier counter. Missing keys count as
// zero.
func (t *LoginThrottle) Failures(ctx context.Context, identifier string) (int, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	count, err := t.redis.Get(ctx, t.identifierKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (t *LoginThrottle) identifierKey(identifier string) string {
	return t.config.Prefix + ":lf:" + strings.ToLower(strings.TrimSpace(identifier))
}

func (t *LoginThrottle) ipKey(ip string) string {
	return t.config.Prefix + ":lfi:" + ip
}

func (t *LoginThrottle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.config.OperationTimeout)
}

func (t *LoginThrottle) checkCounter(ctx context.Context, key string) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	count, err := t.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(t.config.MaxFailures) {
		return ErrThrottled
	}
	return nil
}

// incrementWithTTL bumps key and starts its window in one script.
func (t *LoginThrottle) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	count, err := incrementLua.Run(ctx, t.redis, []string{key}, t.config.Window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
