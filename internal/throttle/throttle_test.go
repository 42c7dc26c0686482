package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newThrottle(t *testing.T, cfg Config) (*LoginThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestThrottleAfterBudget(t *testing.T) {
	th, _ := newThrottle(t, Config{Prefix: "t", MaxFailures: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := th.Check(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("attempt %d throttled early: %v", i, err)
		}
		if err := th.Fail(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}
	if err := th.Check(ctx, "Alice@Example.com ", ""); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if err := th.Check(ctx, "bob@example.com", ""); err != nil {
		t.Fatalf("other identifiers must not be throttled: %v", err)
	}
}

func TestThrottleWindowExpires(t *testing.T) {
	th, mr := newThrottle(t, Config{Prefix: "t", MaxFailures: 1, Window: time.Minute})
	ctx := context.Background()

	_ = th.Fail(ctx, "alice@example.com", "")
	if err := th.Check(ctx, "alice@example.com", ""); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	mr.FastForward(61 * time.Second)
	if err := th.Check(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestThrottleByIP(t *testing.T) {
	th, _ := newThrottle(t, Config{Prefix: "t", MaxFailures: 2, Window: time.Minute, ThrottleByIP: true})
	ctx := context.Background()

	_ = th.Fail(ctx, "a@example.com", "203.0.113.7")
	_ = th.Fail(ctx, "b@example.com", "203.0.113.7")
	if err := th.Check(ctx, "c@example.com", "203.0.113.7"); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected IP throttle, got %v", err)
	}
	if err := th.Check(ctx, "c@example.com", "198.51.100.1"); err != nil {
		t.Fatalf("other IPs must pass: %v", err)
	}
}

func TestResetClearsIdentifier(t *testing.T) {
	th, _ := newThrottle(t, Config{Prefix: "t", MaxFailures: 2, Window: time.Minute})
	ctx := context.Background()

	_ = th.Fail(ctx, "alice@example.com", "")
	if n, _ := th.Failures(ctx, "alice@example.com"); n != 1 {
		t.Fatalf("expected 1 failure, got %d", n)
	}
	if err := th.Reset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _ := th.Failures(ctx, "alice@example.com"); n != 0 {
		t.Fatalf("expected 0 after reset, got %d", n)
	}
}

func TestThrottleRedisDown(t *testing.T) {
	th, mr := newThrottle(t, Config{Prefix: "t"})
	mr.SetError("ERR injected failure")

	if err := th.Check(context.Background(), "alice@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestFailStartsWindowAtomically(t *testing.T) {
	th, mr := newThrottle(t, Config{Prefix: "t", MaxFailures: 3, Window: time.Minute})
	ctx := context.Background()

	if err := th.Fail(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if ttl := mr.TTL("t:lf:alice@example.com"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("counter ttl %v, want (0, 1m]", ttl)
	}

	// a counter stuck without a TTL heals on the next failure
	if err := mr.Set("t:lf:bob@example.com", "7"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := th.Fail(ctx, "bob@example.com", ""); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if ttl := mr.TTL("t:lf:bob@example.com"); ttl <= 0 {
		t.Fatalf("stuck counter still has no ttl")
	}
	mr.FastForward(61 * time.Second)
	if err := th.Check(ctx, "bob@example.com", ""); err != nil {
		t.Fatalf("healed counter should expire with the window: %v", err)
	}
}

func TestOperationTimeout(t *testing.T) {
	th, _ := newThrottle(t, Config{Prefix: "t"})
	if th.config.OperationTimeout != DefaultConfig().OperationTimeout {
		t.Fatalf("default timeout not applied: %v", th.config.OperationTimeout)
	}

	th, _ = newThrottle(t, Config{Prefix: "t", OperationTimeout: time.Nanosecond})
	if err := th.Fail(context.Background(), "alice@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable after timeout, got %v", err)
	}
}
