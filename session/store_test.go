package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "as", time.Second)
	return store, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRegisterWritesNamespacedKeysWithTTL(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()

	if err := store.Register(context.Background(), "u1", "s1", 90*time.Minute); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !mr.Exists("as:s:u1:s1") {
		t.Fatal("expected session key as:s:u1:s1")
	}
	if ok, _ := mr.SIsMember("as:u:u1", "s1"); !ok {
		t.Fatal("expected session id in user index")
	}
	if ttl := mr.TTL("as:s:u1:s1"); ttl != 90*time.Minute {
		t.Fatalf("session ttl = %v, want 90m", ttl)
	}
	if ttl := mr.TTL("as:u:u1"); ttl < 90*time.Minute {
		t.Fatalf("index ttl = %v, want >= 90m", ttl)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Register(ctx, "u1", "s1", time.Hour); err != nil {
		t.Fatalf("register: %v", err)
	}

	ok, err := store.Consume(ctx, "u1", "s1")
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	ok, err = store.Consume(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("second consume error: %v", err)
	}
	if ok {
		t.Fatal("replayed consume must report false")
	}
}

func TestConsumeNeverRegistered(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	ok, err := store.Consume(context.Background(), "ghost", "nope")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("unregistered session must not consume")
	}
}

func TestConsumeConcurrentSingleWinner(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Register(ctx, "u1", "race", time.Hour); err != nil {
		t.Fatalf("register: %v", err)
	}

	const workers = 32
	var (
		wins  atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := store.Consume(ctx, "u1", "race")
			if err != nil {
				errs <- err
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("consume error: %v", err)
	}
	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestExpiredSessionIsNotConsumable(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Register(ctx, "u1", "s1", time.Minute); err != nil {
		t.Fatalf("register: %v", err)
	}
	mr.FastForward(time.Minute + time.Millisecond)

	ok, err := store.Consume(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("expired session must not consume")
	}
}

func TestRevokeOneSessionKeepsOthers(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, sid := range []string{"a", "b"} {
		if err := store.Register(ctx, "u1", sid, time.Hour); err != nil {
			t.Fatalf("register %s: %v", sid, err)
		}
	}

	existed, err := store.Revoke(ctx, "u1", "a")
	if err != nil || !existed {
		t.Fatalf("revoke a: existed=%v err=%v", existed, err)
	}
	existed, err = store.Revoke(ctx, "u1", "a")
	if err != nil || existed {
		t.Fatalf("repeat revoke should be a no-op: existed=%v err=%v", existed, err)
	}

	ok, err := store.Consume(ctx, "u1", "b")
	if err != nil || !ok {
		t.Fatalf("session b should survive: ok=%v err=%v", ok, err)
	}
}

func TestRegisterOverwriteResetsTTL(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Register(ctx, "u1", "s1", time.Minute); err != nil {
		t.Fatalf("register: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if err := store.Register(ctx, "u1", "s1", time.Minute); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	mr.FastForward(45 * time.Second)

	ok, err := store.Consume(ctx, "u1", "s1")
	if err != nil || !ok {
		t.Fatalf("overwritten session should still be live: ok=%v err=%v", ok, err)
	}
}

func TestRevokeAllAndListSessions(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Register(ctx, "u1", fmt.Sprintf("s%d", i), time.Hour); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if err := store.Register(ctx, "u1", "short", time.Second); err != nil {
		t.Fatalf("register short: %v", err)
	}
	if err := store.Register(ctx, "u2", "other", time.Hour); err != nil {
		t.Fatalf("register other user: %v", err)
	}
	mr.FastForward(2 * time.Second)

	infos, err := store.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 live sessions, got %d", len(infos))
	}
	if ok, _ := mr.SIsMember("as:u:u1", "short"); ok {
		t.Fatal("expired id should be pruned from the index")
	}
	for _, info := range infos {
		if info.ExpiresIn <= 0 || info.ExpiresIn > time.Hour {
			t.Fatalf("unexpected ExpiresIn %v", info.ExpiresIn)
		}
	}

	n, err := store.RevokeAll(ctx, "u1")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked %d sessions, want 3", n)
	}
	if mr.Exists("as:u:u1") {
		t.Fatal("user index should be removed")
	}

	infos, err = store.ListSessions(ctx, "u1")
	if err != nil || len(infos) != 0 {
		t.Fatalf("expected no sessions after revoke all: %v %v", infos, err)
	}
	if ok, err := store.Consume(ctx, "u2", "other"); err != nil || !ok {
		t.Fatalf("other user's session must survive: ok=%v err=%v", ok, err)
	}
}

func TestStoreFailureIsDistinguishable(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Register(ctx, "u1", "s1", time.Hour); err != nil {
		t.Fatalf("register: %v", err)
	}

	mr.SetError("ERR injected failure")
	ok, err := store.Consume(ctx, "u1", "s1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got ok=%v err=%v", ok, err)
	}
	if ok {
		t.Fatal("failure must not report a consumed session")
	}
	if err := store.Register(ctx, "u1", "s2", time.Hour); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("register: expected ErrStoreUnavailable, got %v", err)
	}
	mr.SetError("")

	// The record survived the failed call.
	ok, err = store.Consume(ctx, "u1", "s1")
	if err != nil || !ok {
		t.Fatalf("record should survive a failed consume: ok=%v err=%v", ok, err)
	}
}

func TestCancelledContextIsStoreFailure(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Consume(ctx, "u1", "s1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestClosedServerIsStoreFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	store := NewStore(rdb, "", 200*time.Millisecond)
	mr.Close()

	if _, err := store.Revoke(context.Background(), "u1", "s1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("ping: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestInvalidArguments(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Register(ctx, "", "s", time.Hour); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if err := store.Register(ctx, "u", "s", 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
	if err := store.Register(ctx, "u", "s", time.Microsecond); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("sub-millisecond ttl: expected ErrInvalidTTL, got %v", err)
	}
	if _, err := store.Consume(ctx, "u", ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.RevokeAll(ctx, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestKeyComponentsRejectSeparator(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	// ("a", "b:c") and ("a:b", "c") would otherwise collide
	if err := store.Register(ctx, "a", "b:c", time.Hour); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("session id with separator: expected ErrInvalidKey, got %v", err)
	}
	if err := store.Register(ctx, "a:b", "c", time.Hour); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("user id with separator: expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.Consume(ctx, "a:b", "c"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("consume: expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.Revoke(ctx, "a", "b:c"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("revoke: expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.RevokeAll(ctx, "a:b"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("revoke all: expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.ListSessions(ctx, "a:b"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("list: expected ErrInvalidKey, got %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("rejected keys must not be written, found %v", keys)
	}
}
