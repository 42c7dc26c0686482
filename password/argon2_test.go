package password

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify(hash, "correct horse battery")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected matching secret to verify")
	}
}

func TestVerifyMismatchIsNotAnError(t *testing.T) {
	h := newTestHasher(t)
	hash, err := h.Hash("s3cret-value")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	for _, candidate := range []string{"wrong", "", "s3cret-valuE", strings.Repeat("x", DefaultMaxSecretBytes+1)} {
		ok, err := h.Verify(hash, candidate)
		if err != nil {
			t.Fatalf("Verify(%q) returned error: %v", candidate, err)
		}
		if ok {
			t.Fatalf("Verify(%q) should not match", candidate)
		}
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t)
	a, err := h.Hash("same-secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("same-secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same secret")
	}
}

func TestHashRejectsEmptyAndOversized(t *testing.T) {
	h := newTestHasher(t)
	if _, err := h.Hash(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", DefaultMaxSecretBytes+1)); !errors.Is(err, ErrSecretTooLong) {
		t.Fatalf("expected ErrSecretTooLong, got %v", err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)
	good, err := h.Hash("secret-value")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	parts := strings.Split(good, "$")

	cases := map[string]string{
		"empty":         "",
		"plaintext":     "secret-value",
		"wrong algo":    strings.Replace(good, "argon2id", "argon2i", 1),
		"bad version":   strings.Replace(good, "v=19", "v=x", 1),
		"old version":   strings.Replace(good, "v=19", "v=16", 1),
		"missing param": "$argon2id$v=19$m=8192,t=1$" + parts[4] + "$" + parts[5],
		"weak memory":   strings.Replace(good, "m=8192", "m=16", 1),
		"unknown param": strings.Replace(good, "p=1", "x=1", 1),
		"bad salt":      "$argon2id$v=19$m=8192,t=1,p=1$!!!$" + parts[5],
		"short salt":    "$argon2id$v=19$m=8192,t=1,p=1$YWJj$" + parts[5],
		"empty key":     "$argon2id$v=19$m=8192,t=1,p=1$" + parts[4] + "$",
		"extra segment": good + "$extra",
	}

	for name, stored := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := h.Verify(stored, "secret-value")
			if ok {
				t.Fatal("malformed hash must never verify")
			}
			if !errors.Is(err, ErrMalformedHash) {
				t.Fatalf("expected ErrMalformedHash, got %v", err)
			}
		})
	}
}

func TestVerifyAcceptsPaddedSegments(t *testing.T) {
	h := newTestHasher(t)
	hash, err := h.Hash("padded-secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	// 16-byte salt and 32-byte key need padding in std encoding.
	parts := strings.Split(hash, "$")
	padded := strings.Join([]string{"", parts[1], parts[2], parts[3], parts[4] + "==", parts[5] + "="}, "$")

	ok, err := h.Verify(padded, "padded-secret")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected padded encoding to verify")
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := newTestHasher(t)
	hash, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	need, err := weak.NeedsRehash(hash)
	if err != nil || need {
		t.Fatalf("same params should not need rehash: need=%v err=%v", need, err)
	}

	cfg := testConfig()
	cfg.Time = 2
	strong, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	need, err = strong.NeedsRehash(hash)
	if err != nil || !need {
		t.Fatalf("stronger params should need rehash: need=%v err=%v", need, err)
	}

	if _, err := strong.NeedsRehash("garbage"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	mutate := []func(*Config){
		func(c *Config) { c.Memory = 1024 },
		func(c *Config) { c.Time = 0 },
		func(c *Config) { c.Parallelism = 0 },
		func(c *Config) { c.SaltLength = 8 },
		func(c *Config) { c.KeyLength = 8 },
		func(c *Config) { c.MaxSecretBytes = -1 },
	}
	for i, m := range mutate {
		cfg := testConfig()
		m(&cfg)
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}

	if _, err := NewHasher(DefaultConfig()); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestVerifyConcurrent(t *testing.T) {
	h := newTestHasher(t)
	hash, err := h.Hash("shared-secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Verify(hash, "shared-secret")
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- errors.New("verify mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent verify: %v", err)
	}
}
