// Command authcore-race presents one refresh token from many goroutines at
// once and reports how many rotations won. A correct session store reports
// exactly one winner per round.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const raceSecret = "authcore-race-harness-secret-0123456789"

// raceUsers serves one always-active user.
type raceUsers struct{}

func (raceUsers) FindUserByID(_ context.Context, id string) (authcore.User, error) {
	return authcore.User{ID: id, Email: id + "@race.local", Active: true}, nil
}

func (raceUsers) FindUserByEmail(context.Context, string) (authcore.User, error) {
	return authcore.User{}, authcore.ErrUserNotFound
}

func (raceUsers) GetRolesForUser(context.Context, string) ([]string, error) { return nil, nil }

func (raceUsers) AppendLoginHistory(context.Context, authcore.LoginHistoryEntry) error { return nil }

type roundStats struct {
	winners   int
	rejected  int
	errors    int
	latencies []time.Duration
}

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "concurrent refreshes per round")
		rounds      = flag.Int("rounds", 20, "number of rounds")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authcore-race", "session key prefix")
	)
	flag.Parse()

	if *concurrency <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and rounds must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(raceSecret)
	cfg.Session.RedisPrefix = *prefix

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(raceUsers{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	var (
		total     roundStats
		badRounds int
	)
	start := time.Now()
	for r := 0; r < *rounds; r++ {
		userID := fmt.Sprintf("race-user-%d", r)
		pair, err := engine.Issue(ctx, userID, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue: %v\n", err)
			os.Exit(1)
		}

		stats := runRound(ctx, engine, pair.RefreshToken, *concurrency)
		if stats.winners != 1 {
			badRounds++
			fmt.Printf("round %d: %d winners\n", r, stats.winners)
		}
		total.winners += stats.winners
		total.rejected += stats.rejected
		total.errors += stats.errors
		total.latencies = append(total.latencies, stats.latencies...)

		_, _ = engine.LogoutAll(ctx, userID)
	}
	elapsed := time.Since(start)

	sort.Slice(total.latencies, func(i, j int) bool { return total.latencies[i] < total.latencies[j] })
	fmt.Println("---- results ----")
	fmt.Printf("rounds=%d concurrency=%d winners=%d rejected=%d errors=%d total=%s\n",
		*rounds, *concurrency, total.winners, total.rejected, total.errors, elapsed.Round(time.Millisecond))
	fmt.Printf("refresh latency p50=%s p95=%s p99=%s\n",
		percentile(total.latencies, 50).Round(time.Microsecond),
		percentile(total.latencies, 95).Round(time.Microsecond),
		percentile(total.latencies, 99).Round(time.Microsecond))

	if badRounds > 0 {
		fmt.Printf("FAIL: %d of %d rounds did not have exactly one winner\n", badRounds, *rounds)
		os.Exit(1)
	}
	fmt.Println("OK: every round had exactly one winner")
}

func runRound(ctx context.Context, engine *authcore.Engine, refreshToken string, concurrency int) roundStats {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		stats = roundStats{latencies: make([]time.Duration, 0, concurrency)}
	)

	gate := make(chan struct{})
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			t0 := time.Now()
			_, err := engine.Refresh(ctx, refreshToken)
			d := time.Since(t0)

			mu.Lock()
			defer mu.Unlock()
			stats.latencies = append(stats.latencies, d)
			switch {
			case err == nil:
				stats.winners++
			case errors.Is(err, authcore.ErrUnknownOrConsumedSession):
				stats.rejected++
			default:
				stats.errors++
			}
		}()
	}
	close(gate)
	wg.Wait()
	return stats
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
