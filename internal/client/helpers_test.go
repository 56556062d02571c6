package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/credentials"
)

// countingStore records how often the dispatcher writes back credentials.
type countingStore struct {
	*credentials.MemoryStore
	writes atomic.Int32
}

func newCountingStore(rec *credentials.Record) *countingStore {
	return &countingStore{MemoryStore: credentials.NewMemoryStore(rec)}
}

func (s *countingStore) Write(ctx context.Context, rec credentials.Record) error {
	s.writes.Add(1)
	return s.MemoryStore.Write(ctx, rec)
}

// gatedRefresher blocks every refresh until release is closed.
type gatedRefresher struct {
	release chan struct{}
	result  *credentials.Record
	err     error

	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

func newGatedRefresher(result *credentials.Record, err error) *gatedRefresher {
	return &gatedRefresher{release: make(chan struct{}), result: result, err: err}
}

func (g *gatedRefresher) Refresh(_ context.Context, refreshToken string) (*credentials.Record, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.seen = append(g.seen, refreshToken)
	g.mu.Unlock()

	<-g.release
	if g.err != nil {
		return nil, g.err
	}
	rec := *g.result
	return &rec, nil
}

func (g *gatedRefresher) refreshTokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.seen...)
}

// countingProgress tracks lifecycle signals.
type countingProgress struct {
	starts atomic.Int32
	dones  atomic.Int32
}

func (p *countingProgress) Start() { p.starts.Add(1) }
func (p *countingProgress) Done()  { p.dones.Add(1) }

// fakeClock is a settable clock for expiry decisions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func expiredRecord() *credentials.Record {
	return &credentials.Record{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}
}

func validRecord() *credentials.Record {
	return &credentials.Record{
		AccessToken:  "valid-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}
}

func freshRecord(token string) *credentials.Record {
	return &credentials.Record{
		AccessToken:  token,
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}
}

func waitForPending(t *testing.T, d *Dispatcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.Pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending requests, have %d", n, d.Pending())
		}
		time.Sleep(time.Millisecond)
	}
}
