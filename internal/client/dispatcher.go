package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/rs/zerolog"
)

var errNoRefreshToken = errors.New("no refresh token stored")

// Refresher exchanges a refresh token for a new credential record.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*credentials.Record, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (*credentials.Record, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*credentials.Record, error) {
	return f(ctx, refreshToken)
}

// Dispatcher decides, per request, whether to attach the stored credential,
// wait for a refresh, or start one. Create one per process and share it:
// the single-refresh guarantee only holds within one Dispatcher.
type Dispatcher struct {
	store     credentials.Store
	refresher Refresher
	whitelist Whitelist
	skew      time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	// mu guards refreshing and queue. Store reads happen outside it.
	mu         sync.Mutex
	refreshing bool
	queue      pendingQueue

	// settled counts finished refresh cycles. It only changes under mu.
	settled   atomic.Uint64
	refreshes atomic.Uint64
}

type DispatcherOption func(*Dispatcher)

// WithWhitelist replaces DefaultWhitelist.
func WithWhitelist(w Whitelist) DispatcherOption {
	return func(d *Dispatcher) {
		d.whitelist = w
	}
}

// WithExpirySkew treats tokens as expired skew before their actual expiry.
func WithExpirySkew(skew time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.skew = skew
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func WithDispatcherLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func NewDispatcher(store credentials.Store, refresher Refresher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		refresher: refresher,
		whitelist: DefaultWhitelist,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type refreshResult struct {
	token string
	err   error
}

// Authorize attaches a valid credential to req, waiting for a refresh when
// the stored one has expired. Whitelisted URLs and requests without a stored
// session pass through untouched. Waiters are sent in the order they queued.
func (d *Dispatcher) Authorize(ctx context.Context, req *Descriptor) error {
	if d.whitelist.Match(req.URL) {
		return nil
	}

	for {
		cycle := d.settled.Load()
		rec, err := d.store.Read(ctx)
		if err != nil {
			return fmt.Errorf("reading credentials: %w", err)
		}

		if rec == nil {
			d.logger.Debug().Str("url", req.URL).Msg("No stored credentials, sending without Authorization")
			return nil
		}

		if !rec.Expired(d.now(), d.skew) {
			req.setAuthorization(rec.AccessToken)
			return nil
		}

		wait, ok := d.join(ctx, cycle, rec.RefreshToken, req.sent)
		if !ok {
			continue
		}

		token, err := awaitRefresh(ctx, wait)
		if err != nil {
			return err
		}
		req.setAuthorization(token)
		return nil
	}
}

// ForceRefresh refreshes the stored credential even if it has not expired
// and returns the new access token. It joins a refresh already in flight.
func (d *Dispatcher) ForceRefresh(ctx context.Context) (string, error) {
	for {
		cycle := d.settled.Load()
		rec, err := d.store.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("reading credentials: %w", err)
		}
		if rec == nil {
			return "", ErrNoSession
		}

		wait, ok := d.join(ctx, cycle, rec.RefreshToken, nil)
		if !ok {
			continue
		}
		return awaitRefresh(ctx, wait)
	}
}

// join queues a waiter on the current refresh, starting one if none runs.
// It reports false when a refresh settled after the snapshot taken at cycle
// was read: that snapshot may carry a refresh token that has since rotated.
func (d *Dispatcher) join(ctx context.Context, cycle uint64, refreshToken string, sent *sendGate) (<-chan refreshResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.refreshing && d.settled.Load() != cycle {
		return nil, false
	}
	return d.enqueueLocked(ctx, refreshToken, sent), true
}

// Refreshes returns how many refresh operations have been started.
func (d *Dispatcher) Refreshes() uint64 {
	return d.refreshes.Load()
}

// Refreshing reports whether a refresh is in flight.
func (d *Dispatcher) Refreshing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshing
}

// Pending returns the number of requests waiting on the current refresh.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.len()
}

// enqueueLocked queues a waiter and starts a refresh unless one is already
// running. d.mu must be held.
//
// The refresh runs detached from ctx: one caller giving up must not abort
// the refresh the other waiters depend on. When sent is set, resuming the
// waiter blocks until its request is on the wire, so the next waiter is
// only released after it.
func (d *Dispatcher) enqueueLocked(ctx context.Context, refreshToken string, sent *sendGate) <-chan refreshResult {
	// Buffered so resuming a waiter that already gave up never blocks.
	wait := make(chan refreshResult, 1)
	d.queue.enqueue(func(token string, err error) {
		wait <- refreshResult{token: token, err: err}
		if err != nil || sent == nil {
			return
		}
		select {
		case <-sent.done():
		case <-ctx.Done():
		}
	})

	if !d.refreshing {
		d.refreshing = true
		d.refreshes.Add(1)
		go d.refresh(context.WithoutCancel(ctx), refreshToken)
	}
	return wait
}

func awaitRefresh(ctx context.Context, wait <-chan refreshResult) (string, error) {
	select {
	case res := <-wait:
		return res.token, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) refresh(ctx context.Context, refreshToken string) {
	d.logger.Info().Msg("🔄 Access token expired, refreshing...")

	rec, err := d.runRefresh(ctx, refreshToken)

	d.mu.Lock()
	pending := d.queue.take()
	d.refreshing = false
	d.settled.Add(1)
	d.mu.Unlock()

	if err != nil {
		d.logger.Error().Err(err).Int("waiting", pending.len()).Msg("❌ Failed to refresh access token")
		pending.fail(fmt.Errorf("%w: %w", ErrSessionExpired, err))
		return
	}

	d.logger.Info().
		Int("waiting", pending.len()).
		Int64("minutes_until_expiry", int64(rec.Until(d.now())/time.Minute)).
		Msg("✅ Access token refreshed successfully")
	pending.drain(rec.AccessToken)
}

func (d *Dispatcher) runRefresh(ctx context.Context, refreshToken string) (*credentials.Record, error) {
	if refreshToken == "" {
		return nil, errNoRefreshToken
	}
	if d.refresher == nil {
		return nil, errors.New("no refresher configured")
	}

	rec, err := d.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if rec == nil || rec.AccessToken == "" {
		return nil, errors.New("refresh returned no access token")
	}

	// Providers may omit the refresh token when they do not rotate it.
	if rec.RefreshToken == "" {
		rec.RefreshToken = refreshToken
	}

	if err := d.store.Write(ctx, *rec); err != nil {
		// The new token is still good for the waiting requests.
		d.logger.Error().Err(err).Msg("❌ Failed to update tokens in storage")
	}
	return rec, nil
}
