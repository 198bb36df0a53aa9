// Package ledger is the only way the rest of the service talks to the
// ledger backend. It spaces backend calls to stay under the provider quota,
// retries quota failures on reads and answers reads from a TTL cache,
// falling back to stale entries when the backend is failing.
package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/ledger/config"
	"github.com/iurnickita/pixrecon/internal/store"
)

var ErrNotFound = errs.New("ledger range is empty")

type Client struct {
	cfg        config.Config
	backend    store.Backend
	cache      Cache
	limiter    *rate.Limiter
	group      singleflight.Group
	now        func() time.Time
	newBackOff func() backoff.BackOff
	zaplog     *zap.Logger
}

type Option func(*Client)

func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLimiter replaces the spacing limiter; tests pass rate.NewLimiter(rate.Inf, 1).
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = newBackOff }
}

func NewClient(cfg config.Config, backend store.Backend, zaplog *zap.Logger, opts ...Option) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	c := &Client{
		cfg:     cfg,
		backend: backend,
		cache:   NewMemoryCache(),
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		zaplog:  zaplog.Named("ledger"),
	}
	c.newBackOff = c.exponentialBackOff
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) exponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = c.cfg.MaxBackoff
	b.Reset()
	return b
}

// Get returns the rows of key, from the cache when a fresh entry exists.
// forceRefresh always calls through, for read-after-write paths, and never
// answers from the cache when the backend fails.
func (c *Client) Get(ctx context.Context, key store.Key, forceRefresh bool) ([]store.Row, error) {
	ck := key.String()

	if !forceRefresh {
		if e, ok := c.cache.Get(ctx, ck); ok && c.fresh(e) {
			return result(e.Rows)
		}
		v, err, _ := c.group.Do(ck, func() (any, error) {
			return c.load(ctx, key, true)
		})
		if err != nil {
			return nil, err
		}
		return result(v.([]store.Row))
	}

	rows, err := c.load(ctx, key, false)
	if err != nil {
		return nil, err
	}
	return result(rows)
}

func result(rows []store.Row) ([]store.Row, error) {
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	out := make([]store.Row, len(rows))
	for i, row := range rows {
		out[i] = append(store.Row(nil), row...)
	}
	return out, nil
}

func (c *Client) fresh(e Entry) bool {
	return c.now().Sub(e.FetchedAt) < c.cfg.CacheTTL
}

// load reads through to the backend and refreshes the cache. On failure and
// with allowStale a cached entry of any age is returned instead, except for
// authentication failures and cancellation.
func (c *Client) load(ctx context.Context, key store.Key, allowStale bool) ([]store.Row, error) {
	ck := key.String()

	rows, err := c.readWithRetry(ctx, key)
	if err == nil {
		c.cache.Set(ctx, ck, Entry{Rows: rows, FetchedAt: c.now()})
		return rows, nil
	}

	if allowStale && !errs.Is(err, store.ErrUnauthenticated) && ctx.Err() == nil {
		if e, ok := c.cache.Get(ctx, ck); ok {
			c.zaplog.Warn("serving stale ledger read",
				zap.String("key", ck),
				zap.Duration("age", c.now().Sub(e.FetchedAt)),
				zap.Error(err))
			return e.Rows, nil
		}
	}
	return nil, errs.Mark(err, errs.ErrStoreUnavailable)
}

func (c *Client) readWithRetry(ctx context.Context, key store.Key) ([]store.Row, error) {
	attempt := 0
	op := func() ([]store.Row, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		rows, err := c.backend.Read(ctx, key)
		if err == nil {
			return rows, nil
		}
		if errs.Is(err, store.ErrQuotaExceeded) {
			c.zaplog.Info("ledger quota exceeded, backing off",
				zap.String("key", key.String()),
				zap.Int("attempt", attempt))
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.cfg.MaxAttempts-1)), ctx)
	return backoff.RetryWithData(op, b)
}

// Put overwrites the range. Writes are never cached and never retried.
func (c *Client) Put(ctx context.Context, key store.Key, rows []store.Row) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.Mark(err, errs.ErrStoreUnavailable)
	}
	if err := c.backend.Write(ctx, key, rows); err != nil {
		c.zaplog.Error("ledger write failed", zap.String("key", key.String()), zap.Error(err))
		return errs.Mark(err, errs.ErrStoreUnavailable)
	}
	return nil
}

// Append adds rows to the end of key.Table and returns the first row number.
func (c *Client) Append(ctx context.Context, key store.Key, rows []store.Row) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, errs.Mark(err, errs.ErrStoreUnavailable)
	}
	first, err := c.backend.Append(ctx, key, rows)
	if err != nil {
		c.zaplog.Error("ledger append failed", zap.String("key", key.String()), zap.Error(err))
		return 0, errs.Mark(err, errs.ErrStoreUnavailable)
	}
	return first, nil
}

// Clear drops every cached read.
func (c *Client) Clear(ctx context.Context) {
	c.cache.Clear(ctx)
}
