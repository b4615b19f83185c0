package units

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"fortio.org/safecast"
	"github.com/cockroachdb/apd/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// reverseRateDigits is the number of fractional digits kept when a rate is
// derived from the opposite direction.
const reverseRateDigits = 10

// prefetchLimit bounds concurrent rate fetches.
const prefetchLimit = 4

// Currency converts between currencies with rates cached per base and day.
type Currency struct {
	source RateSource
	disk   *DiskRateCache
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]RateSnapshot
}

// CurrencyOption configures a Currency.
type CurrencyOption func(*Currency)

// WithDiskCache persists fetched snapshots to cache and seeds the
// in-memory cache from it.
func WithDiskCache(cache *DiskRateCache) CurrencyOption {
	return func(c *Currency) { c.disk = cache }
}

// WithCurrencyLogger sets the logger used for refresh failures.
func WithCurrencyLogger(l *slog.Logger) CurrencyOption {
	return func(c *Currency) { c.logger = l }
}

// WithClock overrides time.Now, which decides when cached rates are stale.
func WithClock(now func() time.Time) CurrencyOption {
	return func(c *Currency) { c.now = now }
}

// NewCurrency creates a converter on top of source.
func NewCurrency(source RateSource, opts ...CurrencyOption) *Currency {
	c := &Currency{
		source:  source,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]RateSnapshot),
	}
	for _, o := range opts {
		o(c)
	}
	if c.disk != nil {
		snaps, err := c.disk.Load()
		if err != nil {
			c.logger.Warn("ignoring rate cache", "error", err)
		}
		for _, s := range snaps {
			c.entries[s.Base] = s
		}
	}
	return c
}

func (c *Currency) today() string {
	return c.now().UTC().Format("2006-01-02")
}

// Refresh fetches rates for base unless today's rates are cached. A
// failing source yields a NetworkUnavailable error; cached rates, if
// any, stay in place.
func (c *Currency) Refresh(ctx context.Context, base string) error {
	base = strings.ToLower(base)
	today := c.today()

	c.mu.Lock()
	cached, ok := c.entries[base]
	c.mu.Unlock()
	if ok && cached.Date == today {
		return nil
	}

	if c.source == nil {
		return types.NewNetworkUnavailableError(nil)
	}
	rates, err := c.source.Rates(ctx, base)
	if err != nil {
		return types.NewNetworkUnavailableError(err)
	}

	c.mu.Lock()
	c.entries[base] = RateSnapshot{Base: base, Date: today, Rates: rates}
	snaps := c.snapshotsLocked()
	c.mu.Unlock()

	if c.disk != nil {
		if err := c.disk.Save(snaps); err != nil {
			c.logger.Warn("failed to persist rate cache", "error", err)
		}
	}
	return nil
}

// Prefetch refreshes several bases concurrently. Failures are logged and
// the first one is returned.
func (c *Currency) Prefetch(ctx context.Context, bases []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for _, b := range bases {
		g.Go(func() error {
			if err := c.Refresh(gctx, b); err != nil {
				c.logger.Warn("currency prefetch failed", "base", b, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Invalidate marks every cached snapshot stale without dropping it, so the
// next lookup refetches while the reverse fallback keeps the old rates.
func (c *Currency) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, s := range c.entries {
		s.Date = ""
		c.entries[k] = s
	}
}

// Rate returns how many units of to one unit of from buys. When the
// refresh fails the cached table is used; when from→to is unknown the
// reverse rate 1÷rate(to→from) is used, rounded half-even to ten
// fractional digits.
func (c *Currency) Rate(ctx context.Context, from, to string) (*apd.Decimal, error) {
	from, to = strings.ToLower(from), strings.ToLower(to)
	if from == to {
		return apd.New(1, 0), nil
	}
	c.refreshOrWarn(ctx, from)
	return c.cachedRate(from, to)
}

// Convert multiplies value by the from→to rate.
func (c *Currency) Convert(ctx context.Context, from, to string, value *apd.Decimal) (*apd.Decimal, error) {
	r, err := c.Rate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return stdlib.NewEnv(stdlib.Radians).Mul(value, r)
}

// ConvertAll converts value from one currency into each of targets with a
// single refresh of the from table. Targets without a rate are absent
// from the result instead of failing the whole batch.
func (c *Currency) ConvertAll(ctx context.Context, from string, targets []string, value *apd.Decimal) map[string]*apd.Decimal {
	from = strings.ToLower(from)
	c.refreshOrWarn(ctx, from)

	env := stdlib.NewEnv(stdlib.Radians)
	out := make(map[string]*apd.Decimal, len(targets))
	for _, t := range targets {
		r, err := c.cachedRate(from, strings.ToLower(t))
		if err != nil {
			continue
		}
		v, err := env.Mul(value, r)
		if err != nil {
			continue
		}
		out[t] = v
	}
	return out
}

func (c *Currency) refreshOrWarn(ctx context.Context, base string) {
	if err := c.Refresh(ctx, base); err != nil {
		c.logger.Warn("currency refresh failed", "base", base, "kind", types.KindOf(err), "error", err)
	}
}

// cachedRate resolves from→to without touching the source.
func (c *Currency) cachedRate(from, to string) (*apd.Decimal, error) {
	if from == to {
		return apd.New(1, 0), nil
	}
	if r, ok := c.lookup(from, to); ok {
		return r, nil
	}
	if r, ok := c.lookup(to, from); ok && !r.IsZero() {
		return reverseRate(r)
	}
	return nil, types.NewCurrencyError(from, to)
}

// Snapshots returns the cached tables ordered by base.
func (c *Currency) Snapshots() []RateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotsLocked()
}

func (c *Currency) snapshotsLocked() []RateSnapshot {
	out := make([]RateSnapshot, 0, len(c.entries))
	for _, s := range c.entries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out
}

func (c *Currency) lookup(base, id string) (*apd.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[base]
	if !ok {
		return nil, false
	}
	r, ok := s.Rates[id]
	return r, ok && r != nil
}

func reverseRate(r *apd.Decimal) (*apd.Decimal, error) {
	env := stdlib.NewEnv(stdlib.Radians)
	q, err := env.Quo(apd.New(1, 0), r)
	if err != nil {
		return nil, err
	}
	digits, err := safecast.Conv[uint32](q.NumDigits() + reverseRateDigits + 2)
	if err != nil {
		return nil, types.NewOverflowError("rate out of range")
	}
	ctx := apd.BaseContext.WithPrecision(digits)
	ctx.Rounding = apd.RoundHalfEven
	out := new(apd.Decimal)
	if _, err := ctx.Quantize(out, q, -reverseRateDigits); err != nil {
		return nil, types.NewOverflowError(err.Error())
	}
	return out, nil
}
