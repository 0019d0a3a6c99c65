package cache

import (
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jemish-virani/declaratii-anaf/pkg/artifact"
)

// DefaultTTL is how long an artifact stays retrievable after Put.
const DefaultTTL = 10 * time.Minute

// ErrNoFingerprint is returned by Put for artifacts without an output file.
var ErrNoFingerprint = errors.New("cache: artifact has no fingerprint")

// Logger records evictions.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option customises cache construction.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired entries are evicted in the
// background. Zero or less disables the background sweeper; callers then
// drive eviction through Sweep.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *Cache) {
		c.sweep = interval
		c.sweepSet = true
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEvictionHook registers a callback invoked after an evicted artifact
// has been cleaned up.
func WithEvictionHook(fn func(fingerprint string, a *artifact.Artifact)) Option {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// Cache maps fingerprints to artifacts for a fixed time after insertion.
// Reads never extend an entry's life. Every entry that leaves the cache,
// by expiry or removal, has its backing files deleted through
// Artifact.Cleanup, which runs at most once per artifact.
type Cache struct {
	store    *gocache.Cache
	ttl      time.Duration
	sweep    time.Duration
	sweepSet bool
	logger   Logger
	onEvict  func(string, *artifact.Artifact)
}

// New constructs a cache with the supplied options.
func New(options ...Option) *Cache {
	c := &Cache{
		ttl:    DefaultTTL,
		logger: nopLogger{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if !c.sweepSet {
		c.sweep = defaultSweep(c.ttl)
	}
	c.store = gocache.New(c.ttl, c.sweep)
	c.store.OnEvicted(c.evicted)
	return c
}

func defaultSweep(ttl time.Duration) time.Duration {
	interval := ttl / 10
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// TTL reports the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Put stores a under its fingerprint. Storing the same fingerprint again
// replaces the entry and restarts its TTL without cleaning anything up:
// both artifacts point at the same files.
func (c *Cache) Put(a *artifact.Artifact) error {
	fingerprint := a.Fingerprint()
	if fingerprint == "" {
		return ErrNoFingerprint
	}
	c.store.Set(fingerprint, a, gocache.DefaultExpiration)
	return nil
}

// Get returns the artifact stored under fingerprint. Expired entries are
// reported absent even before they are swept.
func (c *Cache) Get(fingerprint string) (*artifact.Artifact, bool) {
	if fingerprint == "" {
		return nil, false
	}
	value, ok := c.store.Get(fingerprint)
	if !ok {
		return nil, false
	}
	a, ok := value.(*artifact.Artifact)
	return a, ok
}

// Remove evicts fingerprint now, cleaning up its files.
func (c *Cache) Remove(fingerprint string) {
	c.store.Delete(fingerprint)
}

// Sweep evicts every expired entry.
func (c *Cache) Sweep() {
	c.store.DeleteExpired()
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return len(c.store.Items())
}

// Close evicts every entry, expired or not, so no artifact files outlive
// the process.
func (c *Cache) Close() {
	for fingerprint := range c.store.Items() {
		c.store.Delete(fingerprint)
	}
	c.store.DeleteExpired()
}

func (c *Cache) evicted(fingerprint string, value any) {
	a, ok := value.(*artifact.Artifact)
	if !ok {
		return
	}
	if a.Cleanup() {
		c.logger.Printf("cache: evicted %s (%s)", fingerprint, a.TypeID)
	}
	if c.onEvict != nil {
		c.onEvict(fingerprint, a)
	}
}
