package snapshot

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chairtools/chairstat/internal/venue"
)

// DefaultTTL is how long a cached snapshot is served without refetching.
const DefaultTTL = time.Hour

// Cache keeps fetched snapshots on disk keyed by venue, kind and the
// options the fetch depended on.
type Cache struct {
	dir     string
	ttl     time.Duration
	mu      *sync.RWMutex
	disable bool
	now     func() time.Time
}

type entry struct {
	Snapshot  *venue.Snapshot `json:"snapshot"`
	Key       string          `json:"key"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// DefaultDir returns the per-user snapshot cache directory.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "chairstat", "snapshots")
}

// NewCache creates a cache in dir. An empty dir means DefaultDir, which is
// never used while running tests.
func NewCache(dir string, ttl time.Duration, disable bool) *Cache {
	if dir == "" {
		dir = DefaultDir()
		if flag.Lookup("test.v") != nil {
			disable = true
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if !disable {
		if err := os.MkdirAll(dir, 0750); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Could not create cache directory")
		}
	}

	return &Cache{
		dir:     dir,
		ttl:     ttl,
		mu:      &sync.RWMutex{},
		disable: disable,
		now:     time.Now,
	}
}

// Key builds a cache key. Variant distinguishes fetches of the same kind
// with different options, e.g. the roles of a capacity fetch.
func Key(venueID string, kind venue.Kind, variant ...string) string {
	parts := append([]string{venueID, string(kind)}, variant...)
	return strings.Join(parts, "|")
}

// Get returns a fresh cached snapshot for key, or calls fetch and caches
// the result. When fetch fails and an expired entry exists, the expired
// entry is returned.
func (c *Cache) Get(ctx context.Context, key string, fetch func(context.Context) (*venue.Snapshot, error)) (*venue.Snapshot, error) {
	if c.disable {
		return fetch(ctx)
	}

	c.mu.RLock()
	cached := c.load(key)
	c.mu.RUnlock()

	if cached != nil && c.now().Before(cached.ExpiresAt) {
		log.Debug().
			Str("key", key).
			Time("expires_at", cached.ExpiresAt).
			Msg("Using cached snapshot")
		return cached.Snapshot, nil
	}

	log.Debug().Str("key", key).Msg("Fetching snapshot")

	snap, err := fetch(ctx)
	if err != nil {
		if cached != nil && ctx.Err() == nil {
			log.Warn().
				Err(err).
				Str("key", key).
				Time("cached_at", cached.CachedAt).
				Msg("Failed to fetch snapshot, using expired cache")
			return cached.Snapshot, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.save(key, snap)
	c.mu.Unlock()

	return snap, nil
}

// Invalidate removes the cached entry for key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	file := c.path(key)
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		log.Warn().
			Err(err).
			Str("key", key).
			Str("file", file).
			Msg("Failed to remove cache file")
	}
}

func (c *Cache) load(key string) *entry {
	file := c.path(key)

	data, err := os.ReadFile(file) // #nosec G304 - file path is controlled
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().
				Err(err).
				Str("key", key).
				Str("file", file).
				Msg("Failed to read cache file")
		}
		return nil
	}

	var cached entry
	if err := json.Unmarshal(data, &cached); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Str("file", file).
			Msg("Failed to unmarshal cache file")
		return nil
	}
	if cached.Key != key || cached.Snapshot == nil {
		return nil
	}

	return &cached
}

func (c *Cache) save(key string, snap *venue.Snapshot) {
	now := c.now()
	cached := entry{
		Snapshot:  snap,
		Key:       key,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to marshal cache data")
		return
	}

	file := c.path(key)
	if err := os.WriteFile(file, data, 0600); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Str("file", file).
			Msg("Failed to write cache file")
	}
}

var fileNameCleaner = strings.NewReplacer("/", "_", "|", "__", ":", "_", " ", "_", "\\", "_")

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.json", fileNameCleaner.Replace(key)))
}
