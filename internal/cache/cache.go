// Package cache implements the expiring, persisted key/value cache that
// shields outbound catalog calls. Entries carry their storage timestamp and
// expire lazily on read; writes degrade through an eviction ladder instead of
// surfacing storage-pressure errors to callers.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelfeed/reelfeed/internal/storage"
)

// keyPrefix namespaces all cache entries in the underlying storage so a full
// clear never touches snapshots or vector records.
const keyPrefix = "cache:"

// DefaultTTL applies to sources without an explicit TTL configured.
const DefaultTTL = 6 * time.Hour

// entry is the persisted envelope around a cached payload.
type entry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// Store is a TTL-keyed cache persisted through a Storage backend. The first
// path segment of a key ("tmdb:ab12..") selects the source's default TTL.
type Store struct {
	storage storage.Storage
	ttls    map[string]time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Options configures a Store. Zero values get sensible defaults.
type Options struct {
	// TTLs maps a source prefix (the part of the key before the first colon)
	// to its default TTL.
	TTLs   map[string]time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

// New creates a cache store on top of the given storage backend.
func New(st storage.Storage, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		storage: st,
		ttls:    opts.TTLs,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// effectiveTTL resolves the TTL for a key from its source prefix.
func (s *Store) effectiveTTL(key string) time.Duration {
	if i := strings.IndexByte(key, ':'); i > 0 {
		if ttl, ok := s.ttls[key[:i]]; ok {
			return ttl
		}
	}
	return DefaultTTL
}

// Get reads a cached value into dest using the key's source-default TTL.
// It reports whether a fresh entry was found. A stale or corrupt entry is
// deleted as a side effect and reported as a miss.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	return s.GetWithTTL(ctx, key, 0, dest)
}

// GetWithTTL is Get with an explicit TTL override for call sites with
// atypical freshness needs. A ttl of zero means the source default.
func (s *Store) GetWithTTL(ctx context.Context, key string, ttl time.Duration, dest any) bool {
	full := keyPrefix + key
	raw, ok, err := s.storage.Get(ctx, full)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.logger.Warn("cache entry corrupt, deleting", "key", key, "error", err)
		s.storage.Remove(ctx, full)
		return false
	}

	if ttl <= 0 {
		ttl = s.effectiveTTL(key)
	}
	if s.now().Sub(e.StoredAt) >= ttl {
		s.storage.Remove(ctx, full)
		return false
	}

	if err := json.Unmarshal(e.Payload, dest); err != nil {
		s.logger.Warn("cache payload corrupt, deleting", "key", key, "error", err)
		s.storage.Remove(ctx, full)
		return false
	}
	return true
}

// Set stores a value under the given key. The cache is best-effort: a write
// that fails for capacity runs the eviction ladder (clear expired, then clear
// everything cached, then give up), and nothing is ever reported back to the
// caller, which already holds the value in memory.
func (s *Store) Set(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache value not serializable", "key", key, "error", err)
		return
	}
	raw, err := json.Marshal(entry{Payload: payload, StoredAt: s.now().UTC()})
	if err != nil {
		s.logger.Warn("cache entry not serializable", "key", key, "error", err)
		return
	}

	full := keyPrefix + key
	err = s.storage.Set(ctx, full, raw)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrStorageFull) {
		s.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}

	// Ladder step 1: reclaim expired entries and retry.
	removed := s.ClearExpired(ctx)
	s.logger.Warn("cache storage full, cleared expired entries", "key", key, "removed", removed)
	if err = s.storage.Set(ctx, full, raw); err == nil {
		return
	}

	// Ladder step 2: drop the whole cache namespace and retry once more.
	if errors.Is(err, storage.ErrStorageFull) {
		s.Clear(ctx, "")
		s.logger.Warn("cache storage still full, cleared all cached entries", "key", key)
		err = s.storage.Set(ctx, full, raw)
	}
	if err != nil {
		s.logger.Warn("cache write abandoned", "key", key, "error", err)
	}
}

// Clear removes all entries under the given source prefix, or every cached
// entry when source is empty.
func (s *Store) Clear(ctx context.Context, source string) int {
	prefix := keyPrefix
	if source != "" {
		prefix += source + ":"
	}
	keys, err := s.storage.Keys(ctx, prefix)
	if err != nil {
		s.logger.Warn("cache clear failed", "prefix", prefix, "error", err)
		return 0
	}
	removed := 0
	for _, k := range keys {
		if s.storage.Remove(ctx, k) == nil {
			removed++
		}
	}
	return removed
}

// ClearExpired deletes every entry past its effective TTL and returns the
// count. Entries that fail to deserialize count as expired.
func (s *Store) ClearExpired(ctx context.Context) int {
	now := s.now()
	removed := 0
	for _, se := range s.scan(ctx) {
		if se.corrupt || now.Sub(se.storedAt) >= s.effectiveTTL(se.key) {
			if s.storage.Remove(ctx, keyPrefix+se.key) == nil {
				removed++
			}
		}
	}
	return removed
}

// ClearOldest removes old entries by storage timestamp. With maxAge zero it
// removes the oldest half; otherwise it removes everything stored before
// now-maxAge. Corrupt entries sort oldest and go first.
func (s *Store) ClearOldest(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		return s.ClearOldestPercentage(ctx, 50)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, se := range s.scan(ctx) {
		if se.storedAt.Before(cutoff) {
			if s.storage.Remove(ctx, keyPrefix+se.key) == nil {
				removed++
			}
		}
	}
	return removed
}

// ClearOldestPercentage removes the oldest ceil(pct% of N) entries.
func (s *Store) ClearOldestPercentage(ctx context.Context, pct float64) int {
	entries := s.scan(ctx)
	if len(entries) == 0 || pct <= 0 {
		return 0
	}

	n := int(math.Ceil(pct / 100 * float64(len(entries))))
	if n > len(entries) {
		n = len(entries)
	}

	removed := 0
	for _, se := range entries[:n] {
		if s.storage.Remove(ctx, keyPrefix+se.key) == nil {
			removed++
		}
	}
	return removed
}

// Maintain is the periodic housekeeping policy: clear expired entries, and if
// the cache still holds more than maxEntries, drop the oldest 30%.
func (s *Store) Maintain(ctx context.Context, maxEntries int) {
	expired := s.ClearExpired(ctx)
	remaining := len(s.scan(ctx))
	if maxEntries > 0 && remaining > maxEntries {
		dropped := s.ClearOldestPercentage(ctx, 30)
		s.logger.Info("cache maintenance", "expired", expired, "dropped", dropped)
		return
	}
	if expired > 0 {
		s.logger.Info("cache maintenance", "expired", expired)
	}
}

// SourceStats describes one source namespace.
type SourceStats struct {
	Count int           `json:"count"`
	TTL   time.Duration `json:"ttl"`
}

// Stats summarizes cache contents.
type Stats struct {
	Sources        map[string]SourceStats `json:"sources"`
	TotalKeys      int                    `json:"total_keys"`
	TotalSizeBytes int64                  `json:"total_size_bytes"`
}

// Stats counts live entries per source namespace.
func (s *Store) Stats(ctx context.Context) *Stats {
	st := &Stats{Sources: map[string]SourceStats{}}
	for _, se := range s.scan(ctx) {
		st.TotalKeys++
		source := se.key
		if i := strings.IndexByte(se.key, ':'); i > 0 {
			source = se.key[:i]
		}
		cur := st.Sources[source]
		cur.Count++
		cur.TTL = s.effectiveTTL(se.key)
		st.Sources[source] = cur
	}
	if size, err := s.storage.SizeBytes(ctx); err == nil {
		st.TotalSizeBytes = size
	}
	return st
}

// scanned is a cache key with its decoded timestamp.
type scanned struct {
	key      string // without the storage prefix
	storedAt time.Time
	corrupt  bool
}

// scan lists all cache entries ordered oldest first. Corrupt entries get the
// zero timestamp so age-based eviction reclaims them before anything else.
func (s *Store) scan(ctx context.Context) []scanned {
	keys, err := s.storage.Keys(ctx, keyPrefix)
	if err != nil {
		s.logger.Warn("cache scan failed", "error", err)
		return nil
	}

	entries := make([]scanned, 0, len(keys))
	for _, full := range keys {
		key := strings.TrimPrefix(full, keyPrefix)
		raw, ok, err := s.storage.Get(ctx, full)
		if err != nil || !ok {
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			entries = append(entries, scanned{key: key, corrupt: true})
			continue
		}
		entries = append(entries, scanned{key: key, storedAt: e.StoredAt})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].storedAt.Before(entries[j].storedAt)
	})
	return entries
}
