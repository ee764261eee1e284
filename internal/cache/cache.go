// Package cache implements the bounded, disk-backed store of extracted
// stills.
//
// Files are named with a fixed prefix and a monotonic creation sequence:
//
//	trickplay_frame_<seq>_<ms>_<id>.jpg
//
// The sequence orders entries for eviction, the requested timestamp (ms)
// helps humans, and the random id keeps names unique when several engines
// (or processes) share one directory. Only names matching this convention
// are ever listed or deleted.
package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCapacity is the number of entries kept after eviction
	DefaultCapacity = 10

	// FilePrefix identifies files owned by the cache
	FilePrefix = "trickplay_frame_"
	// FileExt is the extension of cached stills
	FileExt = ".jpg"

	tmpPrefix = ".tmp_" + FilePrefix
)

// lastSeq is shared by every Cache in the process so two caches on the
// same directory never hand out the same sequence.
var lastSeq atomic.Uint64

// nextSeq returns max(now, last+1): wall-clock ordered, strictly increasing.
func nextSeq() uint64 {
	for {
		prev := lastSeq.Load()
		next := uint64(time.Now().UnixNano())
		if next <= prev {
			next = prev + 1
		}
		if lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Entry is a file created by the cache.
type Entry struct {
	// Path is the absolute file path
	Path string
	// Seq is the creation order (larger = newer)
	Seq uint64
}

// Cache stores stills in a directory and keeps the newest Capacity entries.
//
// Safe for concurrent use. Concurrent Store calls from other Cache
// instances on the same directory are safe as well: names never collide
// and eviction tolerates files vanishing underneath it.
type Cache struct {
	dir      string
	capacity int

	// evictMu serializes eviction within this instance
	evictMu sync.Mutex

	stored  atomic.Uint64
	evicted atomic.Uint64
}

// New creates a cache rooted at dir, creating the directory if needed.
//
// A capacity <= 0 selects DefaultCapacity.
func New(dir string, capacity int) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: directory is required")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cache: resolve directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory %q: %w", abs, err)
	}

	return &Cache{dir: abs, capacity: capacity}, nil
}

// Dir returns the absolute cache directory.
func (c *Cache) Dir() string { return c.dir }

// Capacity returns the maximum number of entries kept.
func (c *Cache) Capacity() int { return c.capacity }

// Stored returns the number of entries written by this instance.
func (c *Cache) Stored() uint64 { return c.stored.Load() }

// Evicted returns the number of entries deleted by this instance.
func (c *Cache) Evicted() uint64 { return c.evicted.Load() }

// Store writes data under a fresh name, then evicts old entries.
//
// The file is written to a temporary name and renamed into place, so
// listings never observe a partially written still. seconds is the
// requested timestamp, embedded in the name for inspection only.
func (c *Cache) Store(data []byte, seconds float64) (Entry, error) {
	seq := nextSeq()
	name := fileName(seq, seconds)
	final := filepath.Join(c.dir, name)

	tmp, err := os.CreateTemp(c.dir, tmpPrefix+"*")
	if err != nil {
		return Entry{}, fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Entry{}, fmt.Errorf("cache: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Entry{}, fmt.Errorf("cache: close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return Entry{}, fmt.Errorf("cache: publish %s: %w", name, err)
	}

	c.stored.Add(1)
	slog.Debug("cache: entry stored", "path", final, "bytes", len(data), "seq", seq)

	c.Evict()

	return Entry{Path: final, Seq: seq}, nil
}

// Evict deletes all but the newest Capacity entries and returns how many
// files it removed.
//
// Best effort: listing or deletion failures (missing files, permissions)
// are logged and ignored.
func (c *Cache) Evict() int {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	entries, err := c.Entries()
	if err != nil {
		slog.Debug("cache: eviction skipped, listing failed", "dir", c.dir, "error", err)
		return 0
	}
	if len(entries) <= c.capacity {
		return 0
	}

	removed := 0
	for _, e := range entries[:len(entries)-c.capacity] {
		if err := os.Remove(e.Path); err != nil {
			slog.Debug("cache: failed to evict entry, ignoring", "path", e.Path, "error", err)
			continue
		}
		removed++
	}

	c.evicted.Add(uint64(removed))
	if removed > 0 {
		slog.Debug("cache: evicted entries", "removed", removed, "capacity", c.capacity)
	}
	return removed
}

// Purge deletes every entry owned by the cache. Best effort, like Evict.
func (c *Cache) Purge() int {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	entries, err := c.Entries()
	if err != nil {
		slog.Debug("cache: purge skipped, listing failed", "dir", c.dir, "error", err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil {
			slog.Debug("cache: failed to purge entry, ignoring", "path", e.Path, "error", err)
			continue
		}
		removed++
	}
	c.evicted.Add(uint64(removed))
	return removed
}

// Entries lists the cache-owned files in creation order (oldest first).
//
// Files in the directory that do not follow the naming convention are
// never returned.
func (c *Cache) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: list %s: %w", c.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		seq, ok := parseSeq(de.Name())
		if !ok {
			continue
		}
		entries = append(entries, Entry{Path: filepath.Join(c.dir, de.Name()), Seq: seq})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seq != entries[j].Seq {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// fileName builds trickplay_frame_<seq:020d>_<ms:09d>_<id8>.jpg
func fileName(seq uint64, seconds float64) string {
	ms := int64(seconds * 1000)
	if ms < 0 {
		ms = 0
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s%020d_%09d_%s%s", FilePrefix, seq, ms, id, FileExt)
}

// parseSeq extracts the sequence from a cache-owned file name.
func parseSeq(name string) (uint64, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExt) {
		return 0, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileExt)
	parts := strings.Split(body, "_")
	if len(parts) != 3 {
		return 0, false
	}
	seq, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
