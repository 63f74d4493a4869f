package listingcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"logsite/internal/logging"
	"logsite/internal/sites"
)

// Entry is the cached listing for one site.
type Entry struct {
	Site      string               `json:"site"`
	Entries   []sites.LogFileEntry `json:"entries"`
	FetchedAt time.Time            `json:"fetched_at"`
}

// Cache provides thread-safe access to the listing cache.
type Cache struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates a cache backed by path. An empty path yields an in-memory
// cache that is never persisted.
func NewCache(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "listingcache")

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[string]Entry),
	}
	if path == "" {
		return c
	}
	if err := c.load(); err != nil {
		logger.Warn("failed to load listing cache",
			logging.String(logging.FieldEventType, "listing_cache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the cache file if it keeps failing"),
			logging.String(logging.FieldImpact, "local listings are unavailable until the next remote refresh"))
	}
	return c
}

// Lookup returns the cached listing for site.
func (c *Cache) Lookup(site string) (Entry, bool) {
	site = strings.TrimSpace(site)
	if site == "" {
		return Entry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[site]
	if !ok {
		return Entry{}, false
	}
	entry.Entries = append([]sites.LogFileEntry(nil), entry.Entries...)
	return entry, true
}

// Store replaces the cached listing for site and persists the cache.
func (c *Cache) Store(site string, entries []sites.LogFileEntry, fetchedAt time.Time) error {
	site = strings.TrimSpace(site)
	if site == "" {
		return errors.New("site name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[site] = Entry{
		Site:      site,
		Entries:   append([]sites.LogFileEntry(nil), entries...),
		FetchedAt: fetchedAt,
	}
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.logger.Debug("cached site listing",
		logging.Site(site),
		logging.Int("file_count", len(entries)))
	return nil
}

// Remove drops the cached listing for site. Removing an unknown site is not an
// error.
func (c *Cache) Remove(site string) error {
	site = strings.TrimSpace(site)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[site]; !ok {
		return nil
	}
	delete(c.entries, site)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// List returns all cached listings ordered by site name.
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}

// Count returns the number of cached sites.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	for _, entry := range entries {
		if strings.TrimSpace(entry.Site) != "" {
			c.entries[entry.Site] = entry
		}
	}
	c.logger.Debug("loaded listing cache",
		logging.Int("site_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

// save writes the cache atomically. Callers hold the write lock.
func (c *Cache) save() error {
	if c.path == "" {
		return nil
	}
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Site < entries[j].Site })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
