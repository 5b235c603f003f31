package layer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gis-qa/reviewer/internal/models"
)

// cacheEntry wraps the raw GeoJSON bytes of one fetched layer.
type cacheEntry struct {
	Filename  string    `msgpack:"filename"`
	Type      string    `msgpack:"type"`
	FetchedAt time.Time `msgpack:"fetched_at"`
	Data      []byte    `msgpack:"data"`
}

// Cache is an on-disk cache of fetched layer files, keyed by
// (session, type, filename). Conversion invalidates layer membership, so
// the application purges the cache on every session reload; entries can
// therefore never outlive the snapshot they were fetched under.
type Cache struct {
	dir       string
	sessionID string
}

// NewCache creates a cache rooted at dir for one session. A nil cache is
// valid and disables caching.
func NewCache(dir, sessionID string) (*Cache, error) {
	c := &Cache{dir: dir, sessionID: sessionID}
	if err := os.MkdirAll(c.sessionDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create layer cache directory: %w", err)
	}
	return c, nil
}

func (c *Cache) sessionDir() string {
	return filepath.Join(c.dir, c.sessionID)
}

func (c *Cache) entryPath(typ models.LayerType, filename string) string {
	// The filename comes off the wire; strip any path segments so a crafted
	// name cannot escape the session directory.
	return filepath.Join(c.sessionDir(), string(typ)+"_"+filepath.Base(filename)+".msgpack")
}

// Get returns the cached GeoJSON bytes, or ok=false on a miss.
func (c *Cache) Get(typ models.LayerType, filename string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := os.ReadFile(c.entryPath(typ, filename))
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		// Corrupt entry: drop it and refetch.
		os.Remove(c.entryPath(typ, filename))
		return nil, false
	}
	return entry.Data, true
}

// Put stores the GeoJSON bytes for a layer. Write failures are swallowed;
// the cache is an optimization, never a source of truth.
func (c *Cache) Put(typ models.LayerType, filename string, data []byte) {
	if c == nil {
		return
	}
	entry := cacheEntry{
		Filename:  filename,
		Type:      string(typ),
		FetchedAt: time.Now(),
		Data:      data,
	}
	raw, err := msgpack.Marshal(&entry)
	if err != nil {
		return
	}
	os.WriteFile(c.entryPath(typ, filename), raw, 0644)
}

// Purge removes every cached layer for the session. Called on each session
// reload so post-conversion fetches always hit the backend.
func (c *Cache) Purge() error {
	if c == nil {
		return nil
	}
	if err := os.RemoveAll(c.sessionDir()); err != nil {
		return err
	}
	return os.MkdirAll(c.sessionDir(), 0755)
}
