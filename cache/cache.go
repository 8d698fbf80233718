// Package cache persists samples between plugin runs so derived metrics
// (deltas and rates) can be computed from one invocation to the next.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nirosys/infraplug/data"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var ErrCorruptCache = errors.New("corrupt cache file")

// DefaultDir is where caches live unless configured otherwise.
var DefaultDir = filepath.Join(os.TempDir(), "infraplug")

type entry struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// Cache is a file backed map of previous samples. It implements
// data.ValueStore.
type Cache struct {
	fs   afero.Fs
	path string

	mux     sync.Mutex
	entries map[string]entry
	hits    int
	misses  int
}

// Open loads the cache for the named plugin from dir. A missing, unreadable
// or corrupt file yields an empty cache; derived metrics then restart from
// their next sample.
func Open(fs afero.Fs, dir string, name string) *Cache {
	if dir == "" {
		dir = DefaultDir
	}
	c := &Cache{
		fs:      fs,
		path:    filepath.Join(dir, name+".json"),
		entries: map[string]entry{},
	}
	log := log.WithField("op", "cache:open").WithField("path", c.path)

	raw, err := afero.ReadFile(fs, c.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("no cache file, starting empty")
		return c
	} else if err != nil {
		log.WithField("err", err.Error()).Warn("unable to read cache, starting empty")
		return c
	}

	if len(raw) > 0 {
		loaded := map[string]entry{}
		if err := json.Unmarshal(raw, &loaded); err != nil {
			log.WithField("err", fmt.Errorf("%w: %s", ErrCorruptCache, err.Error()).Error()).Warn("discarding cache")
			return c
		}
		c.entries = loaded
	}
	return c
}

// Path is the cache file location.
func (c *Cache) Path() string { return c.path }

func (c *Cache) Get(key string) (float64, time.Time, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses += 1
		return 0, time.Time{}, false
	}
	c.hits += 1
	return e.Value, time.Unix(0, e.Timestamp), true
}

func (c *Cache) Set(key string, value float64, ts time.Time) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.entries[key] = entry{Value: value, Timestamp: ts.UnixNano()}
}

// Save writes the cache back to its file, creating the directory if needed.
// The data goes to a temporary file first and is renamed over the cache, so a
// reader never sees a partial write.
func (c *Cache) Save() error {
	c.mux.Lock()
	defer c.mux.Unlock()

	raw, err := json.Marshal(c.entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := afero.TempFile(c.fs, dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		c.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		c.fs.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := c.fs.Rename(tmpName, c.path); err != nil {
		c.fs.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", c.path, err)
	}
	return nil
}

func (c *Cache) Metrics() data.MetricCollection {
	c.mux.Lock()
	defer c.mux.Unlock()

	return data.MetricCollection{
		"cache_hits":    c.hits,
		"cache_misses":  c.misses,
		"cache_entries": len(c.entries),
	}
}
