package persist

import (
	"os"
	"sync"
	"time"

	"github.com/groundbot/retrieval/internal/indexer/index"
)

// Cache avoids reparsing an unchanged index file. Entries are keyed by path
// and reused while the file's modification time and size are unchanged; an
// out-of-band write to the file is picked up on the next Load through the
// changed mtime. There is no background polling, so callers that rewrite
// the file themselves must call Invalidate.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	idx     *index.Index
}

// NewCache returns an empty load cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Load returns the cached index for path when the file is unchanged, and
// otherwise parses it and refreshes the entry. A missing file yields a
// fresh empty index and is not cached.
func (c *Cache) Load(path string) (*index.Index, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return index.New(), nil
		}
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok && e.modTime.Equal(fi.ModTime()) && e.size == fi.Size() {
		return e.idx, nil
	}

	ix, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.entries[path] = cacheEntry{
		modTime: fi.ModTime(),
		size:    fi.Size(),
		idx:     ix,
	}
	return ix, nil
}

// Invalidate drops the cached entry for path so the next Load reparses the
// file.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
