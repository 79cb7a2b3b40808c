package translator

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"

	"story-localizer/internal/logger"
	"story-localizer/internal/types"
)

// DefaultCacheSize is the number of translations kept in memory
const DefaultCacheSize = 10000

// CacheEntry is one cached translation
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Target      string    `json:"target"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk form of a TranslationCache
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// TranslationCache keeps recent translations keyed by target language and
// source text, optionally persisted to a JSON file.
type TranslationCache struct {
	cachePath string
	cache     *lru.Cache[string, CacheEntry]
	mu        sync.Mutex // serializes Load and Save
}

// NewTranslationCache creates a cache holding up to size entries. An empty
// path keeps the cache in memory only.
func NewTranslationCache(cachePath string, size int) (*TranslationCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, CacheEntry](size)
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to create translation cache", err)
	}
	return &TranslationCache{cachePath: cachePath, cache: cache}, nil
}

// ComputeHash returns the BLAKE3 key of text for target.
func ComputeHash(target, text string) string {
	sum := blake3.Sum256([]byte(target + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached translation of text into target.
func (c *TranslationCache) Get(target, text string) (string, bool) {
	entry, ok := c.cache.Get(ComputeHash(target, text))
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set stores a translation.
func (c *TranslationCache) Set(target, text, translation string) {
	hash := ComputeHash(target, text)
	c.cache.Add(hash, CacheEntry{
		Hash:        hash,
		Target:      target,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	})
}

// Size returns the number of cached entries.
func (c *TranslationCache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *TranslationCache) Clear() {
	c.cache.Purge()
}

// Path returns the cache file path.
func (c *TranslationCache) Path() string {
	return c.cachePath
}

// Load reads the cache file. A missing file leaves the cache empty.
func (c *TranslationCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to read cache file", err)
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return types.NewAppErrorWithDetails(types.ErrParse, "failed to parse cache file", c.cachePath, err)
	}

	// Entries are stored oldest first, so re-adding restores recency.
	for _, entry := range cacheFile.Entries {
		if entry.Hash == "" {
			entry.Hash = ComputeHash(entry.Target, entry.Original)
		}
		c.cache.Add(entry.Hash, entry)
	}

	logger.Debug("translation cache loaded",
		logger.String("path", c.cachePath),
		logger.Int("entries", c.cache.Len()))
	return nil
}

// Save writes the cache file, oldest entry first.
func (c *TranslationCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}

	cacheFile := CacheFile{
		Version: "1.0",
		Entries: c.cache.Values(),
	}

	data, err := json.MarshalIndent(cacheFile, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to marshal cache", err)
	}

	if dir := filepath.Dir(c.cachePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrInternal, "failed to create cache directory", err)
		}
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return types.NewAppError(types.ErrInternal, "failed to write cache file", err)
	}
	return nil
}

// CachedTranslator consults a TranslationCache before calling the wrapped
// translator. Failures are never cached.
type CachedTranslator struct {
	inner  Translator
	cache  *TranslationCache
	target string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedTranslator wraps inner for translations into target.
func NewCachedTranslator(inner Translator, cache *TranslationCache, target string) *CachedTranslator {
	return &CachedTranslator{inner: inner, cache: cache, target: target}
}

// Translate returns the cached translation or delegates and stores the result.
func (t *CachedTranslator) Translate(ctx context.Context, text string) (string, error) {
	if translated, ok := t.cache.Get(t.target, text); ok {
		t.hits.Add(1)
		return translated, nil
	}
	t.misses.Add(1)

	translated, err := t.inner.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	t.cache.Set(t.target, text, translated)
	return translated, nil
}

// Stats returns the hit and miss counts.
func (t *CachedTranslator) Stats() (hits, misses int64) {
	return t.hits.Load(), t.misses.Load()
}
