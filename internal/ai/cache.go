package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CacheKey hashes the normalized message text.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}

// Cache is a bounded memo of classifications. The first value stored under a
// key wins; the oldest key is evicted once the cache is full. Reads use Peek
// so a hit never refreshes an entry, which keeps eviction in insertion order.
type Cache struct {
	entries *lru.Cache[string, *Intent]
}

func NewCache(max int) *Cache {
	if max < 1 {
		max = 1
	}
	entries, err := lru.New[string, *Intent](max)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Cache{entries: entries}
}

func (c *Cache) Get(key string) (*Intent, bool) {
	return c.entries.Peek(key)
}

// PutIfAbsent stores intent unless the key is already present and returns
// whichever value the cache now holds.
func (c *Cache) PutIfAbsent(key string, intent *Intent) *Intent {
	if prev, ok, _ := c.entries.PeekOrAdd(key, intent); ok {
		return prev
	}
	return intent
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// CachedClassifier memoizes another Classifier. Concurrent calls for the same
// text share one upstream request.
type CachedClassifier struct {
	next  Classifier
	cache *Cache
	group singleflight.Group
}

func NewCachedClassifier(next Classifier, size int) *CachedClassifier {
	return &CachedClassifier{
		next:  next,
		cache: NewCache(size),
	}
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (*Intent, error) {
	key := CacheKey(text)
	if intent, ok := c.cache.Get(key); ok {
		return intent, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		intent, err := c.next.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		return c.cache.PutIfAbsent(key, intent), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Intent), nil
}
