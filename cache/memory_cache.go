package cache

import (
	"sync"
	"time"

	"github.com/ammiranda/nestedset_service/models"
)

// MemoryCache implements CacheProvider using in-memory storage
type MemoryCache struct {
	mu       sync.RWMutex
	data     map[int64][]*models.TreeNode
	ttl      time.Duration
	expiries map[int64]time.Time
	now      func() time.Time
}

// NewMemoryCache creates a new in-memory cache provider
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		ttl:      defaultTTL,
		data:     make(map[int64][]*models.TreeNode),
		expiries: make(map[int64]time.Time),
		now:      time.Now,
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *MemoryCache) Initialize() error {
	return nil
}

// GetTree retrieves a tree from cache if available
func (c *MemoryCache) GetTree(rootID int64) ([]*models.TreeNode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expiry, exists := c.expiries[rootID]
	if !exists || c.now().After(expiry) {
		return nil, false
	}

	if tree, ok := c.data[rootID]; ok {
		return tree, true
	}

	return nil, false
}

// SetTree stores a tree in cache
func (c *MemoryCache) SetTree(rootID int64, tree []*models.TreeNode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[rootID] = tree
	c.expiries[rootID] = c.now().Add(c.ttl)
}

// InvalidateTree removes one tree from cache
func (c *MemoryCache) InvalidateTree(rootID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, rootID)
	delete(c.expiries, rootID)
}

// InvalidateCache removes all cached data
func (c *MemoryCache) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[int64][]*models.TreeNode)
	c.expiries = make(map[int64]time.Time)
}

// SetCacheTTL sets the cache time-to-live duration
func (c *MemoryCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = ttl
	// Update all existing expiries
	now := c.now()
	for rootID := range c.data {
		c.expiries[rootID] = now.Add(ttl)
	}
}
