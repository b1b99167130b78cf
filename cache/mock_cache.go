package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/ammiranda/nestedset_service/models"
)

// MockCache is a cache provider that can be used for testing
type MockCache struct {
	mu                  sync.RWMutex
	data                map[int64][]*models.TreeNode
	ttl                 time.Duration
	expiries            map[int64]time.Time
	GetTreeCalls        int
	SetTreeCalls        int
	InvalidateTreeCalls int
	InvalidateCalls     int
	SetTTLCalls         int
	InitCalls           int
	ShouldFail          bool
}

// NewMockCache creates a new mock cache provider
func NewMockCache() *MockCache {
	return &MockCache{
		ttl:      defaultTTL,
		data:     make(map[int64][]*models.TreeNode),
		expiries: make(map[int64]time.Time),
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *MockCache) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InitCalls++
	if c.ShouldFail {
		return ErrCacheInitialization
	}
	return nil
}

// GetTree retrieves a tree from cache if available
func (c *MockCache) GetTree(rootID int64) ([]*models.TreeNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetTreeCalls++

	if c.ShouldFail {
		return nil, false
	}

	tree, ok := c.data[rootID]
	if !ok || time.Now().After(c.expiries[rootID]) {
		return nil, false
	}

	return tree, true
}

// SetTree stores a tree in cache
func (c *MockCache) SetTree(rootID int64, tree []*models.TreeNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetTreeCalls++

	if !c.ShouldFail {
		c.data[rootID] = tree
		c.expiries[rootID] = time.Now().Add(c.ttl)
	}
}

// InvalidateTree removes one tree from cache
func (c *MockCache) InvalidateTree(rootID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InvalidateTreeCalls++

	if !c.ShouldFail {
		delete(c.data, rootID)
		delete(c.expiries, rootID)
	}
}

// InvalidateCache removes all cached trees
func (c *MockCache) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InvalidateCalls++

	if !c.ShouldFail {
		c.data = make(map[int64][]*models.TreeNode)
		c.expiries = make(map[int64]time.Time)
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *MockCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetTTLCalls++

	if !c.ShouldFail {
		c.ttl = ttl
		for rootID := range c.data {
			c.expiries[rootID] = time.Now().Add(ttl)
		}
	}
}

// Reset resets all counters and state
func (c *MockCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetTreeCalls = 0
	c.SetTreeCalls = 0
	c.InvalidateTreeCalls = 0
	c.InvalidateCalls = 0
	c.SetTTLCalls = 0
	c.InitCalls = 0
	c.ShouldFail = false
	c.data = make(map[int64][]*models.TreeNode)
	c.expiries = make(map[int64]time.Time)
}

// GetCallCounts returns the number of times each method was called
func (c *MockCache) GetCallCounts() (getTree, setTree, invalidateTree, invalidate, setTTL, init int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.GetTreeCalls, c.SetTreeCalls, c.InvalidateTreeCalls, c.InvalidateCalls, c.SetTTLCalls, c.InitCalls
}

// SetShouldFail makes the mock cache fail all operations
func (c *MockCache) SetShouldFail(shouldFail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ShouldFail = shouldFail
}

// ErrCacheInitialization is returned when the mock cache is configured to fail
var ErrCacheInitialization = errors.New("mock cache initialization failed")
