package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ammiranda/nestedset_service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache implements CacheProvider using Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache provider from REDIS_HOST,
// REDIS_PORT and REDIS_PASSWORD
func NewRedisCache() *RedisCache {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0, // use default DB
	}))
}

// NewRedisCacheWithClient creates a new Redis cache provider with a custom client
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    defaultTTL,
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *RedisCache) Initialize() error {
	ctx := context.Background()
	_, err := c.client.Ping(ctx).Result()
	return err
}

// GetTree retrieves a tree from cache if available
func (c *RedisCache) GetTree(rootID int64) ([]*models.TreeNode, bool) {
	ctx := context.Background()
	data, err := c.client.Get(ctx, treeKey(rootID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Error reading cached tree", zap.Int64("root_id", rootID), zap.Error(err))
		}
		return nil, false
	}

	var tree []*models.TreeNode
	if err := json.Unmarshal([]byte(data), &tree); err != nil {
		return nil, false
	}

	return tree, true
}

// SetTree stores a tree in cache
func (c *RedisCache) SetTree(rootID int64, tree []*models.TreeNode) {
	ctx := context.Background()
	data, err := json.Marshal(tree)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, treeKey(rootID), data, c.ttl).Err(); err != nil {
		logger.Warn("Error caching tree", zap.Int64("root_id", rootID), zap.Error(err))
	}
}

// InvalidateTree removes one tree from cache
func (c *RedisCache) InvalidateTree(rootID int64) {
	ctx := context.Background()
	if err := c.client.Del(ctx, treeKey(rootID)).Err(); err != nil {
		logger.Warn("Error invalidating cached tree", zap.Int64("root_id", rootID), zap.Error(err))
	}
}

// InvalidateCache removes every cached tree
func (c *RedisCache) InvalidateCache() {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, "tree:*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("Error scanning cached trees", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("Error invalidating cache", zap.Error(err))
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *RedisCache) SetCacheTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
