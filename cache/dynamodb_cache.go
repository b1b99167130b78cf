package cache

import (
	"context"
	"strings"
	"time"

	"github.com/ammiranda/nestedset_service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoDBAPI defines the interface for DynamoDB operations
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

const tableName = "TreeCache"

// CacheItem is one cached tree as stored in DynamoDB
type CacheItem struct {
	Key       string             `dynamodbav:"key"`
	Data      []*models.TreeNode `dynamodbav:"data"`
	Timestamp int64              `dynamodbav:"timestamp"`
	TTL       int64              `dynamodbav:"ttl"`
}

// DynamoDBCache implements CacheProvider using DynamoDB
type DynamoDBCache struct {
	client   DynamoDBAPI
	cacheTTL time.Duration
	now      func() time.Time
}

// NewDynamoDBCache creates a new DynamoDB cache provider
func NewDynamoDBCache() (*DynamoDBCache, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, err
	}

	return NewDynamoDBCacheWithClient(dynamodb.NewFromConfig(cfg)), nil
}

// NewDynamoDBCacheWithClient creates a new DynamoDB cache provider with a custom client
func NewDynamoDBCacheWithClient(client DynamoDBAPI) *DynamoDBCache {
	return &DynamoDBCache{
		client:   client,
		cacheTTL: defaultTTL,
		now:      time.Now,
	}
}

// Initialize creates the DynamoDB table if it doesn't exist
func (c *DynamoDBCache) Initialize() error {
	ctx := context.TODO()

	// Check if table exists
	_, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("key"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("key"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

// GetTree retrieves a tree from DynamoDB cache if available
func (c *DynamoDBCache) GetTree(rootID int64) ([]*models.TreeNode, bool) {
	ctx := context.TODO()
	key := treeKey(rootID)

	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       itemKey(key),
	})
	if err != nil {
		logger.Warn("Error reading cached tree", zap.Int64("root_id", rootID), zap.Error(err))
		return nil, false
	}

	if result.Item == nil {
		return nil, false
	}

	var item CacheItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false
	}

	// Expired items are removed eagerly; DynamoDB's own TTL sweep is lazy
	if c.now().Unix() > item.TTL {
		c.deleteKey(ctx, key)
		return nil, false
	}

	return item.Data, true
}

// SetTree stores a tree in DynamoDB cache
func (c *DynamoDBCache) SetTree(rootID int64, tree []*models.TreeNode) {
	ctx := context.TODO()
	now := c.now()

	item := CacheItem{
		Key:       treeKey(rootID),
		Data:      tree,
		Timestamp: now.Unix(),
		TTL:       now.Add(c.cacheTTL).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		// A stale entry must not outlive a failed write
		logger.Warn("Error marshalling tree for cache", zap.Int64("root_id", rootID), zap.Error(err))
		c.InvalidateTree(rootID)
		return
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	})
	if err != nil {
		logger.Warn("Error caching tree", zap.Int64("root_id", rootID), zap.Error(err))
		c.InvalidateTree(rootID)
	}
}

// InvalidateTree removes one tree from DynamoDB cache
func (c *DynamoDBCache) InvalidateTree(rootID int64) {
	c.deleteKey(context.Background(), treeKey(rootID))
}

// InvalidateCache removes every cached tree
func (c *DynamoDBCache) InvalidateCache() {
	ctx := context.Background()
	paginator := dynamodb.NewScanPaginator(c.client, &dynamodb.ScanInput{
		TableName:            aws.String(tableName),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			logger.Warn("Error scanning cached trees", zap.Error(err))
			return
		}
		for _, item := range page.Items {
			key, ok := item["key"].(*types.AttributeValueMemberS)
			if !ok || !strings.HasPrefix(key.Value, "tree:") {
				continue
			}
			c.deleteKey(ctx, key.Value)
		}
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *DynamoDBCache) SetCacheTTL(ttl time.Duration) {
	c.cacheTTL = ttl
}

func (c *DynamoDBCache) deleteKey(ctx context.Context, key string) {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(tableName),
		Key:       itemKey(key),
	})
	if err != nil {
		logger.Warn("Error deleting cached tree", zap.String("key", key), zap.Error(err))
	}
}
