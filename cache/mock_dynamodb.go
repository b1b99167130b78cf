package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MockDynamoDBClient implements DynamoDBAPI for testing
type MockDynamoDBClient struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]types.AttributeValue

	// PutErr, when set, is returned by PutItem
	PutErr error
}

// NewMockDynamoDBClient creates a new mock DynamoDB client
func NewMockDynamoDBClient() *MockDynamoDBClient {
	return &MockDynamoDBClient{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
	}
}

// ItemCount returns the number of items stored in a table
func (m *MockDynamoDBClient) ItemCount(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func keyOf(item map[string]types.AttributeValue) (string, error) {
	key, ok := item["key"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing string key attribute")
	}
	return key.Value, nil
}

// CreateTable mocks the CreateTable operation
func (m *MockDynamoDBClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[*params.TableName]; !ok {
		m.tables[*params.TableName] = make(map[string]map[string]types.AttributeValue)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

// DescribeTable mocks the DescribeTable operation
func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tables[*params.TableName]; !ok {
		return nil, &types.ResourceNotFoundException{Message: params.TableName}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

// GetItem mocks the GetItem operation
func (m *MockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	// Return empty response when item doesn't exist
	return &dynamodb.GetItemOutput{Item: m.tables[*params.TableName][key]}, nil
}

// PutItem mocks the PutItem operation
func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return nil, m.PutErr
	}
	key, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	items, ok := m.tables[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: params.TableName}
	}
	items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem mocks the DeleteItem operation
func (m *MockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	delete(m.tables[*params.TableName], key)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan mocks the Scan operation, returning every item in one page
func (m *MockDynamoDBClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]map[string]types.AttributeValue, 0, len(m.tables[*params.TableName]))
	for _, item := range m.tables[*params.TableName] {
		items = append(items, item)
	}
	return &dynamodb.ScanOutput{
		Items: items,
		Count: int32(len(items)),
	}, nil
}
