package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB item attributes. The table's partition key is attrKey (S) and
// DynamoDB TTL should be enabled on attrExpiresAt.
const (
	attrKey       = "pk"
	attrValue     = "val"
	attrExpiresAt = "expiresAt"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// NewDynamoClient creates a DynamoDB client from the default AWS configuration chain.
func NewDynamoClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// DynamoStore is a Store backed by a single DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a store on tableName.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// Get retrieves a value by key with a strongly consistent read.
// DynamoDB deletes expired items lazily, so expiry is checked here too.
func (s *DynamoStore) Get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{attrKey: &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		StoreErrors.WithLabelValues(BackendDynamoDB, "get").Inc()
		return "", fmt.Errorf("dynamodb get %s: %w", key, err)
	}
	if out.Item == nil {
		return "", ErrNotFound
	}

	if exp, ok := out.Item[attrExpiresAt].(*types.AttributeValueMemberN); ok {
		expiresAt, err := strconv.ParseInt(exp.Value, 10, 64)
		if err == nil && expiresAt <= s.now().Unix() {
			return "", ErrNotFound
		}
	}

	value, ok := out.Item[attrValue].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("%w: %s has no string value", ErrInvalidValue, key)
	}
	return value.Value, nil
}

// Set writes a value, overwriting any existing item.
func (s *DynamoStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      s.item(key, value, ttl),
	})
	if err != nil {
		StoreErrors.WithLabelValues(BackendDynamoDB, "set").Inc()
		return fmt.Errorf("dynamodb put %s: %w", key, err)
	}
	return nil
}

// SetNX writes a value unless an unexpired item exists, using a conditional put.
func (s *DynamoStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                s.item(key, value, ttl),
		ConditionExpression: aws.String("attribute_not_exists(#k) OR #e <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#k": attrKey,
			"#e": attrExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)},
		},
	})
	if err != nil {
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return false, nil
		}
		StoreErrors.WithLabelValues(BackendDynamoDB, "setnx").Inc()
		return false, fmt.Errorf("dynamodb conditional put %s: %w", key, err)
	}
	return true, nil
}

// Ping issues a cheap read to verify table access.
func (s *DynamoStore) Ping(ctx context.Context) error {
	if _, err := s.Get(ctx, "pinger:ping"); err != nil && !errors.Is(err, ErrNotFound) {
		StoreErrors.WithLabelValues(BackendDynamoDB, "ping").Inc()
		return err
	}
	return nil
}

// Close is a no-op; the AWS client holds no closable resources.
func (s *DynamoStore) Close() error { return nil }

func (s *DynamoStore) item(key, value string, ttl time.Duration) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		attrKey:   &types.AttributeValueMemberS{Value: key},
		attrValue: &types.AttributeValueMemberS{Value: value},
	}
	if ttl > 0 {
		expiresAt := s.now().Add(ttl).Unix()
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)}
	}
	return item
}
