package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// Result items live under PK=RESULT#{id}, SK=META.
const (
	pkPrefix = "RESULT#"
	skMeta   = "META"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore keeps results in a DynamoDB table with TTL enabled on
// expiresAt. DynamoDB removes expired items lazily, so reads check the
// attribute too.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

var _ ResultStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for tableName.
func NewDynamoStore(client DynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

func resultPK(id string) string { return pkPrefix + id }

// resultItem is the stored shape: the result plus its keys and expiry.
type resultItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	StoredResult
	ExpiresAt int64 `dynamodbav:"expiresAt"`
}

func resultKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: resultPK(id)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

func (s *DynamoStore) PutResult(ctx context.Context, result *StoredResult) error {
	prepare(result)
	pk := resultPK(result.ID)

	item, err := attributevalue.MarshalMap(resultItem{
		PK:           pk,
		SK:           skMeta,
		StoredResult: *result,
		ExpiresAt:    s.now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", result.ID, err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}); err != nil {
		return fmt.Errorf("PutItem PK=%s: %w", pk, err)
	}
	return nil
}

func (s *DynamoStore) GetResult(ctx context.Context, id string) (*StoredResult, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       resultKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s: %w", resultPK(id), err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item resultItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal result %s: %w", id, err)
	}
	if item.ExpiresAt > 0 && s.now().Unix() >= item.ExpiresAt {
		log.Debug().Str("result_id", id).Msg("Result found but past its TTL")
		return nil, nil
	}
	item.StoredResult.ID = id
	return &item.StoredResult, nil
}
