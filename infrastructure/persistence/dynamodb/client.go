// Package dynamodb adapts every application/ports repository interface
// to a single DynamoDB table, following the teacher's single-table
// design in infrastructure/persistence/dynamodb/graph_repository.go and
// node_repository.go: a partition key / sort key pair per item plus a
// GSI1 for secondary access patterns, items marshaled with
// attributevalue.MarshalMap, queries built from KeyConditionExpression
// strings.
package dynamodb

import (
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// GSI1Name is the single secondary index the repository adapters use for
// their non-primary access patterns (tier/salience listing, entity name
// lookup, loop dedup, active frame, session expiry, latest notification
// of a kind), matching the teacher's GSI1 convention.
const GSI1Name = "GSI1"

// Store bundles the DynamoDB client, table name, and logger every
// per-aggregate repository embeds, avoiding repeating the same three
// fields across nine adapter types.
type Store struct {
	Client    *dynamodb.Client
	TableName string
	Logger    *zap.Logger
}

// NewStore builds a Store.
func NewStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *Store {
	return &Store{Client: client, TableName: tableName, Logger: logger}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// pk / sk build the per-aggregate partition and sort key values, the
// same `USER#<id>` / `<KIND>#<id>` shape as the teacher's graphItem.
func pk(userID string) string           { return fmt.Sprintf("USER#%s", userID) }
func sk(kind, id string) string         { return fmt.Sprintf("%s#%s", kind, id) }
func gsi1pk(kind, key string) string    { return fmt.Sprintf("%s#%s", kind, key) }

// conditionalPutInput builds a put of item with an optimistic-locking condition: the
// item either doesn't exist yet, or its stored Version is strictly less
// than the version being written. Mirrors the teacher's
// GenericRepository conditional-write pattern (backend2 abstractions
// VersionedEntity) adapted to a plain condition expression rather than a
// generic wrapper type, since each of our aggregates has its own
// reconstruct signature.
func conditionalPutInput(tableName string, item map[string]types.AttributeValue, newVersion int) *dynamodb.PutItemInput {
	return &dynamodb.PutItemInput{
		TableName:           aws.String(tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR Version < :newVersion"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":newVersion": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
		},
	}
}

// isConditionalCheckFailed reports whether err is the version-conflict
// sentinel DynamoDB raises when a conditional put's condition fails.
func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
