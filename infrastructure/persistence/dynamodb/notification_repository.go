package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

const notificationSK = "NOTIFICATION"

type notificationItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	ID        string            `dynamodbav:"ID"`
	UserID    string            `dynamodbav:"UserID"`
	Kind      string            `dynamodbav:"Kind"`
	Payload   map[string]string `dynamodbav:"Payload"`
	CreatedAt string            `dynamodbav:"CreatedAt"`
}

// NotificationRepository implements ports.NotificationRepository on
// DynamoDB. Written, never mutated (spec §3 Notification record).
type NotificationRepository struct {
	*Store
}

// NewNotificationRepository builds a NotificationRepository.
func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{Store: store}
}

// Save writes a notification record. No optimistic locking: the record
// is append-only and never updated after creation.
func (r *NotificationRepository) Save(ctx context.Context, n ports.Notification) error {
	item := notificationItem{
		PK:        pk(n.UserID.String()),
		SK:        sk(notificationSK, n.ID.String()),
		GSI1PK:    gsi1pk("NOTIFYKIND", n.UserID.String()+"#"+n.Kind),
		GSI1SK:    formatTime(n.CreatedAt),
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Kind:      n.Kind,
		Payload:   n.Payload,
		CreatedAt: formatTime(n.CreatedAt),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling notification item")
	}
	_, err = r.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.TableName),
		Item:      av,
	})
	if err != nil {
		r.Logger.Error("failed to save notification", zap.Error(err), zap.String("notificationID", n.ID.String()))
		return pkgerrors.NewDependencyError("dynamodb put notification failed", err)
	}
	return nil
}

// LastOfKind returns the most recently raised notification of a kind for
// a user, the lookup the notification-cooldown check uses (spec §6
// `notification_cooldown_seconds`).
func (r *NotificationRepository) LastOfKind(ctx context.Context, userID valueobjects.UserID, kind string) (*ports.Notification, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		IndexName:              aws.String(GSI1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: gsi1pk("NOTIFYKIND", userID.String()+"#"+kind)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query last notification failed", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var item notificationItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling notification item")
	}
	id, err := valueobjects.ParseNotificationID(item.ID)
	if err != nil {
		return nil, err
	}
	return &ports.Notification{
		ID: id, UserID: userID, Kind: item.Kind, Payload: item.Payload, CreatedAt: parseTime(item.CreatedAt),
	}, nil
}
