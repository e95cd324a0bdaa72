package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

const contextFrameSK = "CONTEXTFRAME"

type contextFrameItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	ID           string   `dynamodbav:"ID"`
	UserID       string   `dynamodbav:"UserID"`
	Location     string   `dynamodbav:"Location"`
	PeopleIDs    []string `dynamodbav:"PeopleIDs"`
	Activity     string   `dynamodbav:"Activity"`
	Project      string   `dynamodbav:"Project"`
	Tags         []string `dynamodbav:"Tags"`
	StartedAt    string   `dynamodbav:"StartedAt"`
	ExpiresAt    string   `dynamodbav:"ExpiresAt"`
	Active       bool     `dynamodbav:"Active"`
	EmbeddingRef string   `dynamodbav:"EmbeddingRef"`
	Version      int      `dynamodbav:"Version"`
}

// ContextFrameRepository implements ports.ContextFrameRepository on
// DynamoDB.
type ContextFrameRepository struct {
	*Store
}

// NewContextFrameRepository builds a ContextFrameRepository.
func NewContextFrameRepository(store *Store) *ContextFrameRepository {
	return &ContextFrameRepository{Store: store}
}

func toContextFrameItem(f *aggregates.ContextFrame) contextFrameItem {
	active := "0"
	if f.Active() {
		active = "1"
	}
	return contextFrameItem{
		PK:           pk(f.UserID().String()),
		SK:           sk(contextFrameSK, f.ID().String()),
		GSI1PK:       gsi1pk("ACTIVEFRAME", f.UserID().String()),
		GSI1SK:       active,
		ID:           f.ID().String(),
		UserID:       f.UserID().String(),
		Location:     f.Location(),
		PeopleIDs:    f.PeopleIDs(),
		Activity:     f.Activity(),
		Project:      f.Project(),
		Tags:         f.Tags(),
		StartedAt:    formatTime(f.StartedAt()),
		ExpiresAt:    formatTime(f.ExpiresAt()),
		Active:       active == "1",
		EmbeddingRef: f.EmbeddingRef(),
		Version:      f.Version(),
	}
}

func (i contextFrameItem) toContextFrame() (*aggregates.ContextFrame, error) {
	id, err := valueobjects.ParseContextFrameID(i.ID)
	if err != nil {
		return nil, err
	}
	userID, err := valueobjects.NewUserID(i.UserID)
	if err != nil {
		return nil, err
	}
	return aggregates.ReconstructContextFrame(
		id, userID, i.Location, i.PeopleIDs, i.Activity, i.Project, i.Tags,
		parseTime(i.StartedAt), parseTime(i.ExpiresAt), i.Active, i.EmbeddingRef, i.Version,
	), nil
}

// Save writes a ContextFrame, optimistically locked on Version.
func (r *ContextFrameRepository) Save(ctx context.Context, f *aggregates.ContextFrame) error {
	item := toContextFrameItem(f)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling context frame item")
	}
	_, err = r.Client.PutItem(ctx, conditionalPutInput(r.TableName, av, item.Version))
	if isConditionalCheckFailed(err) {
		return pkgerrors.NewConflictError("context frame was modified concurrently")
	}
	if err != nil {
		r.Logger.Error("failed to save context frame", zap.Error(err), zap.String("frameID", f.ID().String()))
		return pkgerrors.NewDependencyError("dynamodb put context frame failed", err)
	}
	return nil
}

// FindActive looks up the user's currently-flagged-active frame via
// GSI1. Expiry itself is still enforced by the caller against wall-clock
// time (spec §4.8: "expiry enforced on every read").
func (r *ContextFrameRepository) FindActive(ctx context.Context, userID valueobjects.UserID) (*aggregates.ContextFrame, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		IndexName:              aws.String(GSI1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: gsi1pk("ACTIVEFRAME", userID.String())},
			":sk": &types.AttributeValueMemberS{Value: "1"},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query active frame failed", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var item contextFrameItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling context frame item")
	}
	return item.toContextFrame()
}

// FindByID fetches a ContextFrame by its primary key.
func (r *ContextFrameRepository) FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.ContextFrameID) (*aggregates.ContextFrame, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk(userID.String())},
			"SK": &types.AttributeValueMemberS{Value: sk(contextFrameSK, id.String())},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb get context frame failed", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item contextFrameItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling context frame item")
	}
	return item.toContextFrame()
}
