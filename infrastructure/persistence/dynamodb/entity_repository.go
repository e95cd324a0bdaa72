package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

const entitySK = "ENTITY"

type entityItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	ID         string `dynamodbav:"ID"`
	UserID     string `dynamodbav:"UserID"`
	Kind       string `dynamodbav:"Kind"`
	Name       string `dynamodbav:"Name"`
	CareCircle bool   `dynamodbav:"CareCircle"`
	NotifyPref string `dynamodbav:"NotifyPref"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
	Version    int    `dynamodbav:"Version"`
}

// EntityRepository implements ports.EntityRepository on DynamoDB.
type EntityRepository struct {
	*Store
}

// NewEntityRepository builds an EntityRepository.
func NewEntityRepository(store *Store) *EntityRepository {
	return &EntityRepository{Store: store}
}

func toEntityItem(e *entities.Entity) entityItem {
	return entityItem{
		PK:         pk(e.UserID().String()),
		SK:         sk(entitySK, e.ID().String()),
		GSI1PK:     gsi1pk("ENTITYNAME", e.UserID().String()+"#"+string(e.Kind())),
		GSI1SK:     e.Name(),
		ID:         e.ID().String(),
		UserID:     e.UserID().String(),
		Kind:       string(e.Kind()),
		Name:       e.Name(),
		CareCircle: e.CareCircle(),
		NotifyPref: string(e.NotificationPreference()),
		CreatedAt:  formatTime(e.CreatedAt()),
		UpdatedAt:  formatTime(e.UpdatedAt()),
		Version:    e.Version(),
	}
}

func (i entityItem) toEntity() (*entities.Entity, error) {
	id, err := valueobjects.ParseEntityID(i.ID)
	if err != nil {
		return nil, err
	}
	userID, err := valueobjects.NewUserID(i.UserID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructEntity(
		id, userID, entities.EntityKind(i.Kind), i.Name, i.CareCircle,
		entities.NotificationPreference(i.NotifyPref),
		parseTime(i.CreatedAt), parseTime(i.UpdatedAt), i.Version,
	), nil
}

// Save writes an Entity, optimistically locked on Version.
func (r *EntityRepository) Save(ctx context.Context, e *entities.Entity) error {
	item := toEntityItem(e)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling entity item")
	}
	_, err = r.Client.PutItem(ctx, conditionalPutInput(r.TableName, av, item.Version))
	if isConditionalCheckFailed(err) {
		return pkgerrors.NewConflictError("entity was modified concurrently")
	}
	if err != nil {
		r.Logger.Error("failed to save entity", zap.Error(err), zap.String("entityID", e.ID().String()))
		return pkgerrors.NewDependencyError("dynamodb put entity failed", err)
	}
	return nil
}

// FindByID fetches an Entity by its primary key.
func (r *EntityRepository) FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.EntityID) (*entities.Entity, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk(userID.String())},
			"SK": &types.AttributeValueMemberS{Value: sk(entitySK, id.String())},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb get entity failed", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item entityItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling entity item")
	}
	return item.toEntity()
}

// FindByName resolves an entity by its display name within one kind,
// the surface-form resolution path the feature extractor and open-loop
// tracker use (spec §4.1, §4.3).
func (r *EntityRepository) FindByName(ctx context.Context, userID valueobjects.UserID, kind entities.EntityKind, name string) (*entities.Entity, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		IndexName:              aws.String(GSI1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: gsi1pk("ENTITYNAME", userID.String()+"#"+string(kind))},
			":sk": &types.AttributeValueMemberS{Value: name},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query entity by name failed", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var item entityItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling entity item")
	}
	return item.toEntity()
}

// ListCareCircle lists the user's care-circle-flagged persons, the
// watch set the relationship-pressure sweep iterates (spec §9
// supplement).
func (r *EntityRepository) ListCareCircle(ctx context.Context, userID valueobjects.UserID) ([]*entities.Entity, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("CareCircle = :cc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk(userID.String())},
			":sk": &types.AttributeValueMemberS{Value: entitySK + "#"},
			":cc": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query care circle failed", err)
	}
	result := make([]*entities.Entity, 0, len(out.Items))
	for _, raw := range out.Items {
		var item entityItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		ent, err := item.toEntity()
		if err != nil {
			continue
		}
		result = append(result, ent)
	}
	return result, nil
}
