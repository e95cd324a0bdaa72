package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"relevance-engine/domain/core/aggregates"
	pkgerrors "relevance-engine/pkg/errors"
)

const relationshipSK = "RELATIONSHIP"

// relationshipItem is keyed by the edge's source entity, not by a user
// partition — Relationships are co-owned across users' entities and the
// ingest pipeline always looks them up from one specific entity pair
// (spec §3 Ownership).
type relationshipItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`

	FromEntityID     string    `dynamodbav:"FromEntityID"`
	ToEntityID       string    `dynamodbav:"ToEntityID"`
	InteractionCount int       `dynamodbav:"InteractionCount"`
	LastInteraction  string    `dynamodbav:"LastInteraction"`
	ValenceMean      float64   `dynamodbav:"ValenceMean"`
	Trend            string    `dynamodbav:"Trend"`
	DecliningStreak  int       `dynamodbav:"DecliningStreak"`
	Sensitivities    []string  `dynamodbav:"Sensitivities"`
	RecentValences   []float64 `dynamodbav:"RecentValences"`
	CreatedAt        string    `dynamodbav:"CreatedAt"`
	UpdatedAt        string    `dynamodbav:"UpdatedAt"`
	Version          int       `dynamodbav:"Version"`
}

// RelationshipRepository implements ports.RelationshipRepository on
// DynamoDB.
type RelationshipRepository struct {
	*Store
}

// NewRelationshipRepository builds a RelationshipRepository.
func NewRelationshipRepository(store *Store) *RelationshipRepository {
	return &RelationshipRepository{Store: store}
}

func relationshipKey(fromEntityID, toEntityID string) (string, string) {
	return fmt.Sprintf("ENTITY#%s", fromEntityID), sk(relationshipSK, toEntityID)
}

func toRelationshipItem(r *aggregates.Relationship) relationshipItem {
	pkv, skv := relationshipKey(r.FromEntityID(), r.ToEntityID())
	return relationshipItem{
		PK: pkv, SK: skv,
		FromEntityID:     r.FromEntityID(),
		ToEntityID:       r.ToEntityID(),
		InteractionCount: r.InteractionCount(),
		LastInteraction:  formatTime(r.LastInteraction()),
		ValenceMean:      r.ValenceMean(),
		Trend:            string(r.Trend()),
		DecliningStreak:  r.DeclineStreak(),
		Sensitivities:    r.Sensitivities(),
		Version:          r.Version(),
	}
}

func (i relationshipItem) toRelationship() *aggregates.Relationship {
	return aggregates.ReconstructRelationship(
		i.FromEntityID, i.ToEntityID, i.InteractionCount, parseTime(i.LastInteraction),
		i.ValenceMean, aggregates.SentimentTrend(i.Trend), i.DecliningStreak,
		i.Sensitivities, i.RecentValences, parseTime(i.CreatedAt), parseTime(i.UpdatedAt), i.Version,
	)
}

// Save writes a Relationship edge, optimistically locked on Version.
func (r *RelationshipRepository) Save(ctx context.Context, rel *aggregates.Relationship) error {
	item := toRelationshipItem(rel)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling relationship item")
	}
	_, err = r.Client.PutItem(ctx, conditionalPutInput(r.TableName, av, item.Version))
	if isConditionalCheckFailed(err) {
		return pkgerrors.NewConflictError("relationship was modified concurrently")
	}
	if err != nil {
		r.Logger.Error("failed to save relationship", zap.Error(err),
			zap.String("from", rel.FromEntityID()), zap.String("to", rel.ToEntityID()))
		return pkgerrors.NewDependencyError("dynamodb put relationship failed", err)
	}
	return nil
}

// Find fetches one directed edge by its entity pair.
func (r *RelationshipRepository) Find(ctx context.Context, fromEntityID, toEntityID string) (*aggregates.Relationship, error) {
	pkv, skv := relationshipKey(fromEntityID, toEntityID)
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkv},
			"SK": &types.AttributeValueMemberS{Value: skv},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb get relationship failed", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item relationshipItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling relationship item")
	}
	return item.toRelationship(), nil
}
