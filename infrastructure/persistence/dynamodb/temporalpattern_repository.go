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

const temporalPatternSK = "METADATA"

type periodicityItem struct {
	PeriodHours float64   `dynamodbav:"PeriodHours"`
	Confidence  float64   `dynamodbav:"Confidence"`
	PeakOffsets []float64 `dynamodbav:"PeakOffsets"`
}

type temporalPatternItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`

	UserID        string                                     `dynamodbav:"UserID"`
	Slots         map[string]periodicityItem                 `dynamodbav:"Slots"`
	DataStartedAt string                                      `dynamodbav:"DataStartedAt"`
	UpdatedAt     string                                      `dynamodbav:"UpdatedAt"`
	Version       int                                         `dynamodbav:"Version"`
}

// TemporalPatternRepository implements ports.TemporalPatternRepository
// on DynamoDB, one item per user (the slots map holds all three
// periodicities, recomputed wholesale per spec §3).
type TemporalPatternRepository struct {
	*Store
}

// NewTemporalPatternRepository builds a TemporalPatternRepository.
func NewTemporalPatternRepository(store *Store) *TemporalPatternRepository {
	return &TemporalPatternRepository{Store: store}
}

func temporalPatternSortKey() string { return sk("PATTERN", temporalPatternSK) }

func toTemporalPatternItem(p *aggregates.TemporalPattern) temporalPatternItem {
	slots := map[string]periodicityItem{}
	for _, slot := range []aggregates.PatternSlot{aggregates.SlotDaily, aggregates.SlotWeekly, aggregates.SlotMonthly} {
		periodicity, ok := p.Slot(slot)
		if !ok {
			continue
		}
		slots[string(slot)] = periodicityItem{
			PeriodHours: periodicity.PeriodHours,
			Confidence:  periodicity.Confidence,
			PeakOffsets: periodicity.PeakOffsets,
		}
	}
	return temporalPatternItem{
		PK:            pk(p.UserID().String()),
		SK:            temporalPatternSortKey(),
		UserID:        p.UserID().String(),
		Slots:         slots,
		DataStartedAt: formatTime(p.DataStartedAt()),
		UpdatedAt:     formatTime(p.UpdatedAt()),
		Version:       p.Version(),
	}
}

func (i temporalPatternItem) toTemporalPattern() (*aggregates.TemporalPattern, error) {
	userID, err := valueobjects.NewUserID(i.UserID)
	if err != nil {
		return nil, err
	}
	slots := map[aggregates.PatternSlot]aggregates.Periodicity{}
	for name, item := range i.Slots {
		slots[aggregates.PatternSlot(name)] = aggregates.Periodicity{
			PeriodHours: item.PeriodHours, Confidence: item.Confidence, PeakOffsets: item.PeakOffsets,
		}
	}
	return aggregates.ReconstructTemporalPattern(
		userID, slots, parseTime(i.DataStartedAt), parseTime(i.UpdatedAt), i.Version,
	), nil
}

// Save writes the user's temporal pattern, optimistically locked on
// Version.
func (r *TemporalPatternRepository) Save(ctx context.Context, p *aggregates.TemporalPattern) error {
	item := toTemporalPatternItem(p)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling temporal pattern item")
	}
	_, err = r.Client.PutItem(ctx, conditionalPutInput(r.TableName, av, item.Version))
	if isConditionalCheckFailed(err) {
		return pkgerrors.NewConflictError("temporal pattern was modified concurrently")
	}
	if err != nil {
		r.Logger.Error("failed to save temporal pattern", zap.Error(err), zap.String("userID", p.UserID().String()))
		return pkgerrors.NewDependencyError("dynamodb put temporal pattern failed", err)
	}
	return nil
}

// FindByUser fetches the user's single temporal pattern item.
func (r *TemporalPatternRepository) FindByUser(ctx context.Context, userID valueobjects.UserID) (*aggregates.TemporalPattern, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk(userID.String())},
			"SK": &types.AttributeValueMemberS{Value: temporalPatternSortKey()},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb get temporal pattern failed", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item temporalPatternItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling temporal pattern item")
	}
	return item.toTemporalPattern()
}

// ListAllUsers scans for every user with a recorded pattern item, the
// driver loop for the scheduled temporal-detection worker (spec §4.9).
// A full-table scan is acceptable here since this runs once per sweep
// interval, not per request.
func (r *TemporalPatternRepository) ListAllUsers(ctx context.Context) ([]valueobjects.UserID, error) {
	out, err := r.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.TableName),
		FilterExpression: aws.String("SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk": &types.AttributeValueMemberS{Value: temporalPatternSortKey()},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb scan temporal pattern users failed", err)
	}
	var users []valueobjects.UserID
	for _, raw := range out.Items {
		var item temporalPatternItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		userID, err := valueobjects.NewUserID(item.UserID)
		if err != nil {
			continue
		}
		users = append(users, userID)
	}
	return users, nil
}
