package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

const openLoopSK = "OPENLOOP"

type openLoopItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	ID                         string `dynamodbav:"ID"`
	UserID                     string `dynamodbav:"UserID"`
	LoopType                   string `dynamodbav:"LoopType"`
	CounterpartyID             string `dynamodbav:"CounterpartyID"`
	Description                string `dynamodbav:"Description"`
	DescriptionFingerprint     string `dynamodbav:"DescriptionFingerprint"`
	OriginMemoryID             string `dynamodbav:"OriginMemoryID"`
	DueDate                    string `dynamodbav:"DueDate"`
	State                      string `dynamodbav:"State"`
	LastMention                string `dynamodbav:"LastMention"`
	CreatedAt                  string `dynamodbav:"CreatedAt"`
	UpdatedAt                  string `dynamodbav:"UpdatedAt"`
	Version                    int    `dynamodbav:"Version"`
}

// OpenLoopRepository implements ports.OpenLoopRepository on DynamoDB.
type OpenLoopRepository struct {
	*Store
}

// NewOpenLoopRepository builds an OpenLoopRepository.
func NewOpenLoopRepository(store *Store) *OpenLoopRepository {
	return &OpenLoopRepository{Store: store}
}

func toOpenLoopItem(l *entities.OpenLoop) openLoopItem {
	fp := valueobjects.NewFingerprint(l.UserID(), l.CounterpartyID()+"\x00"+l.Description())
	return openLoopItem{
		PK:                     pk(l.UserID().String()),
		SK:                     sk(openLoopSK, l.ID().String()),
		GSI1PK:                 gsi1pk("LOOPDEDUP", l.UserID().String()),
		GSI1SK:                 fmt.Sprintf("%s#%s", l.CounterpartyID(), fp.String()),
		ID:                     l.ID().String(),
		UserID:                 l.UserID().String(),
		LoopType:               string(l.Type()),
		CounterpartyID:         l.CounterpartyID(),
		Description:            l.Description(),
		DescriptionFingerprint: fp.String(),
		OriginMemoryID:         l.OriginMemoryID(),
		DueDate:                formatTimePtr(l.DueDate()),
		State:                  string(l.State()),
		LastMention:            formatTime(l.LastMention()),
		CreatedAt:              formatTime(l.CreatedAt()),
		UpdatedAt:              formatTime(l.UpdatedAt()),
		Version:                l.Version(),
	}
}

func (i openLoopItem) toOpenLoop() (*entities.OpenLoop, error) {
	id, err := valueobjects.ParseOpenLoopID(i.ID)
	if err != nil {
		return nil, err
	}
	userID, err := valueobjects.NewUserID(i.UserID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructOpenLoop(
		id, userID, entities.LoopType(i.LoopType), i.CounterpartyID, i.Description, i.OriginMemoryID,
		parseTimePtr(i.DueDate), entities.LoopState(i.State),
		parseTime(i.LastMention), parseTime(i.CreatedAt), parseTime(i.UpdatedAt), i.Version,
	), nil
}

// Save writes an OpenLoop, optimistically locked on Version.
func (r *OpenLoopRepository) Save(ctx context.Context, l *entities.OpenLoop) error {
	item := toOpenLoopItem(l)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling open loop item")
	}
	_, err = r.Client.PutItem(ctx, conditionalPutInput(r.TableName, av, item.Version))
	if isConditionalCheckFailed(err) {
		return pkgerrors.NewConflictError("open loop was modified concurrently")
	}
	if err != nil {
		r.Logger.Error("failed to save open loop", zap.Error(err), zap.String("loopID", l.ID().String()))
		return pkgerrors.NewDependencyError("dynamodb put open loop failed", err)
	}
	return nil
}

// FindByID fetches an OpenLoop by its primary key.
func (r *OpenLoopRepository) FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.OpenLoopID) (*entities.OpenLoop, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk(userID.String())},
			"SK": &types.AttributeValueMemberS{Value: sk(openLoopSK, id.String())},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb get open loop failed", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item openLoopItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling open loop item")
	}
	return item.toOpenLoop()
}

// FindOpenByCounterpartyFingerprint implements the (user, counterparty,
// description-fingerprint) dedup lookup via GSI1 (spec §4.3).
func (r *OpenLoopRepository) FindOpenByCounterpartyFingerprint(ctx context.Context, userID valueobjects.UserID, counterpartyID string, descriptionFingerprint valueobjects.Fingerprint) (*entities.OpenLoop, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		IndexName:              aws.String(GSI1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		FilterExpression:       aws.String("#st = :open"),
		ExpressionAttributeNames: map[string]string{
			"#st": "State",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: gsi1pk("LOOPDEDUP", userID.String())},
			":sk":   &types.AttributeValueMemberS{Value: fmt.Sprintf("%s#%s", counterpartyID, descriptionFingerprint.String())},
			":open": &types.AttributeValueMemberS{Value: string(entities.LoopOpen)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query loop dedup failed", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var item openLoopItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling open loop item")
	}
	return item.toOpenLoop()
}

// ListOpenByUser lists every open loop for a user.
func (r *OpenLoopRepository) ListOpenByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.OpenLoop, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("#st = :open"),
		ExpressionAttributeNames: map[string]string{
			"#st": "State",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: pk(userID.String())},
			":sk":   &types.AttributeValueMemberS{Value: openLoopSK + "#"},
			":open": &types.AttributeValueMemberS{Value: string(entities.LoopOpen)},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query open loops failed", err)
	}
	return unmarshalOpenLoops(out.Items)
}

// ListOpenWithDueDateBefore scans for open loops past a due-date cutoff,
// feeding the periodic expiry sweeper (spec §4.3).
func (r *OpenLoopRepository) ListOpenWithDueDateBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entities.OpenLoop, error) {
	out, err := r.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.TableName),
		FilterExpression: aws.String("#st = :open AND DueDate <> :empty AND DueDate < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#st": "State",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":open":   &types.AttributeValueMemberS{Value: string(entities.LoopOpen)},
			":empty":  &types.AttributeValueMemberS{Value: ""},
			":cutoff": &types.AttributeValueMemberS{Value: formatTime(cutoff)},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb scan due loops failed", err)
	}
	return unmarshalOpenLoops(out.Items)
}

func unmarshalOpenLoops(rawItems []map[string]types.AttributeValue) ([]*entities.OpenLoop, error) {
	loops := make([]*entities.OpenLoop, 0, len(rawItems))
	for _, raw := range rawItems {
		var item openLoopItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		l, err := item.toOpenLoop()
		if err != nil {
			continue
		}
		loops = append(loops, l)
	}
	return loops, nil
}
