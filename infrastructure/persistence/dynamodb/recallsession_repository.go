package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/pkg/vectormath"
	pkgerrors "relevance-engine/pkg/errors"
)

const recallSessionSK = "RECALLSESSION"

type recallCandidateItem struct {
	MemoryID  string    `dynamodbav:"MemoryID"`
	Embedding []float32 `dynamodbav:"Embedding"`
	Score     float64   `dynamodbav:"Score"`
	Branch    bool      `dynamodbav:"Branch"`
}

type recallRoundItem struct {
	QueryVector []float32                     `dynamodbav:"QueryVector"`
	Candidates  []recallCandidateItem         `dynamodbav:"Candidates"`
	Votes       map[string]string             `dynamodbav:"Votes"`
}

type recallSessionItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	ID            string            `dynamodbav:"ID"`
	UserID        string            `dynamodbav:"UserID"`
	OriginalQuery []float32         `dynamodbav:"OriginalQuery"`
	Rounds        []recallRoundItem `dynamodbav:"Rounds"`
	Resolved      bool              `dynamodbav:"Resolved"`
	CreatedAt     string            `dynamodbav:"CreatedAt"`
	ExpiresAt     string            `dynamodbav:"ExpiresAt"`
	Version       int               `dynamodbav:"Version"`
}

// RecallSessionRepository implements ports.RecallSessionRepository on
// DynamoDB. Sessions are ephemeral (spec §3 "TTL ~5 minutes"); a
// deployment would also set the table's native TTL attribute to
// ExpiresAt so unresolved sessions self-clean without the sweeper.
type RecallSessionRepository struct {
	*Store
}

// NewRecallSessionRepository builds a RecallSessionRepository.
func NewRecallSessionRepository(store *Store) *RecallSessionRepository {
	return &RecallSessionRepository{Store: store}
}

func toRecallSessionItem(s *aggregates.RecallSession) recallSessionItem {
	rounds := make([]recallRoundItem, 0, len(s.Rounds()))
	for _, round := range s.Rounds() {
		candidates := make([]recallCandidateItem, 0, len(round.Candidates))
		for _, c := range round.Candidates {
			candidates = append(candidates, recallCandidateItem{
				MemoryID: c.MemoryID, Embedding: []float32(c.Embedding), Score: c.Score, Branch: c.Branch,
			})
		}
		votes := map[string]string{}
		for memoryID, vote := range round.Votes {
			votes[memoryID] = string(vote)
		}
		rounds = append(rounds, recallRoundItem{
			QueryVector: []float32(round.QueryVector), Candidates: candidates, Votes: votes,
		})
	}

	resolvedFlag := "0"
	if s.Resolved() {
		resolvedFlag = "1"
	}
	var originalQuery []float32
	if len(rounds) > 0 {
		originalQuery = rounds[0].QueryVector
	}
	return recallSessionItem{
		PK:            pk(s.UserID().String()),
		SK:            sk(recallSessionSK, s.ID().String()),
		GSI1PK:        gsi1pk("SESSIONEXPIRY", resolvedFlag),
		GSI1SK:        formatTime(s.ExpiresAt()),
		ID:            s.ID().String(),
		UserID:        s.UserID().String(),
		OriginalQuery: originalQuery,
		Rounds:        rounds,
		Resolved:      s.Resolved(),
		CreatedAt:     formatTime(s.CreatedAt()),
		ExpiresAt:     formatTime(s.ExpiresAt()),
		Version:       s.Version(),
	}
}

func (i recallSessionItem) toRecallSession() (*aggregates.RecallSession, error) {
	id, err := valueobjects.ParseRecallSessionID(i.ID)
	if err != nil {
		return nil, err
	}
	userID, err := valueobjects.NewUserID(i.UserID)
	if err != nil {
		return nil, err
	}
	rounds := make([]aggregates.RecallRound, 0, len(i.Rounds))
	for _, roundItem := range i.Rounds {
		candidates := make([]aggregates.RecallCandidate, 0, len(roundItem.Candidates))
		for _, c := range roundItem.Candidates {
			candidates = append(candidates, aggregates.RecallCandidate{
				MemoryID: c.MemoryID, Embedding: vectormath.Vector(c.Embedding), Score: c.Score, Branch: c.Branch,
			})
		}
		votes := map[string]aggregates.RecallVote{}
		for memoryID, vote := range roundItem.Votes {
			votes[memoryID] = aggregates.RecallVote(vote)
		}
		rounds = append(rounds, aggregates.RecallRound{
			QueryVector: vectormath.Vector(roundItem.QueryVector), Candidates: candidates, Votes: votes,
		})
	}
	return aggregates.ReconstructRecallSession(
		id, userID, vectormath.Vector(i.OriginalQuery), rounds, i.Resolved,
		parseTime(i.CreatedAt), parseTime(i.ExpiresAt), i.Version,
	), nil
}

// Save writes a RecallSession, optimistically locked on Version.
func (r *RecallSessionRepository) Save(ctx context.Context, s *aggregates.RecallSession) error {
	item := toRecallSessionItem(s)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling recall session item")
	}
	_, err = r.Client.PutItem(ctx, conditionalPutInput(r.TableName, av, item.Version))
	if isConditionalCheckFailed(err) {
		return pkgerrors.NewConflictError("recall session was modified concurrently")
	}
	if err != nil {
		r.Logger.Error("failed to save recall session", zap.Error(err), zap.String("sessionID", s.ID().String()))
		return pkgerrors.NewDependencyError("dynamodb put recall session failed", err)
	}
	return nil
}

// FindByID fetches a RecallSession by its primary key.
func (r *RecallSessionRepository) FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.RecallSessionID) (*aggregates.RecallSession, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk(userID.String())},
			"SK": &types.AttributeValueMemberS{Value: sk(recallSessionSK, id.String())},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb get recall session failed", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item recallSessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling recall session item")
	}
	return item.toRecallSession()
}

// ListExpired lists unresolved sessions past cutoff, feeding the
// maintenance sweeper's session-expiry pass (spec §4.10 "unresolved
// sessions expire after a TTL").
func (r *RecallSessionRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*aggregates.RecallSession, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		IndexName:              aws.String(GSI1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: gsi1pk("SESSIONEXPIRY", "0")},
			":cutoff": &types.AttributeValueMemberS{Value: formatTime(cutoff)},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query expired sessions failed", err)
	}
	sessions := make([]*aggregates.RecallSession, 0, len(out.Items))
	for _, raw := range out.Items {
		var item recallSessionItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		s, err := item.toRecallSession()
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
