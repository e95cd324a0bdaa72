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

const memorySK = "MEMORY"

// memoryItem is the DynamoDB item shape for a Memory, serving the
// spec's four access patterns: (user, created_at desc) via PK/SK,
// (user, tier, salience desc) via GSI1, and (user, fingerprint) and tag
// listing by filters within the user's PK partition, with no index of
// their own (spec §6 Persisted state layout).
type memoryItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	ID             string            `dynamodbav:"ID"`
	UserID         string            `dynamodbav:"UserID"`
	Text           string            `dynamodbav:"Text"`
	Fingerprint    string            `dynamodbav:"Fingerprint"`
	CreatedAt      string            `dynamodbav:"CreatedAt"`
	LastAccess     string            `dynamodbav:"LastAccess"`
	UpdatedAt      string            `dynamodbav:"UpdatedAt"`
	State          string            `dynamodbav:"State"`
	Tier           string            `dynamodbav:"Tier"`
	AccessCount    int               `dynamodbav:"AccessCount"`
	Features       featuresItem      `dynamodbav:"Features"`
	Salience       float64           `dynamodbav:"Salience"`
	CurrentScore   float64           `dynamodbav:"CurrentScore"`
	WeightsVersion string            `dynamodbav:"WeightsVersion"`
	EntityIDs      []string          `dynamodbav:"EntityIDs"`
	EmbeddingRef   string            `dynamodbav:"EmbeddingRef"`
	Tags           []string          `dynamodbav:"Tags"`
	PredictiveHints []string         `dynamodbav:"PredictiveHints"`
	OriginContext  map[string]string `dynamodbav:"OriginContext"`
	SchemaVersion  int               `dynamodbav:"SchemaVersion"`
	Degraded       bool              `dynamodbav:"Degraded"`
	DegradedReason string            `dynamodbav:"DegradedReason"`
	Version        int               `dynamodbav:"Version"`
}

type featuresItem struct {
	People              []entities.PersonMention    `dynamodbav:"People"`
	Topics              []string                    `dynamodbav:"Topics"`
	Locations           []string                    `dynamodbav:"Locations"`
	Category            string                      `dynamodbav:"Category"`
	Valence             float64                     `dynamodbav:"Valence"`
	Arousal             float64                     `dynamodbav:"Arousal"`
	ProposedCommitments []entities.ProposedCommitment `dynamodbav:"ProposedCommitments"`
	NoveltyTokens       []string                    `dynamodbav:"NoveltyTokens"`
	Degraded            bool                        `dynamodbav:"Degraded"`
	DegradedReason      string                      `dynamodbav:"DegradedReason"`
}

func toFeaturesItem(f entities.Features) featuresItem {
	return featuresItem{
		People: f.People, Topics: f.Topics, Locations: f.Locations,
		Category: string(f.Category), Valence: f.Valence, Arousal: f.Arousal,
		ProposedCommitments: f.ProposedCommitments, NoveltyTokens: f.NoveltyTokens,
		Degraded: f.Degraded, DegradedReason: f.DegradedReason,
	}
}

func (fi featuresItem) toFeatures() entities.Features {
	return entities.Features{
		People: fi.People, Topics: fi.Topics, Locations: fi.Locations,
		Category: entities.Category(fi.Category), Valence: fi.Valence, Arousal: fi.Arousal,
		ProposedCommitments: fi.ProposedCommitments, NoveltyTokens: fi.NoveltyTokens,
		Degraded: fi.Degraded, DegradedReason: fi.DegradedReason,
	}
}

// MemoryRepository implements ports.MemoryRepository on DynamoDB.
type MemoryRepository struct {
	*Store
}

// NewMemoryRepository builds a MemoryRepository.
func NewMemoryRepository(store *Store) *MemoryRepository {
	return &MemoryRepository{Store: store}
}

func toMemoryItem(m *entities.Memory) memoryItem {
	return memoryItem{
		PK:              pk(m.UserID().String()),
		SK:              sk(memorySK, m.ID().String()),
		GSI1PK:          gsi1pk("TIER", m.UserID().String()+"#"+string(m.Tier())),
		GSI1SK:          fmt.Sprintf("%020.6f#%s", 1e9-m.CurrentScore(), m.ID().String()),
		ID:              m.ID().String(),
		UserID:          m.UserID().String(),
		Text:            m.Text(),
		Fingerprint:     m.Fingerprint().String(),
		CreatedAt:       formatTime(m.CreatedAt()),
		LastAccess:      formatTime(m.LastAccess()),
		UpdatedAt:       formatTime(m.UpdatedAt()),
		State:           string(m.State()),
		Tier:            string(m.Tier()),
		AccessCount:     m.AccessCount(),
		Features:        toFeaturesItem(m.Features()),
		Salience:        m.Salience(),
		CurrentScore:    m.CurrentScore(),
		WeightsVersion:  m.WeightsVersion(),
		EntityIDs:       m.EntityIDs(),
		EmbeddingRef:    m.EmbeddingRef(),
		Tags:            m.Tags(),
		PredictiveHints: m.PredictiveHints(),
		OriginContext:   m.OriginContext(),
		SchemaVersion:   m.SchemaVersion(),
		Degraded:        m.Degraded(),
		DegradedReason:  m.DegradedReason(),
		Version:         m.Version(),
	}
}

func (i memoryItem) toMemory() (*entities.Memory, error) {
	id, err := valueobjects.ParseMemoryID(i.ID)
	if err != nil {
		return nil, err
	}
	userID, err := valueobjects.NewUserID(i.UserID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructMemory(
		id, userID, i.Text, valueobjects.Fingerprint(i.Fingerprint),
		parseTime(i.CreatedAt), parseTime(i.LastAccess), parseTime(i.UpdatedAt),
		entities.LifecycleState(i.State), entities.Tier(i.Tier), i.AccessCount,
		i.Features.toFeatures(), i.Salience, i.CurrentScore, i.WeightsVersion,
		i.EntityIDs, i.EmbeddingRef, i.Tags, i.PredictiveHints, i.OriginContext,
		i.SchemaVersion, i.Degraded, i.DegradedReason, i.Version,
	), nil
}

// Save writes a Memory with an optimistic-locking condition: the stored
// version must be strictly less than the one being written, or the item
// must not exist yet (spec §4.6 supplemented optimistic concurrency).
func (r *MemoryRepository) Save(ctx context.Context, m *entities.Memory) error {
	item := toMemoryItem(m)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling memory item")
	}
	_, err = r.Client.PutItem(ctx, conditionalPutInput(r.TableName, av, item.Version))
	if isConditionalCheckFailed(err) {
		return pkgerrors.NewConflictError("memory was modified concurrently")
	}
	if err != nil {
		r.Logger.Error("failed to save memory", zap.Error(err), zap.String("memoryID", m.ID().String()))
		return pkgerrors.NewDependencyError("dynamodb put memory failed", err)
	}
	return nil
}

// FindByID fetches a Memory by its primary key.
func (r *MemoryRepository) FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.MemoryID) (*entities.Memory, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk(userID.String())},
			"SK": &types.AttributeValueMemberS{Value: sk(memorySK, id.String())},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb get memory failed", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item memoryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling memory item")
	}
	return item.toMemory()
}

// FindByFingerprint looks up a memory by its per-user dedup key. GSI1 is
// already spent on the tier/salience access pattern for this aggregate,
// so the fingerprint lookup filters within the user's primary-key
// partition instead of adding a second GSI (spec §4.5 step 1, §3
// "fingerprint unique per user").
func (r *MemoryRepository) FindByFingerprint(ctx context.Context, userID valueobjects.UserID, fp valueobjects.Fingerprint) (*entities.Memory, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("Fingerprint = :fp"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk(userID.String())},
			":sk": &types.AttributeValueMemberS{Value: memorySK + "#"},
			":fp": &types.AttributeValueMemberS{Value: fp.String()},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query fingerprint failed", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var item memoryItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling memory item")
	}
	return item.toMemory()
}

// ListByUser lists a user's memories most-recent-first via the primary
// key prefix.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID valueobjects.UserID, limit int) ([]*entities.Memory, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk(userID.String())},
			":sk": &types.AttributeValueMemberS{Value: memorySK + "#"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query memories failed", err)
	}
	return unmarshalMemories(out.Items)
}

// ListByTier lists a user's memories within one tier, ranked by
// descending current score (spec §6 index "(user_id, tier, salience
// desc)").
func (r *MemoryRepository) ListByTier(ctx context.Context, userID valueobjects.UserID, tier entities.Tier, limit int) ([]*entities.Memory, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		IndexName:              aws.String(GSI1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: gsi1pk("TIER", userID.String()+"#"+string(tier))},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query tier failed", err)
	}
	return unmarshalMemories(out.Items)
}

// ListByTag scans a user's memories for one matching tag. The single-
// table design has no dedicated tag index, so this filters within the
// user's partition rather than scanning the whole table, matching the
// teacher's FilterExpression-over-Query pattern for its lower-
// cardinality lookups (node_repository.go FindByTags).
func (r *MemoryRepository) ListByTag(ctx context.Context, userID valueobjects.UserID, tag string, limit int) ([]*entities.Memory, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("contains(Tags, :tag)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  &types.AttributeValueMemberS{Value: pk(userID.String())},
			":sk":  &types.AttributeValueMemberS{Value: memorySK + "#"},
			":tag": &types.AttributeValueMemberS{Value: tag},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query by tag failed", err)
	}
	return unmarshalMemories(out.Items)
}

// ListAccessedBefore supports the tier demotion sweep (spec §4.6) with
// one full-table Scan filtered on tier and last access, across all
// users; there is no index on last access.
func (r *MemoryRepository) ListAccessedBefore(ctx context.Context, tier entities.Tier, cutoff time.Time, limit int) ([]*entities.Memory, error) {
	out, err := r.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.TableName),
		FilterExpression: aws.String("Tier = :tier AND LastAccess < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tier":   &types.AttributeValueMemberS{Value: string(tier)},
			":cutoff": &types.AttributeValueMemberS{Value: formatTime(cutoff)},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb scan accessed-before failed", err)
	}
	return unmarshalMemories(out.Items)
}

// FindIncompleteSideEffects supports the repair sweep (spec §4.5): a
// memory older than cutoff with an empty EmbeddingRef never completed
// its async embedding upsert, so it is a candidate for re-running
// sideEffects. Queried within the user's partition: the maintenance
// worker loop calls this per user rather than scanning the whole table.
func (r *MemoryRepository) FindIncompleteSideEffects(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Memory, error) {
	out, err := r.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.TableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("EmbeddingRef = :empty AND CreatedAt < :cutoff AND #state = :active"),
		ExpressionAttributeNames: map[string]string{
			"#state": "State",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk(userID.String())},
			":sk":     &types.AttributeValueMemberS{Value: memorySK + "#"},
			":empty":  &types.AttributeValueMemberS{Value: ""},
			":cutoff": &types.AttributeValueMemberS{Value: formatTime(cutoff)},
			":active": &types.AttributeValueMemberS{Value: string(entities.StateActive)},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("dynamodb query incomplete side effects failed", err)
	}
	return unmarshalMemories(out.Items)
}

func unmarshalMemories(rawItems []map[string]types.AttributeValue) ([]*entities.Memory, error) {
	mems := make([]*entities.Memory, 0, len(rawItems))
	for _, raw := range rawItems {
		var item memoryItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		mem, err := item.toMemory()
		if err != nil {
			continue
		}
		mems = append(mems, mem)
	}
	return mems, nil
}
