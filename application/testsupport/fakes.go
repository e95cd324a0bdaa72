// Package testsupport provides in-memory fakes for every port this
// engine depends on, following the teacher's
// internal/repository/mocks.MockRepository pattern: a mutex-guarded map
// standing in for the real store, enough to exercise application-layer
// handlers without a database. Tests outside this package import it to
// assemble handlers the way infrastructure/di assembles them for real.
package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
	"relevance-engine/pkg/vectormath"
)

// checkVersion enforces the same optimistic-locking rule the real
// DynamoDB conditional write expresses (attribute_not_exists(PK) OR
// Version < :newVersion): a Save of an aggregate that already exists
// must carry a strictly greater version than what's stored, or it's a
// concurrent modification.
func checkVersion(exists bool, storedVersion, newVersion int) error {
	if exists && !(storedVersion < newVersion) {
		return pkgerrors.NewConflictError("version conflict: stored state was modified concurrently")
	}
	return nil
}

// MemoryRepository is an in-memory ports.MemoryRepository.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*entities.Memory
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]*entities.Memory{}}
}

func (r *MemoryRepository) Save(_ context.Context, m *entities.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[m.ID().String()]; ok {
		if err := checkVersion(true, existing.Version(), m.Version()); err != nil {
			return err
		}
	}
	r.byID[m.ID().String()] = m
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, userID valueobjects.UserID, id valueobjects.MemoryID) (*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id.String()]
	if !ok || m.UserID().String() != userID.String() {
		return nil, nil
	}
	return m, nil
}

func (r *MemoryRepository) FindByFingerprint(_ context.Context, userID valueobjects.UserID, fp valueobjects.Fingerprint) (*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.byID {
		if m.UserID().String() == userID.String() && m.Fingerprint() == fp {
			return m, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID valueobjects.UserID, limit int) ([]*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Memory
	for _, m := range r.byID {
		if m.UserID().String() == userID.String() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListByTier(_ context.Context, userID valueobjects.UserID, tier entities.Tier, limit int) ([]*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Memory
	for _, m := range r.byID {
		if m.UserID().String() == userID.String() && m.Tier() == tier {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListByTag(_ context.Context, userID valueobjects.UserID, tag string, limit int) ([]*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Memory
	for _, m := range r.byID {
		if m.UserID().String() != userID.String() {
			continue
		}
		for _, t := range m.Tags() {
			if t == tag {
				out = append(out, m)
				break
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListAccessedBefore(_ context.Context, tier entities.Tier, cutoff time.Time, limit int) ([]*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Memory
	for _, m := range r.byID {
		if m.Tier() == tier && m.LastAccess().Before(cutoff) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) FindIncompleteSideEffects(_ context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Memory
	for _, m := range r.byID {
		if m.UserID().String() == userID.String() && m.IsActive() && m.EmbeddingRef() == "" && m.CreatedAt().Before(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

// EntityRepository is an in-memory ports.EntityRepository.
type EntityRepository struct {
	mu   sync.RWMutex
	byID map[string]*entities.Entity
}

func NewEntityRepository() *EntityRepository {
	return &EntityRepository{byID: map[string]*entities.Entity{}}
}

func (r *EntityRepository) Save(_ context.Context, e *entities.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[e.ID().String()]; ok {
		if err := checkVersion(true, existing.Version(), e.Version()); err != nil {
			return err
		}
	}
	r.byID[e.ID().String()] = e
	return nil
}

func (r *EntityRepository) FindByID(_ context.Context, userID valueobjects.UserID, id valueobjects.EntityID) (*entities.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id.String()]
	if !ok || e.UserID().String() != userID.String() {
		return nil, nil
	}
	return e, nil
}

func (r *EntityRepository) FindByName(_ context.Context, userID valueobjects.UserID, kind entities.EntityKind, name string) (*entities.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byID {
		if e.UserID().String() == userID.String() && e.Kind() == kind && e.Name() == name {
			return e, nil
		}
	}
	return nil, nil
}

func (r *EntityRepository) ListCareCircle(_ context.Context, userID valueobjects.UserID) ([]*entities.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Entity
	for _, e := range r.byID {
		if e.UserID().String() == userID.String() && e.CareCircle() {
			out = append(out, e)
		}
	}
	return out, nil
}

// RelationshipRepository is an in-memory ports.RelationshipRepository.
type RelationshipRepository struct {
	mu  sync.RWMutex
	byK map[string]*aggregates.Relationship
}

func NewRelationshipRepository() *RelationshipRepository {
	return &RelationshipRepository{byK: map[string]*aggregates.Relationship{}}
}

func relKey(from, to string) string { return from + "->" + to }

func (r *RelationshipRepository) Save(_ context.Context, rel *aggregates.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := relKey(rel.FromEntityID(), rel.ToEntityID())
	if existing, ok := r.byK[key]; ok {
		if err := checkVersion(true, existing.Version(), rel.Version()); err != nil {
			return err
		}
	}
	r.byK[key] = rel
	return nil
}

func (r *RelationshipRepository) Find(_ context.Context, from, to string) (*aggregates.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byK[relKey(from, to)], nil
}

// OpenLoopRepository is an in-memory ports.OpenLoopRepository.
type OpenLoopRepository struct {
	mu   sync.RWMutex
	byID map[string]*entities.OpenLoop
}

func NewOpenLoopRepository() *OpenLoopRepository {
	return &OpenLoopRepository{byID: map[string]*entities.OpenLoop{}}
}

func (r *OpenLoopRepository) Save(_ context.Context, l *entities.OpenLoop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[l.ID().String()]; ok {
		if err := checkVersion(true, existing.Version(), l.Version()); err != nil {
			return err
		}
	}
	r.byID[l.ID().String()] = l
	return nil
}

func (r *OpenLoopRepository) FindByID(_ context.Context, userID valueobjects.UserID, id valueobjects.OpenLoopID) (*entities.OpenLoop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id.String()]
	if !ok || l.UserID().String() != userID.String() {
		return nil, nil
	}
	return l, nil
}

func (r *OpenLoopRepository) FindOpenByCounterpartyFingerprint(_ context.Context, userID valueobjects.UserID, counterpartyID string, descFP valueobjects.Fingerprint) (*entities.OpenLoop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.byID {
		if l.UserID().String() != userID.String() || !l.IsOpen() || l.CounterpartyID() != counterpartyID {
			continue
		}
		if valueobjects.NewFingerprint(userID, l.Description()) == descFP {
			return l, nil
		}
	}
	return nil, nil
}

func (r *OpenLoopRepository) ListOpenByUser(_ context.Context, userID valueobjects.UserID) ([]*entities.OpenLoop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.OpenLoop
	for _, l := range r.byID {
		if l.UserID().String() == userID.String() && l.IsOpen() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *OpenLoopRepository) ListOpenWithDueDateBefore(_ context.Context, cutoff time.Time, limit int) ([]*entities.OpenLoop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.OpenLoop
	for _, l := range r.byID {
		if l.IsOpen() && l.DueDate() != nil && l.DueDate().Before(cutoff) {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ContextFrameRepository is an in-memory ports.ContextFrameRepository.
type ContextFrameRepository struct {
	mu   sync.RWMutex
	byID map[string]*aggregates.ContextFrame
}

func NewContextFrameRepository() *ContextFrameRepository {
	return &ContextFrameRepository{byID: map[string]*aggregates.ContextFrame{}}
}

func (r *ContextFrameRepository) Save(_ context.Context, f *aggregates.ContextFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[f.ID().String()]; ok {
		if err := checkVersion(true, existing.Version(), f.Version()); err != nil {
			return err
		}
	}
	r.byID[f.ID().String()] = f
	return nil
}

func (r *ContextFrameRepository) FindActive(_ context.Context, userID valueobjects.UserID) (*aggregates.ContextFrame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.byID {
		if f.UserID().String() == userID.String() && f.Active() {
			return f, nil
		}
	}
	return nil, nil
}

func (r *ContextFrameRepository) FindByID(_ context.Context, userID valueobjects.UserID, id valueobjects.ContextFrameID) (*aggregates.ContextFrame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id.String()]
	if !ok || f.UserID().String() != userID.String() {
		return nil, nil
	}
	return f, nil
}

// TemporalPatternRepository is an in-memory ports.TemporalPatternRepository.
type TemporalPatternRepository struct {
	mu   sync.RWMutex
	byUser map[string]*aggregates.TemporalPattern
}

func NewTemporalPatternRepository() *TemporalPatternRepository {
	return &TemporalPatternRepository{byUser: map[string]*aggregates.TemporalPattern{}}
}

func (r *TemporalPatternRepository) Save(_ context.Context, p *aggregates.TemporalPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byUser[p.UserID().String()]; ok {
		if err := checkVersion(true, existing.Version(), p.Version()); err != nil {
			return err
		}
	}
	r.byUser[p.UserID().String()] = p
	return nil
}

func (r *TemporalPatternRepository) FindByUser(_ context.Context, userID valueobjects.UserID) (*aggregates.TemporalPattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID.String()], nil
}

func (r *TemporalPatternRepository) ListAllUsers(_ context.Context) ([]valueobjects.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []valueobjects.UserID
	for _, p := range r.byUser {
		out = append(out, p.UserID())
	}
	return out, nil
}

// RecallSessionRepository is an in-memory ports.RecallSessionRepository.
type RecallSessionRepository struct {
	mu   sync.RWMutex
	byID map[string]*aggregates.RecallSession
}

func NewRecallSessionRepository() *RecallSessionRepository {
	return &RecallSessionRepository{byID: map[string]*aggregates.RecallSession{}}
}

func (r *RecallSessionRepository) Save(_ context.Context, s *aggregates.RecallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[s.ID().String()]; ok {
		if err := checkVersion(true, existing.Version(), s.Version()); err != nil {
			return err
		}
	}
	r.byID[s.ID().String()] = s
	return nil
}

func (r *RecallSessionRepository) FindByID(_ context.Context, userID valueobjects.UserID, id valueobjects.RecallSessionID) (*aggregates.RecallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id.String()]
	if !ok || s.UserID().String() != userID.String() {
		return nil, nil
	}
	return s, nil
}

func (r *RecallSessionRepository) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]*aggregates.RecallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*aggregates.RecallSession
	for _, s := range r.byID {
		if s.ExpiresAt().Before(cutoff) {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AccessLogRepository is an in-memory ports.AccessLogRepository.
type AccessLogRepository struct {
	mu   sync.RWMutex
	bins map[string][]ports.AccessBin
}

func NewAccessLogRepository() *AccessLogRepository {
	return &AccessLogRepository{bins: map[string][]ports.AccessBin{}}
}

func (r *AccessLogRepository) RecordAccess(_ context.Context, userID valueobjects.UserID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hour := at.Truncate(time.Hour)
	key := userID.String()
	for i, b := range r.bins[key] {
		if b.HourStart.Equal(hour) {
			r.bins[key][i].Count++
			return nil
		}
	}
	r.bins[key] = append(r.bins[key], ports.AccessBin{UserID: userID, HourStart: hour, Count: 1})
	return nil
}

func (r *AccessLogRepository) ListSeries(_ context.Context, userID valueobjects.UserID, since time.Time) ([]ports.AccessBin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.AccessBin
	for _, b := range r.bins[userID.String()] {
		if !b.HourStart.Before(since) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HourStart.Before(out[j].HourStart) })
	return out, nil
}

func (r *AccessLogRepository) EarliestBin(_ context.Context, userID valueobjects.UserID) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bins := r.bins[userID.String()]
	if len(bins) == 0 {
		return time.Time{}, false, nil
	}
	earliest := bins[0].HourStart
	for _, b := range bins[1:] {
		if b.HourStart.Before(earliest) {
			earliest = b.HourStart
		}
	}
	return earliest, true, nil
}

// NotificationRepository is an in-memory ports.NotificationRepository.
type NotificationRepository struct {
	mu  sync.RWMutex
	all []ports.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Save(_ context.Context, n ports.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
	return nil
}

func (r *NotificationRepository) LastOfKind(_ context.Context, userID valueobjects.UserID, kind string) (*ports.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *ports.Notification
	for i := range r.all {
		n := r.all[i]
		if n.UserID.String() == userID.String() && n.Kind == kind {
			if last == nil || n.CreatedAt.After(last.CreatedAt) {
				last = &n
			}
		}
	}
	return last, nil
}

// VectorIndex is an in-memory ports.VectorIndex using brute-force cosine
// similarity, standing in for the real sqvect-backed adapter.
type VectorIndex struct {
	mu   sync.RWMutex
	rows map[string]map[string]vecRow
}

type vecRow struct {
	embedding vectormath.Vector
	ts        time.Time
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{rows: map[string]map[string]vecRow{}}
}

func (v *VectorIndex) Upsert(_ context.Context, userID valueobjects.UserID, memoryID string, embedding vectormath.Vector, ts time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	u := userID.String()
	if v.rows[u] == nil {
		v.rows[u] = map[string]vecRow{}
	}
	if existing, ok := v.rows[u][memoryID]; ok && existing.ts.After(ts) {
		return nil
	}
	v.rows[u][memoryID] = vecRow{embedding: embedding, ts: ts}
	return nil
}

func (v *VectorIndex) Delete(_ context.Context, userID valueobjects.UserID, memoryID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.rows[userID.String()], memoryID)
	return nil
}

func (v *VectorIndex) Query(_ context.Context, userID valueobjects.UserID, query vectormath.Vector, topK int) ([]ports.VectorMatch, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []ports.VectorMatch
	for id, row := range v.rows[userID.String()] {
		out = append(out, ports.VectorMatch{
			MemoryID:  id,
			Score:     vectormath.CosineSimilarity(query, row.embedding),
			Embedding: row.embedding,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// HotCache is an in-memory ports.HotCache; TTLs are tracked but never
// actively swept — callers that care about expiry check Get's ok return.
type HotCache struct {
	mu   sync.Mutex
	data map[string]hotEntry
}

type hotEntry struct {
	value   []byte
	expires time.Time
}

func NewHotCache() *HotCache {
	return &HotCache{data: map[string]hotEntry{}}
}

func (c *HotCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = hotEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (c *HotCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || time.Now().After(e.expires) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *HotCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *HotCache) Touch(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil
	}
	e.expires = time.Now().Add(ttl)
	c.data[key] = e
	return nil
}

// Len reports the number of live (non-expired) keys. This fake has no
// capacity limit and evicts nothing.
func (c *HotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := time.Now()
	for _, e := range c.data {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

// LanguageBackend is a scripted ports.LanguageBackend: tests configure
// canned Features per input text and a canned embedding generator.
type LanguageBackend struct {
	mu        sync.Mutex
	Responses map[string]entities.Features
	Err       error
	EmbedFunc func(text string) []float32
}

func NewLanguageBackend() *LanguageBackend {
	return &LanguageBackend{Responses: map[string]entities.Features{}}
}

func (b *LanguageBackend) ExtractFeatures(_ context.Context, req ports.FeatureRequest) (entities.Features, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return entities.Features{}, b.Err
	}
	if f, ok := b.Responses[req.Text]; ok {
		return f, nil
	}
	return entities.Features{Category: entities.CategoryObservation}, nil
}

func (b *LanguageBackend) Embed(_ context.Context, text string) ([]float32, error) {
	if b.EmbedFunc != nil {
		return b.EmbedFunc(text), nil
	}
	return deterministicEmbedding(text), nil
}

// deterministicEmbedding derives a small, stable pseudo-embedding from
// text so cosine similarity in tests is reproducible without a real
// model: same text always yields the same vector.
func deterministicEmbedding(text string) []float32 {
	const dims = 8
	v := make([]float32, dims)
	for i, r := range text {
		v[i%dims] += float32(r%31) / 31.0
	}
	return v
}

// EventBus is an in-memory ports.EventBus recording every publish call.
type EventBus struct {
	mu        sync.Mutex
	Published int
}

func NewEventBus() *EventBus { return &EventBus{} }

func (b *EventBus) Publish(_ context.Context, evts []events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Published += len(evts)
	return nil
}

// ObjectStore is an in-memory ports.ObjectStore.
type ObjectStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewObjectStore() *ObjectStore { return &ObjectStore{data: map[string][]byte{}} }

func (o *ObjectStore) Put(_ context.Context, key string, body []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data[key] = body
	return nil
}

func (o *ObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.data[key], nil
}

func (o *ObjectStore) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.data, key)
	return nil
}
