package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

// createTestLogger creates a logger for testing
func createTestLogger() *logger.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return &logger.Logger{Logger: l}
}

// MockTenantRepository is a mock implementation of TenantRepository for testing
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) UpdatePlan(ctx context.Context, id string, plan models.PlanTier) error {
	args := m.Called(ctx, id, plan)
	return args.Error(0)
}

// MockProfileRepository is a mock implementation of ProfileRepository for testing
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) GetByTenant(ctx context.Context, tenantID string) ([]*models.Profile, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProfileRepository) SetTenant(ctx context.Context, profileID string, tenantID *string) error {
	args := m.Called(ctx, profileID, tenantID)
	return args.Error(0)
}

// MockFolderRepository is a mock implementation of FolderRepository for testing
type MockFolderRepository struct {
	mock.Mock
}

func (m *MockFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	args := m.Called(ctx, folder)
	return args.Error(0)
}

func (m *MockFolderRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Folder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Folder), args.Error(1)
}

func (m *MockFolderRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Folder, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Folder), args.Error(1)
}

func (m *MockFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	args := m.Called(ctx, folder)
	return args.Error(0)
}

func (m *MockFolderRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockOrganizationRepository is a mock implementation of OrganizationRepository for testing
type MockOrganizationRepository struct {
	mock.Mock
}

func (m *MockOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockOrganizationRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Organization, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Organization, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Organization), args.Error(1)
}

func (m *MockOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockOrganizationRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockOrganizationRepository) AddMember(ctx context.Context, member *models.OrganizationMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockOrganizationRepository) RemoveMember(ctx context.Context, organizationID, userID string) error {
	args := m.Called(ctx, organizationID, userID)
	return args.Error(0)
}

// MockUsageService is a mock implementation of UsageService for testing
type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) GetDocumentUsage(ctx context.Context, tenant *models.Tenant) (*DocumentUsage, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentUsage), args.Error(1)
}

func (m *MockUsageService) GetSeatUsage(ctx context.Context, tenant *models.Tenant) (*SeatUsage, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SeatUsage), args.Error(1)
}

func (m *MockUsageService) CheckCanCreateDocument(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockUsageService) CheckCanAddMember(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

var errDuplicateRow = errors.New("duplicate key value violates unique constraint")

// memoryDocumentCache is an in-memory DocumentCacheRepository keyed by
// tenant and provider document id. Setting failWith makes every call fail.
type memoryDocumentCache struct {
	mu       sync.Mutex
	rows     map[string]*models.CachedDocument
	failWith error
	calls    []string
	clock    time.Time
}

func newMemoryDocumentCache() *memoryDocumentCache {
	return &memoryDocumentCache{
		rows:  make(map[string]*models.CachedDocument),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cacheKey(tenantID, documentID string) string {
	return tenantID + "/" + documentID
}

func (c *memoryDocumentCache) record(op string) error {
	c.calls = append(c.calls, op)
	return c.failWith
}

func (c *memoryDocumentCache) tick() time.Time {
	c.clock = c.clock.Add(time.Second)
	return c.clock
}

func (c *memoryDocumentCache) Insert(ctx context.Context, doc *models.CachedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("insert"); err != nil {
		return err
	}
	key := cacheKey(doc.TenantID, doc.ProviderDocumentID)
	if _, exists := c.rows[key]; exists {
		return errDuplicateRow
	}
	copied := *doc
	copied.CreatedAt = c.tick()
	copied.UpdatedAt = copied.CreatedAt
	c.rows[key] = &copied
	return nil
}

func (c *memoryDocumentCache) Upsert(ctx context.Context, doc *models.CachedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("upsert"); err != nil {
		return err
	}
	key := cacheKey(doc.TenantID, doc.ProviderDocumentID)
	copied := *doc
	if existing, ok := c.rows[key]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else {
		copied.CreatedAt = c.tick()
	}
	copied.UpdatedAt = c.tick()
	c.rows[key] = &copied
	return nil
}

func (c *memoryDocumentCache) GetByProviderID(ctx context.Context, tenantID, providerDocumentID string) (*models.CachedDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("get"); err != nil {
		return nil, err
	}
	row, ok := c.rows[cacheKey(tenantID, providerDocumentID)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (c *memoryDocumentCache) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.CachedDocument, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("list"); err != nil {
		return nil, 0, err
	}

	var matched []*models.CachedDocument
	for _, row := range c.rows {
		if row.TenantID == tenantID {
			copied := *row
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []*models.CachedDocument{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (c *memoryDocumentCache) UpdatePayload(ctx context.Context, doc *models.CachedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("update"); err != nil {
		return err
	}
	key := cacheKey(doc.TenantID, doc.ProviderDocumentID)
	row, ok := c.rows[key]
	if !ok {
		return repositories.ErrNotFound
	}
	row.Payload = doc.Payload
	row.UpdatedAt = c.tick()
	return nil
}

func (c *memoryDocumentCache) Delete(ctx context.Context, tenantID, providerDocumentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("delete"); err != nil {
		return err
	}
	delete(c.rows, cacheKey(tenantID, providerDocumentID))
	return nil
}

func (c *memoryDocumentCache) FilterOwned(ctx context.Context, tenantID string, providerDocumentIDs []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("filter"); err != nil {
		return nil, err
	}
	owned := []string{}
	for _, id := range providerDocumentIDs {
		if _, ok := c.rows[cacheKey(tenantID, id)]; ok {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

func (c *memoryDocumentCache) put(row *models.CachedDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *row
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = c.tick()
	}
	c.rows[cacheKey(row.TenantID, row.ProviderDocumentID)] = &copied
}

func (c *memoryDocumentCache) has(tenantID, documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rows[cacheKey(tenantID, documentID)]
	return ok
}

func (c *memoryDocumentCache) row(tenantID, documentID string) *models.CachedDocument {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows[cacheKey(tenantID, documentID)]
}

func (c *memoryDocumentCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

// memorySyncIntents is an in-memory SyncIntentRepository
type memorySyncIntents struct {
	mu      sync.Mutex
	intents map[string]*models.SyncIntent
	nextID  int
}

func newMemorySyncIntents() *memorySyncIntents {
	return &memorySyncIntents{intents: make(map[string]*models.SyncIntent)}
}

func (s *memorySyncIntents) Create(ctx context.Context, intent *models.SyncIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if intent.ID == "" {
		intent.ID = fmt.Sprintf("intent-%d", s.nextID)
	}
	copied := *intent
	s.intents[intent.ID] = &copied
	return nil
}

func (s *memorySyncIntents) GetByID(ctx context.Context, id string) (*models.SyncIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *intent
	return &copied, nil
}

func (s *memorySyncIntents) ListPending(ctx context.Context, limit int) ([]*models.SyncIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*models.SyncIntent
	for _, intent := range s.intents {
		if intent.State == models.SyncIntentPending && len(pending) < limit {
			copied := *intent
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (s *memorySyncIntents) MarkReconciled(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return repositories.ErrNotFound
	}
	intent.State = models.SyncIntentReconciled
	return nil
}

func (s *memorySyncIntents) RecordFailure(ctx context.Context, id string, cause string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return repositories.ErrNotFound
	}
	intent.Attempts++
	intent.LastError = cause
	if intent.Attempts >= maxAttempts {
		intent.State = models.SyncIntentFailed
	}
	return nil
}

// recordingQueue is a ReconciliationQueue that keeps what it was given
type recordingQueue struct {
	mu      sync.Mutex
	intents []*models.SyncIntent
}

func (q *recordingQueue) Enqueue(ctx context.Context, intent *models.SyncIntent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.intents = append(q.intents, intent)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.intents)
}

// memoryIdempotencyStore is an in-memory IdempotencyStore
type memoryIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]*StoredResponse
	claims    map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{
		responses: make(map[string]*StoredResponse),
		claims:    make(map[string]bool),
	}
}

func (s *memoryIdempotencyStore) Claim(ctx context.Context, tenantID, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	redisKey := BuildIdempotencyKey(tenantID, key)
	if s.claims[redisKey] || s.responses[redisKey] != nil {
		return false, nil
	}
	s.claims[redisKey] = true
	return true, nil
}

func (s *memoryIdempotencyStore) Release(ctx context.Context, tenantID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, BuildIdempotencyKey(tenantID, key))
	return nil
}

func (s *memoryIdempotencyStore) Lookup(ctx context.Context, tenantID, key string) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses[BuildIdempotencyKey(tenantID, key)], nil
}

func (s *memoryIdempotencyStore) Remember(ctx context.Context, tenantID, key string, response *StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	redisKey := BuildIdempotencyKey(tenantID, key)
	s.responses[redisKey] = response
	delete(s.claims, redisKey)
	return nil
}

func (s *memoryIdempotencyStore) held(tenantID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims[BuildIdempotencyKey(tenantID, key)]
}

// memoryUsageLedger is an in-memory DocumentUsageRepository
type memoryUsageLedger struct {
	mu       sync.Mutex
	records  []models.DocumentUsageRecord
	failWith error
	calls    int
	clock    time.Time
}

func newMemoryUsageLedger() *memoryUsageLedger {
	return &memoryUsageLedger{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (l *memoryUsageLedger) Record(ctx context.Context, record *models.DocumentUsageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failWith != nil {
		return l.failWith
	}
	copied := *record
	if copied.CreatedAt.IsZero() {
		l.clock = l.clock.Add(time.Second)
		copied.CreatedAt = l.clock
	}
	l.records = append(l.records, copied)
	return nil
}

func (l *memoryUsageLedger) CountByTenantSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failWith != nil {
		return 0, l.failWith
	}
	var count int64
	for _, record := range l.records {
		if record.TenantID == tenantID && !record.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (l *memoryUsageLedger) add(tenantID string, createdAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, models.DocumentUsageRecord{TenantID: tenantID, CreatedAt: createdAt})
}

func (l *memoryUsageLedger) count(tenantID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, record := range l.records {
		if record.TenantID == tenantID {
			n++
		}
	}
	return n
}
