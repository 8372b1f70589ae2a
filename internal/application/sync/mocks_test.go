package sync

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/possync/internal/domain/models"
)

// Mock implementations for dependencies

type MockGraphAPI struct {
	mock.Mock
}

func (m *MockGraphAPI) SecureScores(ctx context.Context, token string, days int) ([]map[string]any, error) {
	args := m.Called(ctx, token, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockGraphAPI) ControlProfiles(ctx context.Context, token string) ([]map[string]any, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockGraphAPI) ComplianceScore(ctx context.Context, token string) (map[string]any, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockGraphAPI) ComplianceScoreBreakdown(ctx context.Context, token string) ([]map[string]any, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockGraphAPI) Assessments(ctx context.Context, token string) ([]map[string]any, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockGraphAPI) AssessmentControls(ctx context.Context, token, assessmentID string) ([]map[string]any, error) {
	args := m.Called(ctx, token, assessmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

type MockTokenProvider struct {
	mock.Mock
}

func (m *MockTokenProvider) Token(ctx context.Context, tenant models.Tenant) (string, error) {
	args := m.Called(ctx, tenant)
	return args.String(0), args.Error(1)
}

type MockTenantStore struct {
	mock.Mock
}

func (m *MockTenantStore) UpsertSecureScore(ctx context.Context, score models.SecureScore) error {
	args := m.Called(ctx, score)
	return args.Error(0)
}

func (m *MockTenantStore) UpsertControlScores(ctx context.Context, controls []models.ControlScore) error {
	args := m.Called(ctx, controls)
	return args.Error(0)
}

func (m *MockTenantStore) UpsertBenchmarks(ctx context.Context, benchmarks []models.BenchmarkScore) error {
	args := m.Called(ctx, benchmarks)
	return args.Error(0)
}

func (m *MockTenantStore) UpsertControlProfiles(ctx context.Context, profiles []models.ControlProfile) error {
	args := m.Called(ctx, profiles)
	return args.Error(0)
}

func (m *MockTenantStore) UpsertComplianceScore(ctx context.Context, score models.ComplianceScore) error {
	args := m.Called(ctx, score)
	return args.Error(0)
}

func (m *MockTenantStore) UpsertAssessment(ctx context.Context, a models.Assessment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockTenantStore) UpsertAssessmentControl(ctx context.Context, ctrl models.AssessmentControl) error {
	args := m.Called(ctx, ctrl)
	return args.Error(0)
}

func (m *MockTenantStore) MarkSynced(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTenantStore) Close(ctx context.Context) {
	m.Called(ctx)
}

type MockAdminStore struct {
	mock.Mock
}

func (m *MockAdminStore) ActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tenant), args.Error(1)
}

func (m *MockAdminStore) LatestControlDocuments(ctx context.Context) ([]map[string]any, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockAdminStore) Close(ctx context.Context) {
	m.Called(ctx)
}

type MockStoreOpener struct {
	mock.Mock
}

func (m *MockStoreOpener) OpenTenantScoped(ctx context.Context, tenantID string) (TenantStore, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(TenantStore), args.Error(1)
}

func (m *MockStoreOpener) OpenAdminScoped(ctx context.Context) (AdminStore, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(AdminStore), args.Error(1)
}

type MockTenantSyncer struct {
	mock.Mock
}

func (m *MockTenantSyncer) Sync(ctx context.Context, tenant models.Tenant) (models.SyncResult, error) {
	args := m.Called(ctx, tenant)
	return args.Get(0).(models.SyncResult), args.Error(1)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) Rebuild(ctx context.Context, docs []map[string]any) (int, error) {
	args := m.Called(ctx, docs)
	return args.Int(0), args.Error(1)
}

type MockEventProducer struct {
	mock.Mock
}

func (m *MockEventProducer) PublishResult(ctx context.Context, result models.SyncResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockEventProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) RecordRun(ctx context.Context, report models.RunReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}
