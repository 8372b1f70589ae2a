package sync

import (
	"context"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// zeroBackoffs collapses the wait times while preserving the attempt counts.
func zeroBackoffs(o *Orchestrator) {
	o.storeBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, constants.StoreRetryAttempts-1)
	}
	o.taskBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, constants.TaskRetryAttempts-1)
	}
}

func okResult(tenantID string, domain constants.SyncDomain) models.SyncResult {
	return models.SyncResult{TenantID: tenantID, Domain: domain, Success: true}
}

func adminWithTenants(tenants []models.Tenant, docs []map[string]any) (*MockStoreOpener, *MockAdminStore) {
	admin := new(MockAdminStore)
	admin.On("ActiveTenants", mock.Anything).Return(tenants, nil)
	admin.On("LatestControlDocuments", mock.Anything).Return(docs, nil)
	admin.On("Close", mock.Anything).Return()

	opener := new(MockStoreOpener)
	opener.On("OpenAdminScoped", mock.Anything).Return(admin, nil)
	return opener, admin
}

func TestRunFansOutTwoTasksPerTenant(t *testing.T) {
	tenants := []models.Tenant{{TenantID: "t1"}, {TenantID: "t2"}}
	opener, _ := adminWithTenants(tenants, []map[string]any{{"id": "d1"}})

	score := new(MockTenantSyncer)
	compliance := new(MockTenantSyncer)
	for _, tn := range tenants {
		score.On("Sync", mock.Anything, tn).Return(okResult(tn.TenantID, constants.DomainSecureScore), nil).Once()
		compliance.On("Sync", mock.Anything, tn).Return(okResult(tn.TenantID, constants.DomainCompliance), nil).Once()
	}

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(1, nil)

	o := NewOrchestrator(opener, score, compliance, indexer, nil, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Tenants)
	require.Len(t, report.Results, 4)
	assert.Equal(t, 4, report.Successes)
	assert.Equal(t, 1, report.Indexed)

	// Result order is stable: two entries per tenant, snapshot domain first.
	assert.Equal(t, constants.DomainSecureScore, report.Results[0].Domain)
	assert.Equal(t, "t1", report.Results[0].TenantID)
	assert.Equal(t, constants.DomainCompliance, report.Results[1].Domain)
	assert.Equal(t, "t2", report.Results[2].TenantID)

	score.AssertExpectations(t)
	compliance.AssertExpectations(t)
}

func TestRunReindexesAfterAllTasksFinish(t *testing.T) {
	tenants := []models.Tenant{{TenantID: "t1"}, {TenantID: "t2"}}
	opener, _ := adminWithTenants(tenants, nil)

	var mu sync.Mutex
	var finished int

	score := new(MockTenantSyncer)
	compliance := new(MockTenantSyncer)
	record := func(args mock.Arguments) {
		mu.Lock()
		finished++
		mu.Unlock()
	}
	score.On("Sync", mock.Anything, mock.Anything).Run(record).Return(okResult("x", constants.DomainSecureScore), nil)
	compliance.On("Sync", mock.Anything, mock.Anything).Run(record).Return(okResult("x", constants.DomainCompliance), nil)

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		// Every task must have completed before the rebuild starts.
		assert.Equal(t, 4, finished)
	}).Return(0, nil)

	o := NewOrchestrator(opener, score, compliance, indexer, nil, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	indexer.AssertExpectations(t)
}

func TestReportedFailureIsNotRetried(t *testing.T) {
	tenants := []models.Tenant{{TenantID: "t1"}}
	opener, _ := adminWithTenants(tenants, nil)

	score := new(MockTenantSyncer)
	score.On("Sync", mock.Anything, mock.Anything).
		Return(models.SyncResult{TenantID: "t1", Domain: constants.DomainSecureScore, Success: false, Error: "malformed payload"}, nil).
		Once()
	compliance := new(MockTenantSyncer)
	compliance.On("Sync", mock.Anything, mock.Anything).Return(okResult("t1", constants.DomainCompliance), nil).Once()

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(0, nil)

	o := NewOrchestrator(opener, score, compliance, indexer, nil, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Successes)
	assert.False(t, report.Results[0].Success)
	assert.Equal(t, "malformed payload", report.Results[0].Error)
	score.AssertNumberOfCalls(t, "Sync", 1)
}

func TestEscapedInfrastructureFaultIsRetried(t *testing.T) {
	tenants := []models.Tenant{{TenantID: "t1"}}
	opener, _ := adminWithTenants(tenants, nil)

	score := new(MockTenantSyncer)
	score.On("Sync", mock.Anything, mock.Anything).
		Return(models.SyncResult{}, errors.ErrTransient("connection reset")).Once()
	score.On("Sync", mock.Anything, mock.Anything).
		Return(okResult("t1", constants.DomainSecureScore), nil).Once()
	compliance := new(MockTenantSyncer)
	compliance.On("Sync", mock.Anything, mock.Anything).Return(okResult("t1", constants.DomainCompliance), nil)

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(0, nil)

	o := NewOrchestrator(opener, score, compliance, indexer, nil, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Successes)
	score.AssertNumberOfCalls(t, "Sync", 2)
}

func TestNonInfrastructureFaultIsPermanent(t *testing.T) {
	tenants := []models.Tenant{{TenantID: "t1"}}
	opener, _ := adminWithTenants(tenants, nil)

	score := new(MockTenantSyncer)
	score.On("Sync", mock.Anything, mock.Anything).
		Return(models.SyncResult{}, errors.ErrValidation("days out of range"))
	compliance := new(MockTenantSyncer)
	compliance.On("Sync", mock.Anything, mock.Anything).Return(okResult("t1", constants.DomainCompliance), nil)

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(0, nil)

	o := NewOrchestrator(opener, score, compliance, indexer, nil, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Results[0].Success)
	assert.Contains(t, report.Results[0].Error, "days out of range")
	score.AssertNumberOfCalls(t, "Sync", 1)
}

func TestRetryExhaustionDegradesToFailureResult(t *testing.T) {
	tenants := []models.Tenant{{TenantID: "t1"}, {TenantID: "t2"}}
	opener, _ := adminWithTenants(tenants, []map[string]any{{"id": "d1"}, {"id": "d2"}})

	score := new(MockTenantSyncer)
	compliance := new(MockTenantSyncer)
	score.On("Sync", mock.Anything, mock.Anything).Return(okResult("x", constants.DomainSecureScore), nil)
	compliance.On("Sync", mock.Anything, models.Tenant{TenantID: "t1"}).
		Return(okResult("t1", constants.DomainCompliance), nil)
	// Tenant t2's credential keeps getting rejected: the fault escapes, is
	// retried to exhaustion, then degrades into a reported failure.
	compliance.On("Sync", mock.Anything, models.Tenant{TenantID: "t2"}).
		Return(models.SyncResult{}, errors.ErrAuthentication("auth expired"))

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(2, nil)

	events := new(MockEventProducer)
	events.On("PublishResult", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(opener, score, compliance, indexer, events, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 4)
	assert.Equal(t, 3, report.Successes)

	var failed *models.SyncResult
	for i := range report.Results {
		if !report.Results[i].Success {
			failed = &report.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "t2", failed.TenantID)
	assert.Contains(t, failed.Error, "auth expired")

	// The troubled compliance task ran once per allowed attempt.
	compliance.AssertNumberOfCalls(t, "Sync", 1+constants.TaskRetryAttempts)

	// The rebuild still ran and every task result was published.
	assert.Equal(t, 2, report.Indexed)
	events.AssertNumberOfCalls(t, "PublishResult", 4)
}

func TestRegistryLoadRetriesTransientFaults(t *testing.T) {
	admin := new(MockAdminStore)
	admin.On("ActiveTenants", mock.Anything).Return(nil, errors.ErrTransient("db starting")).Once()
	admin.On("ActiveTenants", mock.Anything).Return([]models.Tenant{}, nil).Once()
	admin.On("LatestControlDocuments", mock.Anything).Return([]map[string]any{}, nil)
	admin.On("Close", mock.Anything).Return()

	opener := new(MockStoreOpener)
	opener.On("OpenAdminScoped", mock.Anything).Return(admin, nil)

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(0, nil)

	o := NewOrchestrator(opener, new(MockTenantSyncer), new(MockTenantSyncer), indexer, nil, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Tenants)
	admin.AssertNumberOfCalls(t, "ActiveTenants", 2)
}

func TestReindexExhaustionFailsTheRun(t *testing.T) {
	tenants := []models.Tenant{{TenantID: "t1"}}
	opener, _ := adminWithTenants(tenants, nil)

	score := new(MockTenantSyncer)
	score.On("Sync", mock.Anything, mock.Anything).Return(okResult("t1", constants.DomainSecureScore), nil)
	compliance := new(MockTenantSyncer)
	compliance.On("Sync", mock.Anything, mock.Anything).Return(okResult("t1", constants.DomainCompliance), nil)

	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(0, errors.ErrTransient("cluster red"))

	recorder := new(MockRunRecorder)
	recorder.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(opener, score, compliance, indexer, nil, recorder, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	report, err := o.Run(context.Background())
	require.Error(t, err)

	// Tenant results survive the failed rebuild and the run is still recorded.
	assert.Equal(t, 2, report.Successes)
	indexer.AssertNumberOfCalls(t, "Rebuild", constants.StoreRetryAttempts)
	recorder.AssertNumberOfCalls(t, "RecordRun", 1)
}

func TestConcurrentRunIsRejected(t *testing.T) {
	opener, _ := adminWithTenants(nil, nil)
	indexer := new(MockIndexer)
	indexer.On("Rebuild", mock.Anything, mock.Anything).Return(0, nil)

	o := NewOrchestrator(opener, new(MockTenantSyncer), new(MockTenantSyncer), indexer, nil, nil, nil, logger.NewNoopLogger())
	zeroBackoffs(o)

	o.running.Store(true)
	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, o.InFlight())
	o.running.Store(false)

	_, err = o.Run(context.Background())
	assert.NoError(t, err)
}
