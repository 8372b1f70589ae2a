package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/internal/infrastructure/audit"
	"github.com/turtacn/possync/internal/infrastructure/monitoring"
	"github.com/turtacn/possync/internal/infrastructure/search"
	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// TenantSyncer is one of the two per-tenant sync tasks. An error return
// means the task was aborted mid-flight and may be retried; a returned
// result with Success=false is final and never retried.
type TenantSyncer interface {
	Sync(ctx context.Context, tenant models.Tenant) (models.SyncResult, error)
}

// Orchestrator drives one full run: load the registry, fan out two tasks
// per active tenant, wait for every task, then rebuild the search index
// across all tenants. The reindex always runs, regardless of how many
// tenant tasks failed.
type Orchestrator struct {
	stores     StoreOpener
	score      TenantSyncer
	compliance TenantSyncer
	indexer    search.Indexer
	events     audit.EventProducer
	recorder   audit.RunRecorder
	metrics    *monitoring.Metrics
	logger     logger.Logger

	// Backoff factories are fields so tests can collapse the wait times.
	storeBackoff func() backoff.BackOff
	taskBackoff  func() backoff.BackOff

	running atomic.Bool
}

// NewOrchestrator wires a run orchestrator. events, recorder and metrics
// may be nil; the run then simply skips publishing, bookkeeping or
// instrumentation.
func NewOrchestrator(
	stores StoreOpener,
	score, compliance TenantSyncer,
	indexer search.Indexer,
	events audit.EventProducer,
	recorder audit.RunRecorder,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		stores:       stores,
		score:        score,
		compliance:   compliance,
		indexer:      indexer,
		events:       events,
		recorder:     recorder,
		metrics:      metrics,
		logger:       log.WithComponent("orchestrator"),
		storeBackoff: storeBackoff,
		taskBackoff:  taskBackoff,
	}
}

func storeBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = constants.StoreRetryInterval
	b.MaxInterval = constants.StoreRetryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return backoff.WithMaxRetries(b, constants.StoreRetryAttempts-1)
}

func taskBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = constants.TaskRetryInterval
	b.MaxInterval = constants.TaskRetryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return backoff.WithMaxRetries(b, constants.TaskRetryAttempts-1)
}

// InFlight reports whether a run is currently executing.
func (o *Orchestrator) InFlight() bool {
	return o.running.Load()
}

// Run executes one orchestration pass. At most one run executes at a time;
// a concurrent call fails immediately. The returned report is valid even
// when the error is non-nil, unless the registry itself could not be read.
func (o *Orchestrator) Run(ctx context.Context) (models.RunReport, error) {
	report := models.RunReport{StartedAt: time.Now().UTC()}

	if !o.running.CompareAndSwap(false, true) {
		return report, errors.ErrApplication("a sync run is already in progress")
	}
	defer o.running.Store(false)

	tenants, err := o.loadRegistry(ctx)
	if err != nil {
		return report, err
	}
	report.Tenants = len(tenants)
	o.logger.Info(ctx, "starting sync run", logger.Int("tenants", len(tenants)))

	report.Results = o.fanOut(ctx, tenants)
	for _, r := range report.Results {
		if r.Success {
			report.Successes++
		}
	}

	// The index rebuild is unconditional: it runs after every task has
	// finished, even when some of them failed.
	indexed, indexErr := o.reindex(ctx)
	report.Indexed = indexed

	report.FinishedAt = time.Now().UTC()
	o.record(ctx, report)

	o.logger.Info(ctx, "sync run finished",
		logger.Int("tenants", report.Tenants),
		logger.Int("tasks", len(report.Results)),
		logger.Int("successes", report.Successes),
		logger.Int("indexed", report.Indexed),
		logger.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, indexErr
}

// loadRegistry reads the active tenant set, retrying transient store faults.
func (o *Orchestrator) loadRegistry(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	op := func() error {
		conn, err := o.stores.OpenAdminScoped(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(ctx)
		tenants, err = conn.ActiveTenants(ctx)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(o.storeBackoff(), ctx)); err != nil {
		return nil, errors.ErrTransient("tenant registry unavailable").WithCause(err)
	}
	return tenants, nil
}

// fanOut launches both sync tasks for every tenant concurrently and blocks
// until all of them have finished. Result order is stable: two entries per
// tenant, snapshot domain first.
func (o *Orchestrator) fanOut(ctx context.Context, tenants []models.Tenant) []models.SyncResult {
	results := make([]models.SyncResult, 2*len(tenants))
	var wg sync.WaitGroup
	for i, tenant := range tenants {
		wg.Add(2)
		go func(slot int, t models.Tenant) {
			defer wg.Done()
			results[slot] = o.runTask(ctx, o.score, t, constants.DomainSecureScore)
		}(2*i, tenant)
		go func(slot int, t models.Tenant) {
			defer wg.Done()
			results[slot] = o.runTask(ctx, o.compliance, t, constants.DomainCompliance)
		}(2*i+1, tenant)
	}
	wg.Wait()
	return results
}

// runTask executes one sync task with the task retry policy. Only
// infrastructure faults escaping the task are retried; a task that ran to
// completion and reported failure is final. Retry exhaustion degrades into
// a failure result so one broken tenant cannot abort the run.
func (o *Orchestrator) runTask(ctx context.Context, syncer TenantSyncer, tenant models.Tenant, domain constants.SyncDomain) models.SyncResult {
	started := time.Now()
	var result models.SyncResult
	op := func() error {
		var err error
		result, err = syncer.Sync(ctx, tenant)
		if err == nil {
			return nil
		}
		if !errors.IsInfrastructure(err) {
			return backoff.Permanent(err)
		}
		o.logger.Warn(ctx, "sync task failed, will retry",
			logger.String("tenant_id", tenant.TenantID),
			logger.String("domain", string(domain)),
			logger.Err(err))
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(o.taskBackoff(), ctx)); err != nil {
		result = models.SyncResult{
			TenantID: tenant.TenantID,
			Domain:   domain,
			Success:  false,
			Error:    err.Error(),
		}
		o.logger.Error(ctx, "sync task failed permanently", err,
			logger.String("tenant_id", tenant.TenantID),
			logger.String("domain", string(domain)))
	}

	if o.metrics != nil {
		o.metrics.RecordTask(string(domain), result.Success, time.Since(started))
	}
	if o.events != nil {
		if err := o.events.PublishResult(ctx, result); err != nil {
			o.logger.Warn(ctx, "failed to publish sync event", logger.Err(err))
		}
	}
	return result
}

// reindex exports the cross-tenant document set and rebuilds the search
// index, retrying transient store faults. Exhaustion fails the run.
func (o *Orchestrator) reindex(ctx context.Context) (int, error) {
	var indexed int
	op := func() error {
		conn, err := o.stores.OpenAdminScoped(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(ctx)
		docs, err := conn.LatestControlDocuments(ctx)
		if err != nil {
			return err
		}
		indexed, err = o.indexer.Rebuild(ctx, docs)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(o.storeBackoff(), ctx)); err != nil {
		return 0, errors.ErrTransient("search index rebuild failed").WithCause(err)
	}
	return indexed, nil
}

func (o *Orchestrator) record(ctx context.Context, report models.RunReport) {
	if o.metrics != nil {
		o.metrics.RecordRun(report.FinishedAt.Sub(report.StartedAt), report.Indexed)
	}
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordRun(ctx, report); err != nil {
		o.logger.Warn(ctx, "failed to record sync run", logger.Err(err))
	}
}
