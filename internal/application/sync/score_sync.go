package sync

import (
	"context"
	"fmt"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/internal/domain/normalize"
	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/logger"
)

// ScoreSyncService syncs the daily score snapshot history and the control
// profile catalog for one tenant.
type ScoreSyncService struct {
	graph  GraphAPI
	tokens TokenProvider
	stores StoreOpener
	days   int
	logger logger.Logger
}

// NewScoreSyncService creates a snapshot sync service. days is how many
// daily snapshots to request per run; it is validated against [1, 90]
// before any network call is made.
func NewScoreSyncService(graph GraphAPI, tokens TokenProvider, stores StoreOpener, days int, log logger.Logger) *ScoreSyncService {
	return &ScoreSyncService{
		graph:  graph,
		tokens: tokens,
		stores: stores,
		days:   days,
		logger: log.WithComponent("score-sync"),
	}
}

// Sync runs the snapshot domain for one tenant. Infrastructure faults are
// returned to the caller for retry; the result is only produced once all
// writes have landed.
func (s *ScoreSyncService) Sync(ctx context.Context, tenant models.Tenant) (models.SyncResult, error) {
	result := models.SyncResult{TenantID: tenant.TenantID, Domain: constants.DomainSecureScore}

	token, err := s.tokens.Token(ctx, tenant)
	if err != nil {
		return result, fmt.Errorf("acquire token for tenant %s: %w", tenant.TenantID, err)
	}

	snapshots, err := s.graph.SecureScores(ctx, token, s.days)
	if err != nil {
		return result, fmt.Errorf("fetch score snapshots for tenant %s: %w", tenant.TenantID, err)
	}
	profiles, err := s.graph.ControlProfiles(ctx, token)
	if err != nil {
		return result, fmt.Errorf("fetch control profiles for tenant %s: %w", tenant.TenantID, err)
	}

	conn, err := s.stores.OpenTenantScoped(ctx, tenant.TenantID)
	if err != nil {
		return result, fmt.Errorf("open tenant connection for %s: %w", tenant.TenantID, err)
	}
	defer conn.Close(ctx)

	for _, raw := range snapshots {
		snap := normalize.Snapshot(tenant.TenantID, raw)
		if snap.SnapshotDate == "" {
			s.logger.Warn(ctx, "skipping snapshot without a creation date",
				logger.String("tenant_id", tenant.TenantID))
			continue
		}
		if err := conn.UpsertSecureScore(ctx, snap); err != nil {
			return result, err
		}
		if err := conn.UpsertControlScores(ctx, snap.ControlScores); err != nil {
			return result, err
		}
		if err := conn.UpsertBenchmarks(ctx, snap.Benchmarks); err != nil {
			return result, err
		}
		result.Snapshots++
	}

	rows := make([]models.ControlProfile, 0, len(profiles))
	for _, raw := range profiles {
		p := normalize.Profile(tenant.TenantID, raw)
		if p.ControlName == "" {
			continue
		}
		rows = append(rows, p)
	}
	if err := conn.UpsertControlProfiles(ctx, rows); err != nil {
		return result, err
	}
	result.Profiles = len(rows)

	if err := conn.MarkSynced(ctx); err != nil {
		return result, err
	}

	result.Success = true
	s.logger.Info(ctx, "score sync finished",
		logger.String("tenant_id", tenant.TenantID),
		logger.Int("snapshots", result.Snapshots),
		logger.Int("profiles", result.Profiles))
	return result, nil
}
