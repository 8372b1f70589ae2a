// Package sync implements the per-tenant fan-out pipeline: each active
// tenant gets two independent sync tasks (daily score snapshots and
// compliance posture), followed by a cross-tenant search reindex once
// every task has finished.
package sync

import (
	"context"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/internal/infrastructure/persistence/postgres"
)

// GraphAPI is the read surface of the directory API the sync tasks consume.
type GraphAPI interface {
	SecureScores(ctx context.Context, token string, days int) ([]map[string]any, error)
	ControlProfiles(ctx context.Context, token string) ([]map[string]any, error)
	ComplianceScore(ctx context.Context, token string) (map[string]any, error)
	ComplianceScoreBreakdown(ctx context.Context, token string) ([]map[string]any, error)
	Assessments(ctx context.Context, token string) ([]map[string]any, error)
	AssessmentControls(ctx context.Context, token, assessmentID string) ([]map[string]any, error)
}

// TokenProvider exchanges a tenant's registered credential for a bearer token.
type TokenProvider interface {
	Token(ctx context.Context, tenant models.Tenant) (string, error)
}

// TenantStore is a connection handle scoped to exactly one tenant for its
// whole lifetime. All writes carry that tenant's id; the handle cannot be
// retargeted after it is opened.
type TenantStore interface {
	UpsertSecureScore(ctx context.Context, score models.SecureScore) error
	UpsertControlScores(ctx context.Context, controls []models.ControlScore) error
	UpsertBenchmarks(ctx context.Context, benchmarks []models.BenchmarkScore) error
	UpsertControlProfiles(ctx context.Context, profiles []models.ControlProfile) error
	UpsertComplianceScore(ctx context.Context, score models.ComplianceScore) error
	UpsertAssessment(ctx context.Context, a models.Assessment) error
	UpsertAssessmentControl(ctx context.Context, ctrl models.AssessmentControl) error
	MarkSynced(ctx context.Context) error
	Close(ctx context.Context)
}

// AdminStore is a connection handle with cross-tenant read access, used for
// the registry load and the index document export.
type AdminStore interface {
	ActiveTenants(ctx context.Context) ([]models.Tenant, error)
	LatestControlDocuments(ctx context.Context) ([]map[string]any, error)
	Close(ctx context.Context)
}

// StoreOpener hands out scoped connection handles.
type StoreOpener interface {
	OpenTenantScoped(ctx context.Context, tenantID string) (TenantStore, error)
	OpenAdminScoped(ctx context.Context) (AdminStore, error)
}

// PostgresOpener adapts the concrete pool-backed store to StoreOpener.
type PostgresOpener struct {
	Store *postgres.Store
}

func (o PostgresOpener) OpenTenantScoped(ctx context.Context, tenantID string) (TenantStore, error) {
	conn, err := o.Store.OpenTenantScoped(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (o PostgresOpener) OpenAdminScoped(ctx context.Context) (AdminStore, error) {
	conn, err := o.Store.OpenAdminScoped(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
