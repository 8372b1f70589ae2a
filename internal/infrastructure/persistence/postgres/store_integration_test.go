package postgres

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/logger"
)

// These tests need a Docker daemon; set POSSYNC_PG_TESTS=1 to run them.

const (
	tenantOne = "11111111-1111-1111-1111-111111111111"
	tenantTwo = "22222222-2222-2222-2222-222222222222"
	appID     = "99999999-9999-9999-9999-999999999999"
)

type pgHarness struct {
	store *Store
	super *pgx.Conn // superuser connection, bypasses RLS
}

func startPostgres(t *testing.T) *pgHarness {
	t.Helper()
	if os.Getenv("POSSYNC_PG_TESTS") == "" {
		t.Skip("set POSSYNC_PG_TESTS=1 to run Postgres integration tests")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("possync"),
		tcpostgres.WithUsername("possync"),
		tcpostgres.WithPassword("possync"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Schema setup runs as the superuser over the simple protocol so the
	// multi-statement schema file executes in one round trip.
	superCfg, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)
	superCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	super, err := pgx.ConnectConfig(ctx, superCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = super.Close(context.Background()) })

	schema, err := os.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = super.Exec(ctx, string(schema))
	require.NoError(t, err)

	// RLS does not apply to superusers, so the store itself connects as a
	// plain role.
	_, err = super.Exec(ctx, `
		CREATE ROLE possync_app LOGIN PASSWORD 'app';
		GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO possync_app;
		GRANT USAGE ON ALL SEQUENCES IN SCHEMA public TO possync_app;
	`)
	require.NoError(t, err)

	for _, tid := range []string{tenantOne, tenantTwo} {
		_, err = super.Exec(ctx, fmt.Sprintf(
			`INSERT INTO tenants (tenant_id, display_name, app_id, secret_name)
			 VALUES ('%s', 'Tenant %s', '%s', 'secret-%s')`,
			tid, tid[:8], appID, tid[:8]))
		require.NoError(t, err)
	}

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	store, err := NewStore(ctx, &config.DatabaseConfig{
		Host:            u.Hostname(),
		Port:            port,
		User:            "possync_app",
		Password:        "app",
		Database:        "possync",
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5,
		MaxConnIdleTime: 5,
		ConnTimeout:     10,
	}, logger.NewNoopLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return &pgHarness{store: store, super: super}
}

func sampleScore(tenantID, date string) models.SecureScore {
	licensed := 100
	return models.SecureScore{
		TenantID:      tenantID,
		SnapshotDate:  date,
		CurrentScore:  400,
		MaxScore:      600,
		LicensedUsers: &licensed,
		RawJSON:       `{"currentScore":400}`,
	}
}

func TestTenantScopedWritesAreIsolated(t *testing.T) {
	h := startPostgres(t)
	ctx := context.Background()

	for _, tid := range []string{tenantOne, tenantTwo} {
		conn, err := h.store.OpenTenantScoped(ctx, tid)
		require.NoError(t, err)
		require.NoError(t, conn.UpsertSecureScore(ctx, sampleScore(tid, "2026-08-25")))
		conn.Close(ctx)
	}

	// A session bound to tenant one must only see its own rows.
	appCfg := h.super.Config().Copy()
	appCfg.User = "possync_app"
	appCfg.Password = "app"
	scoped, err := pgx.ConnectConfig(ctx, appCfg)
	require.NoError(t, err)
	defer scoped.Close(ctx)

	_, err = scoped.Exec(ctx,
		`SELECT set_config('app.tenant_id', $1, false), set_config('app.is_admin', 'false', false)`,
		tenantOne)
	require.NoError(t, err)

	var visible int
	require.NoError(t, scoped.QueryRow(ctx, `SELECT count(*) FROM secure_scores`).Scan(&visible))
	assert.Equal(t, 1, visible, "tenant scope must hide the other tenant's rows")

	var tid string
	require.NoError(t, scoped.QueryRow(ctx, `SELECT tenant_id::text FROM secure_scores`).Scan(&tid))
	assert.Equal(t, tenantOne, tid)

	// The superuser connection confirms both rows actually exist.
	var total int
	require.NoError(t, h.super.QueryRow(ctx, `SELECT count(*) FROM secure_scores`).Scan(&total))
	assert.Equal(t, 2, total)
}

func TestTenantScopeRejectsCrossTenantInsert(t *testing.T) {
	h := startPostgres(t)
	ctx := context.Background()

	conn, err := h.store.OpenTenantScoped(ctx, tenantOne)
	require.NoError(t, err)
	defer conn.Close(ctx)

	// The handle stamps its own tenant id on every row, so a cross-tenant
	// write can only be attempted at the SQL level.
	appCfg := h.super.Config().Copy()
	appCfg.User = "possync_app"
	appCfg.Password = "app"
	scoped, err := pgx.ConnectConfig(ctx, appCfg)
	require.NoError(t, err)
	defer scoped.Close(ctx)

	_, err = scoped.Exec(ctx,
		`SELECT set_config('app.tenant_id', $1, false), set_config('app.is_admin', 'false', false)`,
		tenantOne)
	require.NoError(t, err)

	_, err = scoped.Exec(ctx,
		`INSERT INTO secure_scores (tenant_id, snapshot_date, current_score, max_score)
		 VALUES ($1, '2026-08-25', 1, 1)`, tenantTwo)
	assert.Error(t, err, "policy must reject rows for a different tenant")
}

func TestUpsertSecureScoreIsIdempotent(t *testing.T) {
	h := startPostgres(t)
	ctx := context.Background()

	conn, err := h.store.OpenTenantScoped(ctx, tenantOne)
	require.NoError(t, err)
	defer conn.Close(ctx)

	require.NoError(t, conn.UpsertSecureScore(ctx, sampleScore(tenantOne, "2026-08-25")))

	updated := sampleScore(tenantOne, "2026-08-25")
	updated.CurrentScore = 410
	require.NoError(t, conn.UpsertSecureScore(ctx, updated))

	var count int
	var score float64
	require.NoError(t, h.super.QueryRow(ctx,
		`SELECT count(*), max(current_score) FROM secure_scores WHERE tenant_id = $1`,
		tenantOne).Scan(&count, &score))
	assert.Equal(t, 1, count)
	assert.Equal(t, 410.0, score)
}

func TestAdminScopeSpansTenantsAndMarkSynced(t *testing.T) {
	h := startPostgres(t)
	ctx := context.Background()

	for _, tid := range []string{tenantOne, tenantTwo} {
		conn, err := h.store.OpenTenantScoped(ctx, tid)
		require.NoError(t, err)
		require.NoError(t, conn.UpsertSecureScore(ctx, sampleScore(tid, "2026-08-25")))
		require.NoError(t, conn.UpsertControlScores(ctx, []models.ControlScore{
			{TenantID: tid, SnapshotDate: "2026-08-25", ControlName: "MFA"},
		}))
		require.NoError(t, conn.MarkSynced(ctx))
		conn.Close(ctx)
	}

	admin, err := h.store.OpenAdminScoped(ctx)
	require.NoError(t, err)
	defer admin.Close(ctx)

	tenants, err := admin.ActiveTenants(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, tenantOne, tenants[0].TenantID, "registry is ordered by tenant id")
	for _, tn := range tenants {
		require.NotNil(t, tn.LastSyncedAt)
		assert.WithinDuration(t, time.Now(), *tn.LastSyncedAt, time.Minute)
	}

	docs, err := admin.LatestControlDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2, "admin scope must span all tenants")
}

func TestScopedConnectionCloseIsIdempotent(t *testing.T) {
	h := startPostgres(t)
	ctx := context.Background()

	conn, err := h.store.OpenTenantScoped(ctx, tenantOne)
	require.NoError(t, err)
	conn.Close(ctx)
	conn.Close(ctx)

	_, err = h.store.OpenTenantScoped(ctx, "")
	assert.Error(t, err, "empty tenant id must be rejected before acquiring")
}
