package postgres

import (
	"context"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/errors"
)

// ActiveTenants loads the tenants included in the sync fan-out. The registry
// table has no per-row isolation policy, but registry reads still run under
// the admin scope for defense in depth. Ordering by tenant_id keeps the
// fan-out deterministic and duplicate-free.
func (c *AdminConn) ActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := c.query(ctx, `
		SELECT tenant_id, display_name, department, risk_tier,
		       app_id, secret_name, is_active, last_synced_at
		FROM tenants
		WHERE is_active = true
		ORDER BY tenant_id`)
	if err != nil {
		return nil, errors.ErrTransient("failed to load tenant registry").WithCause(err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(
			&t.TenantID, &t.DisplayName, &t.Department, &t.RiskTier,
			&t.AppID, &t.SecretName, &t.IsActive, &t.LastSyncedAt,
		); err != nil {
			return nil, errors.ErrTransient("failed to scan tenant row").WithCause(err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrTransient("tenant registry read failed").WithCause(err)
	}
	return tenants, nil
}

// LatestControlDocuments reads the cross-tenant document set for the index
// rebuild: the most recent control score per tenant joined with catalog and
// tenant metadata, dates rendered as strings. Requires the admin scope: the
// query spans all tenants.
func (c *AdminConn) LatestControlDocuments(ctx context.Context) ([]map[string]any, error) {
	rows, err := c.query(ctx, `
		SELECT
			cs.tenant_id || '-' || cs.snapshot_date::text || '-' || cs.control_name AS id,
			cs.tenant_id,
			t.display_name          AS tenant_name,
			t.department,
			t.risk_tier,
			cs.snapshot_date::text  AS snapshot_date,
			cs.control_name,
			cp.title                AS control_title,
			cs.control_category,
			cs.score,
			cs.max_score,
			COALESCE(cs.max_score, 0) - COALESCE(cs.score, 0) AS points_gap,
			cp.action_type,
			cp.tier,
			cp.rank,
			cp.remediation_url,
			cp.control_state,
			cp.assigned_to
		FROM control_scores cs
		JOIN tenants t ON t.tenant_id = cs.tenant_id
		LEFT JOIN control_profiles cp
			ON  cp.tenant_id    = cs.tenant_id
			AND cp.control_name = cs.control_name
		WHERE cs.snapshot_date = (
			SELECT MAX(snapshot_date)
			FROM control_scores
			WHERE tenant_id = cs.tenant_id
		)`)
	if err != nil {
		return nil, errors.ErrTransient("failed to read index documents").WithCause(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var docs []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.ErrTransient("failed to scan index document").WithCause(err)
		}
		doc := make(map[string]any, len(fields))
		for i, fd := range fields {
			doc[string(fd.Name)] = values[i]
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrTransient("index document read failed").WithCause(err)
	}
	return docs, nil
}
