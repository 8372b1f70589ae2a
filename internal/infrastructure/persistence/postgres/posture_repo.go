package postgres

import (
	"context"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/errors"
)

// Upserts are keyed by the natural uniqueness constraints of each table and
// commit independently: matching rows get their non-key columns overwritten,
// missing rows are inserted. Re-running a sync for the same snapshot day is
// idempotent by construction.

// UpsertSecureScore writes one daily score snapshot.
func (c *TenantConn) UpsertSecureScore(ctx context.Context, score models.SecureScore) error {
	_, err := c.exec(ctx, `
		INSERT INTO secure_scores
			(tenant_id, snapshot_date, current_score, max_score,
			 licensed_users, active_users, raw_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, snapshot_date) DO UPDATE SET
			current_score  = EXCLUDED.current_score,
			max_score      = EXCLUDED.max_score,
			licensed_users = EXCLUDED.licensed_users,
			active_users   = EXCLUDED.active_users,
			raw_json       = EXCLUDED.raw_json`,
		c.tenantID, score.SnapshotDate, score.CurrentScore, score.MaxScore,
		score.LicensedUsers, score.ActiveUsers, score.RawJSON,
	)
	if err != nil {
		return errors.ErrTransient("secure score upsert failed").WithCause(err)
	}
	return nil
}

// UpsertControlScores writes the per-control breakdown of one snapshot.
func (c *TenantConn) UpsertControlScores(ctx context.Context, controls []models.ControlScore) error {
	for _, ctrl := range controls {
		_, err := c.exec(ctx, `
			INSERT INTO control_scores
				(tenant_id, snapshot_date, control_name, control_category,
				 score, max_score, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id, snapshot_date, control_name) DO UPDATE SET
				control_category = EXCLUDED.control_category,
				score            = EXCLUDED.score,
				max_score        = EXCLUDED.max_score,
				description      = EXCLUDED.description`,
			c.tenantID, ctrl.SnapshotDate, ctrl.ControlName, ctrl.Category,
			ctrl.Score, ctrl.MaxScore, ctrl.Description,
		)
		if err != nil {
			return errors.ErrTransient("control score upsert failed").WithCause(err)
		}
	}
	return nil
}

// UpsertBenchmarks writes the comparative averages of one snapshot.
func (c *TenantConn) UpsertBenchmarks(ctx context.Context, benchmarks []models.BenchmarkScore) error {
	for _, b := range benchmarks {
		_, err := c.exec(ctx, `
			INSERT INTO benchmark_scores
				(tenant_id, snapshot_date, basis, basis_value, average_score)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, snapshot_date, basis, basis_value) DO UPDATE SET
				average_score = EXCLUDED.average_score`,
			c.tenantID, b.SnapshotDate, b.Basis, b.BasisValue, b.AverageScore,
		)
		if err != nil {
			return errors.ErrTransient("benchmark upsert failed").WithCause(err)
		}
	}
	return nil
}

// UpsertControlProfiles refreshes the control profile catalog. State and
// assignee are overwritten on every sync.
func (c *TenantConn) UpsertControlProfiles(ctx context.Context, profiles []models.ControlProfile) error {
	for _, p := range profiles {
		_, err := c.exec(ctx, `
			INSERT INTO control_profiles
				(tenant_id, control_name, title, control_category, max_score, rank,
				 action_type, service, tier, deprecated, control_state,
				 assigned_to, remediation_url, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
			ON CONFLICT (tenant_id, control_name) DO UPDATE SET
				title            = EXCLUDED.title,
				control_category = EXCLUDED.control_category,
				max_score        = EXCLUDED.max_score,
				rank             = EXCLUDED.rank,
				action_type      = EXCLUDED.action_type,
				service          = EXCLUDED.service,
				tier             = EXCLUDED.tier,
				deprecated       = EXCLUDED.deprecated,
				control_state    = EXCLUDED.control_state,
				assigned_to      = EXCLUDED.assigned_to,
				remediation_url  = EXCLUDED.remediation_url,
				updated_at       = now()`,
			c.tenantID, p.ControlName, p.Title, p.Category, p.MaxScore, p.Rank,
			p.ActionType, p.Service, p.Tier, p.Deprecated, p.ControlState,
			p.AssignedTo, p.RemediationURL,
		)
		if err != nil {
			return errors.ErrTransient("control profile upsert failed").WithCause(err)
		}
	}
	return nil
}

// UpsertComplianceScore writes one snapshot-dated compliance score row,
// either the "overall" sentinel or a named category.
func (c *TenantConn) UpsertComplianceScore(ctx context.Context, score models.ComplianceScore) error {
	_, err := c.exec(ctx, `
		INSERT INTO compliance_scores
			(tenant_id, snapshot_date, category, current_score, max_score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, snapshot_date, category) DO UPDATE SET
			current_score = EXCLUDED.current_score,
			max_score     = EXCLUDED.max_score`,
		c.tenantID, score.SnapshotDate, score.Category, score.CurrentScore, score.MaxScore,
	)
	if err != nil {
		return errors.ErrTransient("compliance score upsert failed").WithCause(err)
	}
	return nil
}

// UpsertAssessment writes one assessment.
func (c *TenantConn) UpsertAssessment(ctx context.Context, a models.Assessment) error {
	_, err := c.exec(ctx, `
		INSERT INTO assessments
			(tenant_id, assessment_id, display_name, description, status,
			 regulation, compliance_score, passed_controls, failed_controls,
			 total_controls, created_date, last_modified, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (tenant_id, assessment_id) DO UPDATE SET
			display_name     = EXCLUDED.display_name,
			description      = EXCLUDED.description,
			status           = EXCLUDED.status,
			regulation       = EXCLUDED.regulation,
			compliance_score = EXCLUDED.compliance_score,
			passed_controls  = EXCLUDED.passed_controls,
			failed_controls  = EXCLUDED.failed_controls,
			total_controls   = EXCLUDED.total_controls,
			last_modified    = EXCLUDED.last_modified,
			synced_at        = now()`,
		c.tenantID, a.AssessmentID, a.DisplayName, a.Description, a.Status,
		a.Regulation, a.ComplianceScore, a.PassedControls, a.FailedControls,
		a.TotalControls, a.CreatedAt, a.LastModified,
	)
	if err != nil {
		return errors.ErrTransient("assessment upsert failed").WithCause(err)
	}
	return nil
}

// UpsertAssessmentControl writes one control belonging to an assessment.
// Assessments are always upserted before their controls.
func (c *TenantConn) UpsertAssessmentControl(ctx context.Context, ctrl models.AssessmentControl) error {
	_, err := c.exec(ctx, `
		INSERT INTO assessment_controls
			(tenant_id, assessment_id, control_id, control_name, control_family,
			 control_category, implementation_status, test_status, score,
			 max_score, score_impact, owner, action_url, implementation_details,
			 test_plan, management_response, evidence_of_completion, service,
			 synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, now())
		ON CONFLICT (tenant_id, assessment_id, control_id) DO UPDATE SET
			control_name           = EXCLUDED.control_name,
			control_family         = EXCLUDED.control_family,
			control_category       = EXCLUDED.control_category,
			implementation_status  = EXCLUDED.implementation_status,
			test_status            = EXCLUDED.test_status,
			score                  = EXCLUDED.score,
			max_score              = EXCLUDED.max_score,
			score_impact           = EXCLUDED.score_impact,
			owner                  = EXCLUDED.owner,
			action_url             = EXCLUDED.action_url,
			implementation_details = EXCLUDED.implementation_details,
			test_plan              = EXCLUDED.test_plan,
			management_response    = EXCLUDED.management_response,
			evidence_of_completion = EXCLUDED.evidence_of_completion,
			service                = EXCLUDED.service,
			synced_at              = now()`,
		c.tenantID, ctrl.AssessmentID, ctrl.ControlID, ctrl.ControlName,
		ctrl.Family, ctrl.Category, ctrl.ImplementationStatus, ctrl.TestStatus,
		ctrl.Score, ctrl.MaxScore, ctrl.ScoreImpact, ctrl.Owner, ctrl.ActionURL,
		ctrl.ImplementationDetails, ctrl.TestPlan, ctrl.ManagementResponse,
		ctrl.EvidenceOfCompletion, ctrl.Service,
	)
	if err != nil {
		return errors.ErrTransient("assessment control upsert failed").WithCause(err)
	}
	return nil
}

// MarkSynced stamps the tenant's last_synced_at at the end of a successful sync.
func (c *TenantConn) MarkSynced(ctx context.Context) error {
	_, err := c.exec(ctx,
		`UPDATE tenants SET last_synced_at = now() WHERE tenant_id = $1`, c.tenantID)
	if err != nil {
		return errors.ErrTransient("failed to mark tenant synced").WithCause(err)
	}
	return nil
}
