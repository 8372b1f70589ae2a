package sync

import (
	"context"
	"fmt"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/internal/domain/normalize"
	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/logger"
)

// ComplianceSyncService syncs the compliance posture for one tenant: the
// overall score, the per-category breakdown, every assessment, and every
// assessment's controls.
type ComplianceSyncService struct {
	graph  GraphAPI
	tokens TokenProvider
	stores StoreOpener
	logger logger.Logger
}

func NewComplianceSyncService(graph GraphAPI, tokens TokenProvider, stores StoreOpener, log logger.Logger) *ComplianceSyncService {
	return &ComplianceSyncService{
		graph:  graph,
		tokens: tokens,
		stores: stores,
		logger: log.WithComponent("compliance-sync"),
	}
}

// Sync runs the compliance domain for one tenant. All reads happen before
// the tenant connection is opened so a slow API cannot pin a pooled
// connection. Infrastructure faults are returned to the caller for retry.
func (s *ComplianceSyncService) Sync(ctx context.Context, tenant models.Tenant) (models.SyncResult, error) {
	result := models.SyncResult{TenantID: tenant.TenantID, Domain: constants.DomainCompliance}

	token, err := s.tokens.Token(ctx, tenant)
	if err != nil {
		return result, fmt.Errorf("acquire token for tenant %s: %w", tenant.TenantID, err)
	}

	rawScore, err := s.graph.ComplianceScore(ctx, token)
	if err != nil {
		return result, fmt.Errorf("fetch compliance score for tenant %s: %w", tenant.TenantID, err)
	}
	breakdown, err := s.graph.ComplianceScoreBreakdown(ctx, token)
	if err != nil {
		return result, fmt.Errorf("fetch score breakdown for tenant %s: %w", tenant.TenantID, err)
	}
	rawAssessments, err := s.graph.Assessments(ctx, token)
	if err != nil {
		return result, fmt.Errorf("fetch assessments for tenant %s: %w", tenant.TenantID, err)
	}

	assessments := make([]models.Assessment, 0, len(rawAssessments))
	controls := make([]models.AssessmentControl, 0)
	for _, raw := range rawAssessments {
		a := normalize.Assessment(tenant.TenantID, raw)
		if a.AssessmentID == "" {
			s.logger.Warn(ctx, "skipping assessment without an id",
				logger.String("tenant_id", tenant.TenantID))
			continue
		}
		assessments = append(assessments, a)

		rawControls, err := s.graph.AssessmentControls(ctx, token, a.AssessmentID)
		if err != nil {
			return result, fmt.Errorf("fetch controls for assessment %s: %w", a.AssessmentID, err)
		}
		for _, rc := range rawControls {
			c := normalize.Control(tenant.TenantID, a.AssessmentID, rc)
			if c.ControlID == "" {
				continue
			}
			controls = append(controls, c)
		}
	}

	overall := normalize.OverallScore(tenant.TenantID, rawScore)
	if overall == nil {
		overall = s.deriveOverall(ctx, tenant.TenantID, assessments)
	}

	conn, err := s.stores.OpenTenantScoped(ctx, tenant.TenantID)
	if err != nil {
		return result, fmt.Errorf("open tenant connection for %s: %w", tenant.TenantID, err)
	}
	defer conn.Close(ctx)

	if overall != nil {
		if err := conn.UpsertComplianceScore(ctx, *overall); err != nil {
			return result, err
		}
		result.ComplianceScore = overall.CurrentScore
	}
	for _, raw := range breakdown {
		if err := conn.UpsertComplianceScore(ctx, normalize.CategoryScore(tenant.TenantID, raw)); err != nil {
			return result, err
		}
		result.Categories++
	}
	for _, a := range assessments {
		if err := conn.UpsertAssessment(ctx, a); err != nil {
			return result, err
		}
		result.Assessments++
	}
	for _, c := range controls {
		if err := conn.UpsertAssessmentControl(ctx, c); err != nil {
			return result, err
		}
		result.Controls++
	}

	if err := conn.MarkSynced(ctx); err != nil {
		return result, err
	}

	result.Success = true
	s.logger.Info(ctx, "compliance sync finished",
		logger.String("tenant_id", tenant.TenantID),
		logger.Int("assessments", result.Assessments),
		logger.Int("controls", result.Controls),
		logger.Int("categories", result.Categories))
	return result, nil
}

// deriveOverall computes the overall score as the mean of the per-assessment
// scores when the dedicated score endpoint returned nothing. Assessment
// scores are percentages, so the derived row's maximum is fixed at 100.
func (s *ComplianceSyncService) deriveOverall(ctx context.Context, tenantID string, assessments []models.Assessment) *models.ComplianceScore {
	var sum float64
	var n int
	for _, a := range assessments {
		if a.ComplianceScore == nil {
			continue
		}
		if *a.ComplianceScore > 100 {
			s.logger.Warn(ctx, "assessment score above 100, derived mean may be skewed",
				logger.String("tenant_id", tenantID),
				logger.String("assessment_id", a.AssessmentID),
				logger.Float64("score", *a.ComplianceScore))
		}
		sum += *a.ComplianceScore
		n++
	}
	if n == 0 {
		return nil
	}
	return &models.ComplianceScore{
		TenantID:     tenantID,
		SnapshotDate: normalize.Today(),
		Category:     constants.CategoryOverall,
		CurrentScore: sum / float64(n),
		MaxScore:     100,
	}
}
