package graph

import (
	"context"
	"fmt"
	"net/http"

	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// controlSelect trims the per-assessment control payload to the fields the
// store persists, including remediation fields when the API exposes them.
const controlSelect = "id,displayName,controlFamily,controlCategory," +
	"implementationStatus,testStatus,score,maxScore,owner,actionUrl," +
	"implementationDetails,testPlan,managementResponse," +
	"evidenceOfCompletion,service,scoreImpact"

// ================================================================================
// Secure Score domain
// ================================================================================

// SecureScores returns up to days daily score snapshots, newest first as the
// source orders them. days must be within [1, 90]; violations fail before
// any network call.
func (c *Client) SecureScores(ctx context.Context, token string, days int) ([]map[string]any, error) {
	if days < 1 || days > constants.MaxScoreDays {
		return nil, errors.ErrValidation(
			fmt.Sprintf("days must be between 1 and %d, got %d", constants.MaxScoreDays, days))
	}
	url := fmt.Sprintf("%s/security/secureScores?$top=%d", c.baseV1, days)
	items, err := c.dualList(ctx, token, url)
	if errors.IsNotFound(err) {
		c.logger.Info(ctx, "secure score endpoint not provisioned")
		return []map[string]any{}, nil
	}
	return items, err
}

// ControlProfiles returns the full control profile catalog for the tenant.
func (c *Client) ControlProfiles(ctx context.Context, token string) ([]map[string]any, error) {
	url := c.baseV1 + "/security/secureScoreControlProfiles"
	items, err := c.dualList(ctx, token, url)
	if errors.IsNotFound(err) {
		c.logger.Info(ctx, "control profile endpoint not provisioned")
		return []map[string]any{}, nil
	}
	return items, err
}

// ================================================================================
// Compliance domain
// ================================================================================

// ComplianceScore returns the tenant's overall compliance score, or nil when
// the endpoint is not provisioned for the tenant. A nil score is a data
// availability gap, not an error; callers derive a fallback value.
func (c *Client) ComplianceScore(ctx context.Context, token string) (map[string]any, error) {
	url := c.baseBeta + "/security/complianceManager/complianceScore"
	obj, err := c.dualObject(ctx, token, url)
	if errors.IsNotFound(err) {
		c.logger.Info(ctx, "compliance score endpoint unavailable")
		return nil, nil
	}
	return obj, err
}

// ComplianceScoreBreakdown returns the compliance score by category, or an
// empty slice when the breakdown is not available. Some API versions answer
// 400 instead of 404 here; both mean "not available".
func (c *Client) ComplianceScoreBreakdown(ctx context.Context, token string) ([]map[string]any, error) {
	url := c.baseBeta + "/security/complianceManager/complianceScore/categories"
	items, err := c.dualList(ctx, token, url)
	if errors.IsNotFound(err) || statusOf(err) == http.StatusBadRequest {
		c.logger.Info(ctx, "compliance score breakdown not available")
		return []map[string]any{}, nil
	}
	return items, err
}

// Assessments returns all compliance assessments. When the preferred
// endpoint is missing it retries the alternative management endpoint; with
// no assessment API available at all it returns an empty slice.
func (c *Client) Assessments(ctx context.Context, token string) ([]map[string]any, error) {
	preferred := c.baseBeta + "/security/complianceManager/assessments"
	items, err := c.dualList(ctx, token, preferred)
	if err == nil {
		return items, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	c.logger.Warn(ctx, "assessments endpoint not available, trying alternative")
	alt := c.baseBeta + "/compliance/complianceManagement/assessments"
	items, err = c.dualList(ctx, token, alt)
	if err != nil {
		c.logger.Warn(ctx, "no compliance assessment API available")
		return []map[string]any{}, nil
	}
	return items, nil
}

// AssessmentControls returns all controls for one assessment, following the
// same alternate-endpoint policy as Assessments.
func (c *Client) AssessmentControls(ctx context.Context, token, assessmentID string) ([]map[string]any, error) {
	preferred := fmt.Sprintf("%s/security/complianceManager/assessments/%s/controls?$select=%s",
		c.baseBeta, assessmentID, controlSelect)
	items, err := c.dualList(ctx, token, preferred)
	if err == nil {
		return items, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	alt := fmt.Sprintf("%s/compliance/complianceManagement/assessments/%s/controls?$select=%s",
		c.baseBeta, assessmentID, controlSelect)
	items, err = c.dualList(ctx, token, alt)
	if err != nil {
		c.logger.Warn(ctx, "could not fetch controls for assessment",
			logger.String("assessment_id", assessmentID))
		return []map[string]any{}, nil
	}
	return items, nil
}
