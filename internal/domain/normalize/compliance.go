package normalize

import (
	"time"

	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/constants"
)

// OverallScore maps the tenant-wide compliance score document into the
// "overall" sentinel row. Returns nil when the document carries no usable
// current score; callers fall back to deriving the score from assessments.
func OverallScore(tenantID string, raw map[string]any) *models.ComplianceScore {
	if raw == nil {
		return nil
	}
	cur := flt(raw, key("currentScore"), key("current_score"), key("score"))
	if cur == nil {
		return nil
	}
	score := models.ComplianceScore{
		TenantID:     tenantID,
		SnapshotDate: scoreDate(raw),
		Category:     constants.CategoryOverall,
		CurrentScore: *cur,
	}
	if m := flt(raw, key("maxScore"), key("max_score")); m != nil {
		score.MaxScore = *m
	}
	return &score
}

// CategoryScore maps one per-category breakdown entry. An entry with no
// recognizable name lands in the "unknown" bucket rather than being dropped.
func CategoryScore(tenantID string, raw map[string]any) models.ComplianceScore {
	category := orEmpty(str(raw, key("categoryName"), key("category_name"), key("displayName"), key("display_name")))
	if category == "" {
		category = "unknown"
	}
	score := models.ComplianceScore{
		TenantID:     tenantID,
		SnapshotDate: scoreDate(raw),
		Category:     category,
	}
	if v := flt(raw, key("currentScore"), key("current_score"), key("score")); v != nil {
		score.CurrentScore = *v
	}
	if v := flt(raw, key("maxScore"), key("max_score")); v != nil {
		score.MaxScore = *v
	}
	return score
}

// Today is the day-granularity date used for rows whose source carries no
// creation timestamp.
func Today() string {
	return time.Now().UTC().Format(constants.SnapshotDateLayout)
}

func scoreDate(raw map[string]any) string {
	if d := SnapshotDate(raw); d != "" {
		return d
	}
	return Today()
}
