package normalize

import (
	"encoding/json"

	"github.com/turtacn/possync/internal/domain/models"
)

// Snapshot maps one raw daily score record, including its per-control
// breakdown and comparative averages, into the canonical snapshot shape.
// The raw payload is preserved as JSON for downstream analytics.
func Snapshot(tenantID string, raw map[string]any) models.SecureScore {
	date := SnapshotDate(raw)
	s := models.SecureScore{
		TenantID:      tenantID,
		SnapshotDate:  date,
		LicensedUsers: num(raw, key("licensedUserCount"), key("licensed_user_count")),
		ActiveUsers:   num(raw, key("activeUserCount"), key("active_user_count")),
	}
	if v := flt(raw, key("currentScore"), key("current_score")); v != nil {
		s.CurrentScore = *v
	}
	if v := flt(raw, key("maxScore"), key("max_score")); v != nil {
		s.MaxScore = *v
	}
	if b, err := json.Marshal(raw); err == nil {
		s.RawJSON = string(b)
	}

	if list, ok := first(raw, key("controlScores"), key("control_scores")).([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				s.ControlScores = append(s.ControlScores, ControlScoreRow(tenantID, date, m))
			}
		}
	}
	if list, ok := first(raw, key("averageComparativeScores"), key("average_comparative_scores")).([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				s.Benchmarks = append(s.Benchmarks, BenchmarkRow(tenantID, date, m))
			}
		}
	}
	return s
}
