// Package normalize maps heterogeneous directory API response shapes into
// the canonical domain models. The typed client and the raw fallback
// transport name the same logical field differently, so every canonical
// field resolves through an explicit ordered accessor chain: first present
// non-null value wins, otherwise the field stays nil.
//
// All functions here are total and pure: arbitrary partial input never
// raises, and every canonical field always resolves to a value or nil.
package normalize

import (
	"strconv"

	"github.com/turtacn/possync/internal/domain/models"
)

// accessor extracts one candidate value from a raw record.
// It returns nil when the candidate is absent or null.
type accessor func(raw map[string]any) any

// key reads a top-level field.
func key(name string) accessor {
	return func(raw map[string]any) any {
		v, ok := raw[name]
		if !ok || v == nil {
			return nil
		}
		return v
	}
}

// path reads a structurally nested field, e.g. complianceStandard.name.
func path(names ...string) accessor {
	return func(raw map[string]any) any {
		var cur any = raw
		for _, name := range names {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur, ok = m[name]
			if !ok || cur == nil {
				return nil
			}
		}
		return cur
	}
}

// first evaluates accessors in priority order and returns the first non-null hit.
func first(raw map[string]any, chain ...accessor) any {
	for _, a := range chain {
		if v := a(raw); v != nil {
			return v
		}
	}
	return nil
}

// ================================================================================
// Coercions
// ================================================================================

func asString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func asFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		// Raw payloads occasionally carry numbers as strings.
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
	}
	return nil
}

func asInt(v any) *int {
	switch n := v.(type) {
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return &i
		}
	}
	return nil
}

func str(raw map[string]any, chain ...accessor) *string {
	return asString(first(raw, chain...))
}

func flt(raw map[string]any, chain ...accessor) *float64 {
	return asFloat(first(raw, chain...))
}

func num(raw map[string]any, chain ...accessor) *int {
	return asInt(first(raw, chain...))
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ================================================================================
// Assessment
// ================================================================================

// Assessment maps a raw assessment record from either source into the
// canonical shape. Regulation additionally inspects the nested compliance
// standard object as a last resort.
func Assessment(tenantID string, raw map[string]any) models.Assessment {
	return models.Assessment{
		TenantID:     tenantID,
		AssessmentID: orEmpty(str(raw, key("id"), key("assessmentId"), key("assessment_id"))),
		DisplayName:  orEmpty(str(raw, key("displayName"), key("display_name"), key("name"))),
		Description:  str(raw, key("description")),
		Status:       str(raw, key("status"), key("state")),
		Regulation: str(raw,
			key("regulation"),
			key("regulationName"),
			key("regulation_name"),
			path("complianceStandard", "name"),
			path("compliance_standard", "name"),
		),
		ComplianceScore: flt(raw, key("complianceScore"), key("compliance_score"), key("score")),
		PassedControls:  num(raw, key("passedControls"), key("passed_controls")),
		FailedControls:  num(raw, key("failedControls"), key("failed_controls")),
		TotalControls:   num(raw, key("totalControls"), key("total_controls")),
		CreatedAt:       str(raw, key("createdDateTime"), key("created_date_time"), key("createdAt")),
		LastModified:    str(raw, key("lastModifiedDateTime"), key("last_modified_date_time"), key("modifiedAt")),
	}
}

// ================================================================================
// Assessment Control
// ================================================================================

// Control maps a raw assessment control record from either source into the
// canonical shape.
func Control(tenantID, assessmentID string, raw map[string]any) models.AssessmentControl {
	return models.AssessmentControl{
		TenantID:             tenantID,
		AssessmentID:         assessmentID,
		ControlID:            orEmpty(str(raw, key("id"), key("controlId"), key("control_id"))),
		ControlName:          orEmpty(str(raw, key("displayName"), key("display_name"), key("controlName"), key("control_name"))),
		Family:               str(raw, key("controlFamily"), key("control_family"), key("family")),
		Category:             str(raw, key("controlCategory"), key("control_category"), key("category")),
		ImplementationStatus: str(raw, key("implementationStatus"), key("implementation_status")),
		TestStatus:           str(raw, key("testStatus"), key("test_status")),
		Score:                flt(raw, key("score")),
		MaxScore:             flt(raw, key("maxScore"), key("max_score")),
		ScoreImpact:          flt(raw, key("scoreImpact"), key("score_impact")),
		Owner:                str(raw, key("owner"), key("assignedTo"), key("assigned_to")),
		ActionURL:            str(raw, key("actionUrl"), key("action_url")),
		ImplementationDetails: str(raw,
			key("implementationDetails"),
			key("implementation_details"),
		),
		TestPlan:             str(raw, key("testPlan"), key("test_plan")),
		ManagementResponse:   str(raw, key("managementResponse"), key("management_response")),
		EvidenceOfCompletion: str(raw, key("evidenceOfCompletion"), key("evidence_of_completion")),
		Service:              str(raw, key("service")),
	}
}

// ================================================================================
// Control Profile
// ================================================================================

// Profile maps a raw control profile catalog entry. State and assignee come
// from the LAST element of the state update history; an empty history leaves
// both nil.
func Profile(tenantID string, raw map[string]any) models.ControlProfile {
	p := models.ControlProfile{
		TenantID:       tenantID,
		ControlName:    orEmpty(str(raw, key("id"), key("controlName"), key("control_name"))),
		Title:          str(raw, key("title"), key("displayName")),
		Category:       str(raw, key("controlCategory"), key("control_category"), key("category")),
		MaxScore:       flt(raw, key("maxScore"), key("max_score")),
		Rank:           num(raw, key("rank")),
		ActionType:     str(raw, key("actionType"), key("action_type")),
		Service:        str(raw, key("service")),
		Tier:           str(raw, key("tier")),
		RemediationURL: str(raw, key("remediationUrl"), key("remediation_url"), key("remediation")),
	}
	if dep, ok := first(raw, key("deprecated")).(bool); ok {
		p.Deprecated = dep
	}

	if updates, ok := first(raw, key("controlStateUpdates"), key("control_state_updates")).([]any); ok && len(updates) > 0 {
		if last, ok := updates[len(updates)-1].(map[string]any); ok {
			p.ControlState = str(last, key("state"))
			p.AssignedTo = str(last, key("assignedTo"), key("assigned_to"))
		}
	}
	return p
}

// ================================================================================
// Daily Snapshot
// ================================================================================

// ControlScoreRow maps one per-control breakdown entry inside a snapshot.
func ControlScoreRow(tenantID, snapshotDate string, raw map[string]any) models.ControlScore {
	return models.ControlScore{
		TenantID:     tenantID,
		SnapshotDate: snapshotDate,
		ControlName:  orEmpty(str(raw, key("controlName"), key("control_name"), key("name"))),
		Category:     str(raw, key("controlCategory"), key("control_category"), key("category")),
		Score:        flt(raw, key("score")),
		MaxScore:     flt(raw, key("maxScore"), key("max_score")),
		Description:  str(raw, key("description")),
	}
}

// BenchmarkRow maps one comparative average entry inside a snapshot.
func BenchmarkRow(tenantID, snapshotDate string, raw map[string]any) models.BenchmarkScore {
	return models.BenchmarkScore{
		TenantID:     tenantID,
		SnapshotDate: snapshotDate,
		Basis:        orEmpty(str(raw, key("basis"))),
		BasisValue:   orEmpty(str(raw, key("basisValue"), key("basis_value"))),
		AverageScore: flt(raw, key("averageScore"), key("average_score")),
	}
}

// SnapshotDate extracts the day-granularity date from a raw snapshot record.
func SnapshotDate(raw map[string]any) string {
	created := str(raw, key("createdDateTime"), key("created_date_time"), key("createdAt"))
	if created == nil {
		return ""
	}
	if len(*created) >= 10 {
		return (*created)[:10]
	}
	return *created
}
