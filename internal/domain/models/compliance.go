package models

// ComplianceScore is one snapshot-dated compliance score row, either the
// tenant-wide "overall" sentinel or a named category. Unique per
// (tenant, snapshot date, category).
type ComplianceScore struct {
	TenantID     string  `json:"tenant_id"`
	SnapshotDate string  `json:"snapshot_date"`
	Category     string  `json:"category"`
	CurrentScore float64 `json:"current_score"`
	MaxScore     float64 `json:"max_score"`
}

// Assessment is one compliance assessment for a tenant. Unique per
// (tenant, assessment id). All optional fields are pointers: the normalizer
// is total and leaves absent source fields nil.
type Assessment struct {
	TenantID        string   `json:"tenant_id"`
	AssessmentID    string   `json:"assessment_id"`
	DisplayName     string   `json:"display_name"`
	Description     *string  `json:"description,omitempty"`
	Status          *string  `json:"status,omitempty"`
	Regulation      *string  `json:"regulation,omitempty"`
	ComplianceScore *float64 `json:"compliance_score,omitempty"`
	PassedControls  *int     `json:"passed_controls,omitempty"`
	FailedControls  *int     `json:"failed_controls,omitempty"`
	TotalControls   *int     `json:"total_controls,omitempty"`
	CreatedAt       *string  `json:"created_date,omitempty"`
	LastModified    *string  `json:"last_modified,omitempty"`
}

// AssessmentControl is one control inside an assessment, including
// remediation free-text fields when the source provides them. Unique per
// (tenant, assessment id, control id).
type AssessmentControl struct {
	TenantID              string   `json:"tenant_id"`
	AssessmentID          string   `json:"assessment_id"`
	ControlID             string   `json:"control_id"`
	ControlName           string   `json:"control_name"`
	Family                *string  `json:"control_family,omitempty"`
	Category              *string  `json:"control_category,omitempty"`
	ImplementationStatus  *string  `json:"implementation_status,omitempty"`
	TestStatus            *string  `json:"test_status,omitempty"`
	Score                 *float64 `json:"score,omitempty"`
	MaxScore              *float64 `json:"max_score,omitempty"`
	ScoreImpact           *float64 `json:"score_impact,omitempty"`
	Owner                 *string  `json:"owner,omitempty"`
	ActionURL             *string  `json:"action_url,omitempty"`
	ImplementationDetails *string  `json:"implementation_details,omitempty"`
	TestPlan              *string  `json:"test_plan,omitempty"`
	ManagementResponse    *string  `json:"management_response,omitempty"`
	EvidenceOfCompletion  *string  `json:"evidence_of_completion,omitempty"`
	Service               *string  `json:"service,omitempty"`
}
