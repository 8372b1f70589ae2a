package models

// SecureScore is one daily posture snapshot for a tenant, as returned by the
// score endpoint. Unique per (tenant, snapshot date); re-syncing the same day
// overwrites the score values.
type SecureScore struct {
	TenantID      string  `json:"tenant_id"`
	SnapshotDate  string  `json:"snapshot_date"` // day granularity, YYYY-MM-DD
	CurrentScore  float64 `json:"current_score"`
	MaxScore      float64 `json:"max_score"`
	LicensedUsers *int    `json:"licensed_users,omitempty"`
	ActiveUsers   *int    `json:"active_users,omitempty"`

	// RawJSON preserves the source payload for downstream analytics.
	RawJSON string `json:"raw_json,omitempty"`

	ControlScores []ControlScore   `json:"control_scores,omitempty"`
	Benchmarks    []BenchmarkScore `json:"benchmarks,omitempty"`
}

// ControlScore is the per-control breakdown inside one daily snapshot.
// Unique per (tenant, snapshot date, control name).
type ControlScore struct {
	TenantID     string   `json:"tenant_id"`
	SnapshotDate string   `json:"snapshot_date"`
	ControlName  string   `json:"control_name"`
	Category     *string  `json:"control_category,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	MaxScore     *float64 `json:"max_score,omitempty"`
	Description  *string  `json:"description,omitempty"`
}

// BenchmarkScore is a comparative average alongside one daily snapshot
// (industry / seat-size peers). Unique per (tenant, date, basis, basis value).
type BenchmarkScore struct {
	TenantID     string   `json:"tenant_id"`
	SnapshotDate string   `json:"snapshot_date"`
	Basis        string   `json:"basis"`
	BasisValue   string   `json:"basis_value"`
	AverageScore *float64 `json:"average_score,omitempty"`
}

// ControlProfile is a catalog entry describing one improvement action.
// State and assignee derive from the LAST element of the source's state
// update history and are overwritten on each sync.
type ControlProfile struct {
	TenantID       string   `json:"tenant_id"`
	ControlName    string   `json:"control_name"`
	Title          *string  `json:"title,omitempty"`
	Category       *string  `json:"control_category,omitempty"`
	MaxScore       *float64 `json:"max_score,omitempty"`
	Rank           *int     `json:"rank,omitempty"`
	ActionType     *string  `json:"action_type,omitempty"`
	Service        *string  `json:"service,omitempty"`
	Tier           *string  `json:"tier,omitempty"`
	Deprecated     bool     `json:"deprecated"`
	ControlState   *string  `json:"control_state,omitempty"`
	AssignedTo     *string  `json:"assigned_to,omitempty"`
	RemediationURL *string  `json:"remediation_url,omitempty"`
}
