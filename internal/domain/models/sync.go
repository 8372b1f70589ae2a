package models

import (
	"time"

	"github.com/turtacn/possync/pkg/constants"
)

// SyncResult is the uniform structured result every fan-out task returns.
// Infrastructure faults escape the task and are retried by the orchestrator;
// everything else is captured here with Success=false and never retried.
type SyncResult struct {
	TenantID string               `json:"tenant_id"`
	Domain   constants.SyncDomain `json:"domain"`
	Success  bool                 `json:"success"`
	Error    string               `json:"error,omitempty"`

	// Domain-specific counts.
	Snapshots       int     `json:"snapshots,omitempty"`
	Profiles        int     `json:"profiles,omitempty"`
	ComplianceScore float64 `json:"compliance_score,omitempty"`
	Assessments     int     `json:"assessments,omitempty"`
	Controls        int     `json:"controls,omitempty"`
	Categories      int     `json:"categories,omitempty"`
}

// RunReport summarizes one orchestration run. A run "completes" even with
// partial tenant failures; only registry-load or reindex exhaustion fails it.
type RunReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tenants    int          `json:"tenants"`
	Results    []SyncResult `json:"results"`
	Successes  int          `json:"successes"`
	Indexed    int          `json:"indexed"`
}

// SyncRun is the persisted bookkeeping row for one orchestration run.
type SyncRun struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Tenants    int       `json:"tenants"`
	Tasks      int       `json:"tasks"`
	Successes  int       `json:"successes"`
	Indexed    int       `json:"indexed"`
	Detail     string    `json:"detail" gorm:"type:jsonb"`
}

// TableName keeps the bookkeeping table clearly separated from posture data.
func (SyncRun) TableName() string {
	return "sync_runs"
}
