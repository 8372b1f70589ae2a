// Package models defines the domain models for the PosSync service.
// This file contains the Tenant registry model.
package models

import "time"

// Tenant represents one onboarded organization in the multi-tenant sync
// pipeline. Each tenant carries its own app registration and vault secret
// reference; all of its posture rows are isolated by row-level security.
// Tenant 代表多租户同步管道中的一个已接入组织。
// 每个租户都有自己的应用注册和保管库机密引用，其数据行通过行级安全隔离。
type Tenant struct {
	// TenantID is the opaque directory tenant identifier (UUID).
	// TenantID 是目录租户的唯一标识符（UUID）。
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// DisplayName is the human-readable organization name.
	// DisplayName 是组织的显示名称。
	DisplayName string `json:"display_name" db:"display_name"`

	// Department is the internal organizational unit owning this tenant.
	Department string `json:"department" db:"department"`

	// RiskTier classifies the tenant for reporting (e.g. "high", "standard").
	RiskTier string `json:"risk_tier" db:"risk_tier"`

	// AppID is the client id of the app registration inside the tenant.
	AppID string `json:"app_id" db:"app_id"`

	// SecretName is the vault key holding the app registration's client secret.
	// The secret itself is never stored in the registry.
	SecretName string `json:"secret_name" db:"secret_name"`

	// IsActive marks tenants included in the sync fan-out.
	IsActive bool `json:"is_active" db:"is_active"`

	// LastSyncedAt is stamped at the end of each successful sync.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
}
