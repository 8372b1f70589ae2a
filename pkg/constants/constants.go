// Package constants defines system-wide constants for the PosSync service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Error Code Constants
// ================================================================================

// ErrorCode represents a machine-readable error category
type ErrorCode string

const (
	// ErrCodeConfiguration indicates missing or invalid startup configuration
	ErrCodeConfiguration ErrorCode = "configuration_error"

	// ErrCodeAuthentication indicates a rejected credential exchange or missing secret
	ErrCodeAuthentication ErrorCode = "authentication_error"

	// ErrCodeValidation indicates an invalid caller-supplied parameter
	ErrCodeValidation ErrorCode = "validation_error"

	// ErrCodeTransient indicates a retryable infrastructure fault (network, 5xx, 429)
	ErrCodeTransient ErrorCode = "transient_error"

	// ErrCodeApplication indicates an application-level fault reported by a task,
	// never retried by the orchestrator
	ErrCodeApplication ErrorCode = "application_error"

	// ErrCodeNotFound indicates a missing optional resource
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeInternal indicates an unexpected internal failure
	ErrCodeInternal ErrorCode = "internal_error"
)

// ================================================================================
// Sync Domain Constants
// ================================================================================

// SyncDomain identifies one of the two independent data domains synced per tenant
type SyncDomain string

const (
	// DomainSecureScore covers daily score snapshots and the control profile catalog
	DomainSecureScore SyncDomain = "secure_score"

	// DomainCompliance covers compliance score, category breakdown, assessments and controls
	DomainCompliance SyncDomain = "compliance"
)

// CategoryOverall is the sentinel category for the tenant-wide compliance score
const CategoryOverall = "overall"

// SnapshotDateLayout is the day-granularity date format used as part of
// every snapshot natural key
const SnapshotDateLayout = "2006-01-02"

// ================================================================================
// External API Constants
// ================================================================================

const (
	// MaxScoreDays is the upper bound for the daily-snapshot day-count parameter
	MaxScoreDays = 90

	// GraphHTTPTimeout bounds every single call against the directory API
	GraphHTTPTimeout = 30 * time.Second

	// GraphRetryMax is the total attempt count for retryable GET calls
	GraphRetryMax = 4

	// GraphRetryWaitMin is the starting backoff interval for retried GET calls
	GraphRetryWaitMin = 1 * time.Second

	// GraphRetryWaitMax caps the backoff interval for retried GET calls
	GraphRetryWaitMax = 16 * time.Second
)

// ================================================================================
// Retry Policy Constants
// ================================================================================

const (
	// StoreRetryAttempts is the attempt count for registry/reindex store operations
	StoreRetryAttempts = 3

	// StoreRetryInterval is the starting backoff for store operations (5s -> 10s -> 20s)
	StoreRetryInterval = 5 * time.Second

	// StoreRetryMaxInterval caps the store operation backoff
	StoreRetryMaxInterval = 30 * time.Second

	// TaskRetryAttempts is the attempt count for per-tenant sync tasks
	TaskRetryAttempts = 3

	// TaskRetryInterval is the starting backoff for sync tasks (15s -> 30s -> 60s).
	// Wider than the store policy: the directory API throttles in larger windows.
	TaskRetryInterval = 15 * time.Second

	// TaskRetryMaxInterval caps the sync task backoff
	TaskRetryMaxInterval = 60 * time.Second
)

// ================================================================================
// Index Constants
// ================================================================================

const (
	// IndexBatchSize matches the search service's per-request document limit
	IndexBatchSize = 1000

	// DefaultIndexName is the search index receiving posture documents
	DefaultIndexName = "compliance-posture"
)

// ================================================================================
// Token Cache Constants
// ================================================================================

const (
	// TokenCacheSkew is subtracted from a token's lifetime before caching so a
	// cached token is never handed out moments before it expires
	TokenCacheSkew = 5 * time.Minute

	// TokenL2TTL bounds how long a bearer token may live in the shared L2 cache
	TokenL2TTL = 45 * time.Minute
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the logging verbosity level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
