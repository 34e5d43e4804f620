package domain

import "time"

// File permissions
const (
	DirectoryPermissions  = 0o755
	SecureFilePermissions = 0o600
)

// Timeouts
const (
	DefaultTimeoutSeconds    = 30
	DefaultHTTPClientTimeout = 60 * time.Second
	DefaultProbeTimeout      = 2 * time.Second
)

// Pipeline bounds
const (
	DefaultMaxClarifications = 3
	DefaultMaxRecoveryRounds = 3
)

// Model defaults
const (
	DefaultMaxTokens = 2048
	// RecoveryTemperature keeps recovery suggestions conservative.
	RecoveryTemperature = 0.3
	PlannerTemperature  = 0.2
)

// History
const (
	DefaultHistoryLimit       = 20
	DefaultHistorySearchLimit = 50
	DefaultHistoryRetainDays  = 30
	MaxHistoryAnalysisRecords = 1000
)

// Logging
const (
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// TimestampFormat is the standard timestamp format.
const TimestampFormat = time.RFC3339
