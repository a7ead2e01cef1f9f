package resilience

import "time"

// Path names a class of operations that receives timeout, retry, and
// circuit-breaker protection (§3 "Critical-path metadata").
type Path string

const (
	PathBlockchainTransaction Path = "BlockchainTransaction"
	PathAuthentication        Path = "Authentication"
	PathDatabaseOperation     Path = "DatabaseOperation"
	PathTransactionProcessing Path = "TransactionProcessing"
	PathHealthCheck           Path = "HealthCheck"
	PathMonitoringMetrics     Path = "MonitoringMetrics"
	PathConfigurationReload   Path = "ConfigurationReload"
	PathBackupOperation       Path = "BackupOperation"
	PathSecurityValidation    Path = "SecurityValidation"

	// Non-critical paths carry no breaker protection.
	PathGeneralAPI  Path = "GeneralAPI"
	PathSystem      Path = "System"
	PathNetwork     Path = "Network"
	PathValidation  Path = "Validation"
)

// FallbackStrategy is the policy applied when a critical-path operation
// ultimately fails (§4.5.1).
type FallbackStrategy string

const (
	FallbackRetry       FallbackStrategy = "retry"
	FallbackFailFast    FallbackStrategy = "fail_fast"
	FallbackDegraded    FallbackStrategy = "degraded_mode"
	FallbackNone        FallbackStrategy = "none"
)

// PathConfig carries the per-path tuning named in §3.
type PathConfig struct {
	Timeout          time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	CBThreshold      int
	CBTimeout        time.Duration
	FallbackStrategy FallbackStrategy
	IsCritical       bool
}

// DefaultPathConfigs returns the default table of critical-path settings,
// seeded from the thresholds and timeouts named in §4.5.1/§4.5.2.
func DefaultPathConfigs() map[Path]PathConfig {
	return map[Path]PathConfig{
		PathBlockchainTransaction: {
			Timeout: 30 * time.Second, MaxRetries: 3, RetryDelay: 5 * time.Second,
			CBThreshold: 5, CBTimeout: 60 * time.Second,
			FallbackStrategy: FallbackRetry, IsCritical: true,
		},
		PathAuthentication: {
			Timeout: 10 * time.Second, MaxRetries: 0, RetryDelay: 0,
			CBThreshold: 10, CBTimeout: 300 * time.Second,
			FallbackStrategy: FallbackFailFast, IsCritical: true,
		},
		PathDatabaseOperation: {
			Timeout: 15 * time.Second, MaxRetries: 2, RetryDelay: 2 * time.Second,
			CBThreshold: 5, CBTimeout: 120 * time.Second,
			FallbackStrategy: FallbackRetry, IsCritical: true,
		},
		PathTransactionProcessing: {
			Timeout: 60 * time.Second, MaxRetries: 3, RetryDelay: 5 * time.Second,
			CBThreshold: 3, CBTimeout: 180 * time.Second,
			FallbackStrategy: FallbackDegraded, IsCritical: true,
		},
		PathHealthCheck: {
			Timeout: 5 * time.Second, MaxRetries: 1, RetryDelay: time.Second,
			CBThreshold: 5, CBTimeout: 30 * time.Second,
			FallbackStrategy: FallbackNone, IsCritical: true,
		},
		PathMonitoringMetrics: {
			Timeout: 5 * time.Second, MaxRetries: 0,
			FallbackStrategy: FallbackNone, IsCritical: true,
			CBThreshold: 10, CBTimeout: 60 * time.Second,
		},
		PathConfigurationReload: {
			Timeout: 10 * time.Second, MaxRetries: 1, RetryDelay: time.Second,
			FallbackStrategy: FallbackFailFast, IsCritical: true,
			CBThreshold: 5, CBTimeout: 60 * time.Second,
		},
		PathBackupOperation: {
			Timeout: 30 * time.Second, MaxRetries: 1, RetryDelay: 5 * time.Second,
			FallbackStrategy: FallbackRetry, IsCritical: true,
			CBThreshold: 5, CBTimeout: 120 * time.Second,
		},
		PathSecurityValidation: {
			Timeout: 5 * time.Second, MaxRetries: 0,
			FallbackStrategy: FallbackFailFast, IsCritical: true,
			CBThreshold: 10, CBTimeout: 300 * time.Second,
		},
		PathGeneralAPI: {IsCritical: false},
		PathSystem:     {IsCritical: false},
		PathNetwork:    {IsCritical: false},
		PathValidation: {IsCritical: false},
	}
}

// timeoutKind classifies a context-deadline timeout by the Path that was
// executing, so the recorded error names the subsystem that actually
// stalled instead of always blaming the blockchain network.
func timeoutKind(path Path) (Kind, SubKind) {
	switch path {
	case PathBlockchainTransaction, PathTransactionProcessing, PathNetwork:
		return KindBlockchain, SubNetwork
	case PathAuthentication:
		return KindAuth, ""
	case PathDatabaseOperation, PathBackupOperation:
		return KindStorage, SubIO
	case PathHealthCheck, PathMonitoringMetrics:
		return KindMonitoring, ""
	case PathConfigurationReload:
		return KindConfig, ""
	case PathSecurityValidation:
		return KindSecurity, ""
	default:
		return KindGeneric, ""
	}
}
