// Package resilience implements the relay's critical-path protection:
// error taxonomy, per-path circuit breakers, and the operation wrapper
// that ties timeouts, retries, and breaker state together.
package resilience

import (
	"fmt"
	"net/http"
	"time"
)

// Severity classifies how loudly an error should be surfaced.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind is the top-level error taxonomy from the error handling design.
type Kind string

const (
	KindBlockchain     Kind = "blockchain"
	KindValidation     Kind = "validation"
	KindStorage        Kind = "storage"
	KindAPI            Kind = "api"
	KindConfig         Kind = "config"
	KindSecurity       Kind = "security"
	KindAuth           Kind = "auth"
	KindMonitoring     Kind = "monitoring"
	KindRecovery       Kind = "recovery"
	KindCircuitBreaker Kind = "circuit_breaker"
	KindGeneric        Kind = "generic"
)

// SubKind refines Kind with the finer-grained variants named in §7.
type SubKind string

const (
	// Blockchain subkinds.
	SubNetwork         SubKind = "network"
	SubRPC             SubKind = "rpc"
	SubNonce           SubKind = "nonce"
	SubGas             SubKind = "gas"
	SubContract        SubKind = "contract"
	SubProviderMissing SubKind = "provider_not_found"
	SubRetryable       SubKind = "retryable"
	SubNonRetryable    SubKind = "non_retryable"

	// Storage subkinds.
	SubNotFound         SubKind = "not_found"
	SubIO               SubKind = "io"
	SubCorruption       SubKind = "corruption"
	SubPermissionDenied SubKind = "permission_denied"
	SubFull             SubKind = "full"

	// Security subkinds.
	SubRateLimit   SubKind = "rate_limit"
	SubInvalidAuth SubKind = "invalid_token"
	SubXSS         SubKind = "xss"
	SubSQLi        SubKind = "sqli"
	SubIPBlocked   SubKind = "ip_blocked"
)

// Error is the relay-wide error envelope. It carries enough structure for
// the resilience layer to decide retry/breaker policy and for the HTTP
// layer to map it to a status code without leaking internals.
type Error struct {
	Kind      Kind
	Sub       SubKind
	Severity  Severity
	Message   string
	Retryable bool
	Cause     error
	RequestID string
	At        time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Sub, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Sub, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with the given taxonomy classification.
func New(kind Kind, sub SubKind, severity Severity, retryable bool, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Sub:       sub,
		Severity:  severity,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
		At:        time.Now().UTC(),
	}
}

// IsRetryable reports whether err (if it's an *Error) should be retried.
func IsRetryable(err error) bool {
	if re, ok := err.(*Error); ok {
		return re.Retryable
	}
	return false
}

// HTTPStatus maps the taxonomy to the status code named in §4.5.3/§7.
func HTTPStatus(err error) int {
	re, ok := err.(*Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch {
	case re.Kind == KindSecurity && re.Sub == SubRateLimit:
		return http.StatusTooManyRequests
	case re.Kind == KindSecurity:
		return http.StatusForbidden
	case re.Kind == KindAuth:
		return http.StatusUnauthorized
	case re.Kind == KindValidation:
		return http.StatusBadRequest
	case re.Kind == KindStorage && re.Sub == SubNotFound:
		return http.StatusNotFound
	case re.Kind == KindStorage && re.Sub == SubCorruption:
		return http.StatusInternalServerError
	case re.Kind == KindBlockchain && re.Sub == SubNetwork:
		return http.StatusServiceUnavailable
	case re.Kind == KindCircuitBreaker:
		return http.StatusServiceUnavailable
	case re.Kind == KindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Record is the bounded, in-memory diagnostic entry stored in the error
// ring (§4.5.3). Unlike Error, it is a value type safe to snapshot.
type Record struct {
	ID        string
	Component string
	Kind      Kind
	Sub       SubKind
	Severity  Severity
	Message   string
	RequestID string
	At        time.Time
}

func RecordFromError(id, component string, err *Error) Record {
	return Record{
		ID:        id,
		Component: component,
		Kind:      err.Kind,
		Sub:       err.Sub,
		Severity:  err.Severity,
		Message:   err.Message,
		RequestID: err.RequestID,
		At:        err.At,
	}
}

// Ring is a bounded, oldest-first-eviction buffer of error Records; the
// Handler keeps one as its error ring.
type Ring struct {
	capacity int
	items    []Record
	head     int
	size     int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Ring{capacity: capacity, items: make([]Record, capacity)}
}

// Push appends a record, evicting the oldest entry once the ring is full.
func (r *Ring) Push(rec Record) {
	idx := (r.head + r.size) % r.capacity
	r.items[idx] = rec
	if r.size < r.capacity {
		r.size++
	} else {
		r.head = (r.head + 1) % r.capacity
	}
}

// Snapshot returns the records oldest-first.
func (r *Ring) Snapshot() []Record {
	out := make([]Record, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%r.capacity]
	}
	return out
}

func (r *Ring) Len() int { return r.size }
