package resilience

import (
	"sync"
	"time"
)

// BreakerStatus mirrors the three circuit breaker states from §4.5.2.
type BreakerStatus string

const (
	Closed   BreakerStatus = "closed"
	Open     BreakerStatus = "open"
	HalfOpen BreakerStatus = "half_open"
)

// BreakerState is the externally-observable snapshot of one path's breaker
// (§3 "Circuit breaker state").
type BreakerState struct {
	Status          BreakerStatus
	FailureCount    int
	SuccessCount    int
	LastFailureTime time.Time
	LastSuccessTime time.Time
	Threshold       int
	Timeout         time.Duration
}

// breaker is the generalization of the teacher's rpc.SimpleHealthTracker
// (src/chainadapter/rpc/health.go) from a per-RPC-endpoint health map to a
// per-CriticalPath circuit breaker with an explicit HalfOpen probe state.
type breaker struct {
	mu              sync.RWMutex
	status          BreakerStatus
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastSuccessTime time.Time
	threshold       int
	timeout         time.Duration
	halfOpenProbed  bool
}

func newBreaker(threshold int, timeout time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &breaker{status: Closed, threshold: threshold, timeout: timeout}
}

// Allow reports whether a call on this path may proceed, transitioning
// Open → HalfOpen once the timeout has elapsed since the last failure.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.status {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureTime) >= b.timeout {
			b.status = HalfOpen
			b.halfOpenProbed = false
			return true
		}
		return false
	case HalfOpen:
		// Allow exactly one probe in flight at a time.
		if b.halfOpenProbed {
			return false
		}
		b.halfOpenProbed = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker (from Closed or HalfOpen) and resets the
// failure counter.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successCount++
	b.lastSuccessTime = time.Now()
	b.failureCount = 0
	if b.status == HalfOpen || b.status == Open {
		b.status = Closed
		b.halfOpenProbed = false
	}
}

// RecordFailure increments the failure counter, opening the breaker once
// the threshold is reached (or immediately, if the failing call was a
// HalfOpen probe).
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()

	if b.status == HalfOpen {
		b.status = Open
		b.halfOpenProbed = false
		return
	}
	if b.failureCount >= b.threshold {
		b.status = Open
	}
}

func (b *breaker) Snapshot() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BreakerState{
		Status:          b.status,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailureTime,
		LastSuccessTime: b.lastSuccessTime,
		Threshold:       b.threshold,
		Timeout:         b.timeout,
	}
}

// Registry holds one breaker per critical Path, created lazily from the
// PathConfig table.
type Registry struct {
	mu       sync.Mutex
	breakers map[Path]*breaker
	configs  map[Path]PathConfig
}

func NewRegistry(configs map[Path]PathConfig) *Registry {
	if configs == nil {
		configs = DefaultPathConfigs()
	}
	return &Registry{
		breakers: make(map[Path]*breaker),
		configs:  configs,
	}
}

func (r *Registry) get(path Path) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[path]; ok {
		return b
	}
	cfg := r.configs[path]
	b := newBreaker(cfg.CBThreshold, cfg.CBTimeout)
	r.breakers[path] = b
	return b
}

// State returns the current breaker snapshot for path.
func (r *Registry) State(path Path) BreakerState {
	return r.get(path).Snapshot()
}

// Config returns the PathConfig for path, or the zero value (non-critical)
// if none is registered.
func (r *Registry) Config(path Path) PathConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[path]
}

// IsOpen reports whether path's breaker is currently open (used by health
// aggregation without consuming a probe slot).
func (r *Registry) IsOpen(path Path) bool {
	return r.get(path).Snapshot().Status == Open
}

// Reset clears breaker state for path, used by admin/recovery flows.
func (r *Registry) Reset(path Path) {
	r.mu.Lock()
	b, ok := r.breakers[path]
	r.mu.Unlock()
	if ok {
		b.mu.Lock()
		b.status = Closed
		b.failureCount = 0
		b.halfOpenProbed = false
		b.mu.Unlock()
	}
}
