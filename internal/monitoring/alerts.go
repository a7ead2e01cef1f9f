package monitoring

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Severity mirrors the resilience package's severities for alert ranking
// (Warning/Critical only, per §4.6's rule table).
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one evaluated rule firing, appended to the bounded alert ring.
type Alert struct {
	ID        string
	Name      string
	Severity  Severity
	Message   string
	Timestamp time.Time
	Resolved  bool
	Metadata  map[string]string
}

// Rule evaluates a counter/gauge snapshot and returns a firing alert, or
// ok=false if the condition does not hold.
type Rule struct {
	Name     string
	Severity Severity
	Evaluate func(c Snapshot, g GaugeSnapshot) (message string, ok bool)
}

// DefaultRules reproduces the §4.6 "Alert rules" table verbatim.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "high_failure_ratio",
			Severity: SeverityWarning,
			Evaluate: func(c Snapshot, g GaugeSnapshot) (string, bool) {
				if c.TransactionsReceived == 0 {
					return "", false
				}
				ratio := float64(c.TransactionsFailed) / float64(c.TransactionsReceived)
				if ratio > 0.1 {
					return fmt.Sprintf("failed/received ratio %.2f exceeds 0.1", ratio), true
				}
				return "", false
			},
		},
		{
			Name:     "rpc_errors_critical",
			Severity: SeverityCritical,
			Evaluate: func(c Snapshot, g GaugeSnapshot) (string, bool) {
				if c.RPCErrors > 100 {
					return fmt.Sprintf("rpc_errors %d exceeds 100", c.RPCErrors), true
				}
				return "", false
			},
		},
		{
			Name:     "auth_failures_warning",
			Severity: SeverityWarning,
			Evaluate: func(c Snapshot, g GaugeSnapshot) (string, bool) {
				if c.AuthFailures > 50 {
					return fmt.Sprintf("auth_failures %d exceeds 50", c.AuthFailures), true
				}
				return "", false
			},
		},
		{
			Name:     "memory_usage_warning",
			Severity: SeverityWarning,
			Evaluate: func(c Snapshot, g GaugeSnapshot) (string, bool) {
				const gib = 1 << 30
				if g.MemoryUsageBytes > gib {
					return fmt.Sprintf("memory_usage_bytes %d exceeds 1GiB", g.MemoryUsageBytes), true
				}
				return "", false
			},
		},
		{
			Name:     "response_time_warning",
			Severity: SeverityWarning,
			Evaluate: func(c Snapshot, g GaugeSnapshot) (string, bool) {
				if g.ResponseTimeAvgMs > 5000 {
					return fmt.Sprintf("response_time_avg_ms %.0f exceeds 5000", g.ResponseTimeAvgMs), true
				}
				return "", false
			},
		},
		{
			Name:     "rate_limit_hits_warning",
			Severity: SeverityWarning,
			Evaluate: func(c Snapshot, g GaugeSnapshot) (string, bool) {
				if c.RateLimitHits > 1000 {
					return fmt.Sprintf("rate_limit_hits %d exceeds 1000", c.RateLimitHits), true
				}
				return "", false
			},
		},
		{
			Name:     "database_errors_critical",
			Severity: SeverityCritical,
			Evaluate: func(c Snapshot, g GaugeSnapshot) (string, bool) {
				if c.DatabaseErrors > 50 {
					return fmt.Sprintf("database_errors %d exceeds 50", c.DatabaseErrors), true
				}
				return "", false
			},
		},
	}
}

// AlertEngine evaluates DefaultRules on every counter update and keeps a
// bounded, oldest-first-eviction ring of fired alerts.
type AlertEngine struct {
	mu       sync.Mutex
	rules    []Rule
	capacity int
	items    []*Alert
	nextID   atomic.Int64
	// active suppresses re-firing the same unresolved rule on every tick.
	active map[string]*Alert
}

func NewAlertEngine(capacity int) *AlertEngine {
	if capacity <= 0 {
		capacity = 1000
	}
	return &AlertEngine{
		rules:    DefaultRules(),
		capacity: capacity,
		active:   make(map[string]*Alert),
	}
}

// Evaluate runs every rule against the given snapshot, appending a new
// Alert for any rule transitioning from not-firing to firing.
func (e *AlertEngine) Evaluate(c Snapshot, g GaugeSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rule := range e.rules {
		msg, firing := rule.Evaluate(c, g)
		if !firing {
			if a, ok := e.active[rule.Name]; ok {
				a.Resolved = true
				delete(e.active, rule.Name)
			}
			continue
		}
		if _, alreadyFiring := e.active[rule.Name]; alreadyFiring {
			continue
		}
		id := fmt.Sprintf("alert-%d", e.nextID.Add(1))
		a := &Alert{
			ID:        id,
			Name:      rule.Name,
			Severity:  rule.Severity,
			Message:   msg,
			Timestamp: time.Now().UTC(),
		}
		e.active[rule.Name] = a
		e.push(a)
	}
}

func (e *AlertEngine) push(a *Alert) {
	e.items = append(e.items, a)
	if len(e.items) > e.capacity {
		e.items = e.items[len(e.items)-e.capacity:]
	}
}

// Snapshot returns every recorded alert, oldest first.
func (e *AlertEngine) Snapshot() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Alert, len(e.items))
	copy(out, e.items)
	return out
}

// Resolve marks alert id as resolved (admin endpoint, §4.6).
func (e *AlertEngine) Resolve(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.items {
		if a.ID == id {
			a.Resolved = true
			return true
		}
	}
	return false
}

// UnresolvedCounts returns the count of unresolved alerts by severity.
func (e *AlertEngine) UnresolvedCounts() (warning, critical int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.items {
		if a.Resolved {
			continue
		}
		switch a.Severity {
		case SeverityWarning:
			warning++
		case SeverityCritical:
			critical++
		}
	}
	return warning, critical
}
