// Package monitoring implements the relay's counters/gauges, alert rule
// evaluation, and health aggregation (§4.6), grounded on the teacher's
// src/chainadapter/metrics/prometheus.go Prometheus-text exporter, widened
// from a single chain-adapter's RPC/build/sign/broadcast stats to the
// relay-wide counter set the spec names.
package monitoring

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Counters holds every monotonic counter named in §4.6.
type Counters struct {
	mu sync.RWMutex

	TransactionsReceived  int64
	TransactionsProcessed int64
	TransactionsFailed    int64
	TransactionsBroadcast int64
	RPCErrors             int64
	AuthFailures          int64
	RateLimitHits         int64
	RequestsTotal         int64
	RequestsSuccessful    int64
	RequestsFailed        int64
	DatabaseOperations    int64
	DatabaseErrors        int64
	CacheHits             int64
	CacheMisses           int64
	BlockchainConfirmations int64
	BlockchainTimeouts    int64
	GasPriceUpdates       int64
	ContractEvents        int64
	SecurityEvents        int64
	ValidationFailures    int64
}

// Snapshot is an immutable copy of Counters safe to read without a lock.
type Snapshot struct {
	TransactionsReceived    int64
	TransactionsProcessed   int64
	TransactionsFailed      int64
	TransactionsBroadcast   int64
	RPCErrors               int64
	AuthFailures            int64
	RateLimitHits           int64
	RequestsTotal           int64
	RequestsSuccessful      int64
	RequestsFailed          int64
	DatabaseOperations      int64
	DatabaseErrors          int64
	CacheHits               int64
	CacheMisses             int64
	BlockchainConfirmations int64
	BlockchainTimeouts      int64
	GasPriceUpdates         int64
	ContractEvents          int64
	SecurityEvents          int64
	ValidationFailures      int64
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		TransactionsReceived:    c.TransactionsReceived,
		TransactionsProcessed:   c.TransactionsProcessed,
		TransactionsFailed:      c.TransactionsFailed,
		TransactionsBroadcast:   c.TransactionsBroadcast,
		RPCErrors:               c.RPCErrors,
		AuthFailures:            c.AuthFailures,
		RateLimitHits:           c.RateLimitHits,
		RequestsTotal:           c.RequestsTotal,
		RequestsSuccessful:      c.RequestsSuccessful,
		RequestsFailed:          c.RequestsFailed,
		DatabaseOperations:      c.DatabaseOperations,
		DatabaseErrors:          c.DatabaseErrors,
		CacheHits:               c.CacheHits,
		CacheMisses:             c.CacheMisses,
		BlockchainConfirmations: c.BlockchainConfirmations,
		BlockchainTimeouts:      c.BlockchainTimeouts,
		GasPriceUpdates:         c.GasPriceUpdates,
		ContractEvents:          c.ContractEvents,
		SecurityEvents:          c.SecurityEvents,
		ValidationFailures:      c.ValidationFailures,
	}
}

// Gauges holds the point-in-time measurements named in §4.6.
type Gauges struct {
	mu               sync.RWMutex
	startedAt        time.Time
	memoryUsageBytes uint64
	cpuUsagePercent  float64
	activeConns      int64
	responseTimes    []float64 // rolling window, newest at the tail
	maxSamples       int
}

func NewGauges() *Gauges {
	return &Gauges{startedAt: time.Now(), maxSamples: 1000}
}

func (g *Gauges) UptimeSeconds() float64 {
	return time.Since(g.startedAt).Seconds()
}

func (g *Gauges) SetMemoryUsageBytes(v uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memoryUsageBytes = v
}

func (g *Gauges) SetCPUUsagePercent(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cpuUsagePercent = v
}

func (g *Gauges) SetActiveConnections(v int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activeConns = v
}

// RecordResponseTime appends to the rolling window of the last 1000
// samples, displacing the oldest once full (§4.6 "Response-time average").
func (g *Gauges) RecordResponseTime(ms float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responseTimes = append(g.responseTimes, ms)
	if len(g.responseTimes) > g.maxSamples {
		g.responseTimes = g.responseTimes[len(g.responseTimes)-g.maxSamples:]
	}
}

func (g *Gauges) AvgResponseTimeMs() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.responseTimes) == 0 {
		return 0
	}
	var sum float64
	for _, v := range g.responseTimes {
		sum += v
	}
	return sum / float64(len(g.responseTimes))
}

type GaugeSnapshot struct {
	UptimeSeconds      float64
	MemoryUsageBytes   uint64
	CPUUsagePercent    float64
	ActiveConnections  int64
	ResponseTimeAvgMs  float64
}

func (g *Gauges) Snapshot() GaugeSnapshot {
	g.mu.RLock()
	mem, cpu, conns := g.memoryUsageBytes, g.cpuUsagePercent, g.activeConns
	g.mu.RUnlock()
	return GaugeSnapshot{
		UptimeSeconds:     g.UptimeSeconds(),
		MemoryUsageBytes:  mem,
		CPUUsagePercent:   cpu,
		ActiveConnections: conns,
		ResponseTimeAvgMs: g.AvgResponseTimeMs(),
	}
}

// Registry bundles counters, gauges, and the alert engine into the single
// component the rest of the relay depends on.
type Registry struct {
	Counters *Counters
	Gauges   *Gauges
	Alerts   *AlertEngine
}

func NewRegistry() *Registry {
	return &Registry{
		Counters: &Counters{},
		Gauges:   NewGauges(),
		Alerts:   NewAlertEngine(1000),
	}
}

// addAndEvaluate is the single mutation point for every counter: it
// applies delta, then re-evaluates every alert rule against a fresh
// snapshot (§4.6 "evaluated on every counter update").
func (r *Registry) addAndEvaluate(field *int64, delta int64) {
	r.Counters.mu.Lock()
	*field += delta
	r.Counters.mu.Unlock()
	r.Alerts.Evaluate(r.Counters.Snapshot(), r.Gauges.Snapshot())
}

func (r *Registry) IncTransactionsReceived()  { r.addAndEvaluate(&r.Counters.TransactionsReceived, 1) }
func (r *Registry) IncTransactionsProcessed() { r.addAndEvaluate(&r.Counters.TransactionsProcessed, 1) }
func (r *Registry) IncTransactionsFailed()    { r.addAndEvaluate(&r.Counters.TransactionsFailed, 1) }
func (r *Registry) IncTransactionsBroadcast() { r.addAndEvaluate(&r.Counters.TransactionsBroadcast, 1) }
func (r *Registry) IncRPCErrors()             { r.addAndEvaluate(&r.Counters.RPCErrors, 1) }
func (r *Registry) IncAuthFailures()          { r.addAndEvaluate(&r.Counters.AuthFailures, 1) }
func (r *Registry) IncRateLimitHits()         { r.addAndEvaluate(&r.Counters.RateLimitHits, 1) }
func (r *Registry) IncRequestsTotal()         { r.addAndEvaluate(&r.Counters.RequestsTotal, 1) }
func (r *Registry) IncRequestsSuccessful()    { r.addAndEvaluate(&r.Counters.RequestsSuccessful, 1) }
func (r *Registry) IncRequestsFailed()        { r.addAndEvaluate(&r.Counters.RequestsFailed, 1) }
func (r *Registry) IncDatabaseOperations()    { r.addAndEvaluate(&r.Counters.DatabaseOperations, 1) }
func (r *Registry) IncDatabaseErrors()        { r.addAndEvaluate(&r.Counters.DatabaseErrors, 1) }
func (r *Registry) IncCacheHits()             { r.addAndEvaluate(&r.Counters.CacheHits, 1) }
func (r *Registry) IncCacheMisses()           { r.addAndEvaluate(&r.Counters.CacheMisses, 1) }
func (r *Registry) IncBlockchainConfirmations() {
	r.addAndEvaluate(&r.Counters.BlockchainConfirmations, 1)
}
func (r *Registry) IncBlockchainTimeouts() { r.addAndEvaluate(&r.Counters.BlockchainTimeouts, 1) }
func (r *Registry) IncGasPriceUpdates()    { r.addAndEvaluate(&r.Counters.GasPriceUpdates, 1) }
func (r *Registry) IncContractEvents()     { r.addAndEvaluate(&r.Counters.ContractEvents, 1) }
func (r *Registry) IncSecurityEvents()     { r.addAndEvaluate(&r.Counters.SecurityEvents, 1) }
func (r *Registry) IncValidationFailures() { r.addAndEvaluate(&r.Counters.ValidationFailures, 1) }

// Export renders every counter/gauge in Prometheus text exposition format,
// matching the shape (HELP/TYPE comment pairs, bare gauge/counter lines)
// of the teacher's PrometheusMetrics.Export.
func (r *Registry) Export() string {
	c := r.Counters.Snapshot()
	g := r.Gauges.Snapshot()

	var sb strings.Builder
	writeCounter := func(name, help string, v int64) {
		sb.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
		sb.WriteString(fmt.Sprintf("%s %d\n", name, v))
	}
	writeGauge := func(name, help string, v float64) {
		sb.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s gauge\n", name))
		sb.WriteString(fmt.Sprintf("%s %g\n", name, v))
	}

	writeCounter("relay_transactions_received_total", "Transactions received via ingress", c.TransactionsReceived)
	writeCounter("relay_transactions_processed_total", "Transactions successfully processed", c.TransactionsProcessed)
	writeCounter("relay_transactions_failed_total", "Transactions that reached a failed state", c.TransactionsFailed)
	writeCounter("relay_transactions_broadcast_total", "Transactions broadcast to a chain", c.TransactionsBroadcast)
	writeCounter("relay_rpc_errors_total", "RPC call errors", c.RPCErrors)
	writeCounter("relay_auth_failures_total", "Authentication failures", c.AuthFailures)
	writeCounter("relay_rate_limit_hits_total", "Requests rejected by rate limiting", c.RateLimitHits)
	writeCounter("relay_requests_total", "HTTP requests received", c.RequestsTotal)
	writeCounter("relay_requests_successful_total", "HTTP requests completed successfully", c.RequestsSuccessful)
	writeCounter("relay_requests_failed_total", "HTTP requests that errored", c.RequestsFailed)
	writeCounter("relay_database_operations_total", "Storage operations performed", c.DatabaseOperations)
	writeCounter("relay_database_errors_total", "Storage operations that errored", c.DatabaseErrors)
	writeCounter("relay_cache_hits_total", "Cache hits", c.CacheHits)
	writeCounter("relay_cache_misses_total", "Cache misses", c.CacheMisses)
	writeCounter("relay_blockchain_confirmations_total", "Transactions confirmed on-chain", c.BlockchainConfirmations)
	writeCounter("relay_blockchain_timeouts_total", "Blockchain operation timeouts", c.BlockchainTimeouts)
	writeCounter("relay_gas_price_updates_total", "Gas price refreshes", c.GasPriceUpdates)
	writeCounter("relay_contract_events_total", "Contract events observed", c.ContractEvents)
	writeCounter("relay_security_events_total", "Security-taxonomy errors recorded", c.SecurityEvents)
	writeCounter("relay_validation_failures_total", "Validation-taxonomy errors recorded", c.ValidationFailures)

	writeGauge("relay_uptime_seconds", "Seconds since process start", g.UptimeSeconds)
	writeGauge("relay_memory_usage_bytes", "Resident memory usage", float64(g.MemoryUsageBytes))
	writeGauge("relay_cpu_usage_percent", "CPU usage percent", g.CPUUsagePercent)
	writeGauge("relay_active_connections", "Active HTTP connections", float64(g.ActiveConnections))
	writeGauge("relay_response_time_avg_ms", "Rolling average response time", g.ResponseTimeAvgMs)

	return sb.String()
}
