package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertEngine_FiresHighFailureRatio(t *testing.T) {
	e := NewAlertEngine(10)
	c := Snapshot{TransactionsReceived: 10, TransactionsFailed: 2}
	e.Evaluate(c, GaugeSnapshot{})

	alerts := e.Snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, "high_failure_ratio", alerts[0].Name)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
	assert.False(t, alerts[0].Resolved)
}

func TestAlertEngine_DoesNotRefireWhileStillFiring(t *testing.T) {
	e := NewAlertEngine(10)
	c := Snapshot{RPCErrors: 150}
	e.Evaluate(c, GaugeSnapshot{})
	e.Evaluate(c, GaugeSnapshot{})
	e.Evaluate(c, GaugeSnapshot{})

	alerts := e.Snapshot()
	require.Len(t, alerts, 1, "an already-firing rule must not append duplicate alerts")
}

func TestAlertEngine_ResolvesWhenConditionClears(t *testing.T) {
	e := NewAlertEngine(10)
	e.Evaluate(Snapshot{DatabaseErrors: 60}, GaugeSnapshot{})
	warn, crit := e.UnresolvedCounts()
	assert.Equal(t, 0, warn)
	assert.Equal(t, 1, crit)

	e.Evaluate(Snapshot{DatabaseErrors: 0}, GaugeSnapshot{})
	warn, crit = e.UnresolvedCounts()
	assert.Equal(t, 0, warn)
	assert.Equal(t, 0, crit, "clearing the condition must resolve the active alert")
}

func TestAlertEngine_RefiresAfterResolution(t *testing.T) {
	e := NewAlertEngine(10)
	e.Evaluate(Snapshot{AuthFailures: 60}, GaugeSnapshot{})
	e.Evaluate(Snapshot{AuthFailures: 0}, GaugeSnapshot{})
	e.Evaluate(Snapshot{AuthFailures: 60}, GaugeSnapshot{})

	alerts := e.Snapshot()
	assert.Len(t, alerts, 2, "a rule may fire again once it has cleared and re-triggers")
}

func TestAlertEngine_ManualResolve(t *testing.T) {
	e := NewAlertEngine(10)
	e.Evaluate(Snapshot{RateLimitHits: 1500}, GaugeSnapshot{})
	alerts := e.Snapshot()
	require.Len(t, alerts, 1)

	ok := e.Resolve(alerts[0].ID)
	assert.True(t, ok)
	assert.False(t, e.Resolve("no-such-id"))

	warn, _ := e.UnresolvedCounts()
	assert.Equal(t, 0, warn)
}

func TestAlertEngine_BoundedCapacityEvictsOldest(t *testing.T) {
	e := NewAlertEngine(2)
	e.Evaluate(Snapshot{AuthFailures: 60}, GaugeSnapshot{})
	e.Evaluate(Snapshot{AuthFailures: 0}, GaugeSnapshot{})
	e.Evaluate(Snapshot{AuthFailures: 60}, GaugeSnapshot{})
	e.Evaluate(Snapshot{AuthFailures: 0}, GaugeSnapshot{})
	e.Evaluate(Snapshot{AuthFailures: 60}, GaugeSnapshot{})

	alerts := e.Snapshot()
	assert.LessOrEqual(t, len(alerts), 2)
	// Three firings into a capacity-2 engine: alert-1 is evicted.
	require.Len(t, alerts, 2)
	assert.Equal(t, "alert-2", alerts[0].ID)
	assert.Equal(t, "alert-3", alerts[1].ID)
}

func TestDefaultRules_MemoryAndResponseTimeThresholds(t *testing.T) {
	e := NewAlertEngine(10)
	e.Evaluate(Snapshot{}, GaugeSnapshot{MemoryUsageBytes: 1 << 31, ResponseTimeAvgMs: 6000})

	alerts := e.Snapshot()
	names := map[string]bool{}
	for _, a := range alerts {
		names[a.Name] = true
	}
	assert.True(t, names["memory_usage_warning"])
	assert.True(t, names["response_time_warning"])
}

func TestDefaultRules_ZeroReceivedNeverFiresRatioRule(t *testing.T) {
	e := NewAlertEngine(10)
	e.Evaluate(Snapshot{TransactionsReceived: 0, TransactionsFailed: 0}, GaugeSnapshot{})
	assert.Empty(t, e.Snapshot())
}
