package monitoring

import (
	"context"
)

// ComponentHealth is the per-component health entry inside DetailedHealth.
type ComponentHealth struct {
	Name        string
	Healthy     bool
	HealthScore int // one of {100, 75, 50, 25}
	Detail      string
}

// DetailedHealth is the response shape for GET /health/detailed (§4.6).
type DetailedHealth struct {
	Status           string // healthy | warning | degraded | critical
	Components       []ComponentHealth
	UnresolvedAlerts  struct {
		Warning  int
		Critical int
	}
	Gauges GaugeSnapshot
}

// StorageHealth is the subset of storage.HealthInfo the aggregator needs,
// kept narrow to avoid an import cycle with internal/storage.
type StorageHealth struct {
	IsHealthy     bool
	DataIntegrity bool
}

// BlockchainHealth is the subset of blockchain.NetworkStatus the
// aggregator needs, kept narrow for the same reason.
type BlockchainHealth struct {
	IsHealthy   bool
	TotalChains int
	Reachable   int
}

// ConfigHealth reports whether the active configuration last validated
// successfully.
type ConfigHealth struct {
	Valid bool
	Error string
}

// Aggregate combines system metrics, storage health, blockchain health,
// configuration validity, and unresolved alert counts into the single
// health_score-bearing response named in §4.6 "Health aggregation".
func (r *Registry) Aggregate(ctx context.Context, storageHealth StorageHealth, chainHealth BlockchainHealth, cfgHealth ConfigHealth) DetailedHealth {
	warn, crit := r.Alerts.UnresolvedCounts()

	components := []ComponentHealth{
		{Name: "system", Healthy: true, HealthScore: 100},
		scoreComponent("storage", storageHealth.IsHealthy && storageHealth.DataIntegrity, storageDetail(storageHealth)),
		blockchainComponent(chainHealth),
		scoreComponent("configuration", cfgHealth.Valid, cfgHealth.Error),
	}

	status := "healthy"
	switch {
	case crit > 0:
		status = "critical"
	case !storageHealth.IsHealthy || !chainHealth.IsHealthy:
		status = "degraded"
	case warn > 0:
		status = "warning"
	}

	out := DetailedHealth{
		Status:      status,
		Components:  components,
		Gauges:      r.Gauges.Snapshot(),
	}
	out.UnresolvedAlerts.Warning = warn
	out.UnresolvedAlerts.Critical = crit
	return out
}

func scoreComponent(name string, healthy bool, detail string) ComponentHealth {
	score := 100
	if !healthy {
		score = 25
	}
	return ComponentHealth{Name: name, Healthy: healthy, HealthScore: score, Detail: detail}
}

func storageDetail(h StorageHealth) string {
	if h.IsHealthy && h.DataIntegrity {
		return ""
	}
	if !h.DataIntegrity {
		return "data integrity check failed"
	}
	return "storage unhealthy"
}

// blockchainComponent scales the health score to the fraction of chains
// reachable, using all four tiers named in §4.6 rather than a binary
// healthy/unhealthy split.
func blockchainComponent(h BlockchainHealth) ComponentHealth {
	if h.TotalChains == 0 {
		return ComponentHealth{Name: "blockchain", Healthy: false, HealthScore: 25, Detail: "no chains configured"}
	}
	ratio := float64(h.Reachable) / float64(h.TotalChains)
	switch {
	case ratio == 1:
		return ComponentHealth{Name: "blockchain", Healthy: true, HealthScore: 100}
	case ratio >= 0.75:
		return ComponentHealth{Name: "blockchain", Healthy: false, HealthScore: 75, Detail: "one or more chains unreachable"}
	case ratio >= 0.5:
		return ComponentHealth{Name: "blockchain", Healthy: false, HealthScore: 50, Detail: "half or more chains unreachable"}
	default:
		return ComponentHealth{Name: "blockchain", Healthy: false, HealthScore: 25, Detail: "most chains unreachable"}
	}
}
