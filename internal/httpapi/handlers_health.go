package httpapi

import (
	"net/http"

	"github.com/airchainpay/relay/internal/config"
	"github.com/airchainpay/relay/internal/monitoring"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": nowISO(),
		"version":   version,
		"message":   "airchainpay relay is running",
	})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request, _ params) {
	storeHealth := s.store.CheckHealth()
	netStatus := s.chain.GetNetworkStatus(r.Context())

	reachable := 0
	for _, c := range netStatus.Chains {
		if c.Reachable {
			reachable++
		}
	}

	cfgErr := ""
	if err := config.Validate(s.cfg.Current()); err != nil {
		cfgErr = err.Error()
	}

	detail := s.monitor.Aggregate(
		r.Context(),
		monitoring.StorageHealth{IsHealthy: storeHealth.IsHealthy, DataIntegrity: storeHealth.DataIntegrity},
		monitoring.BlockchainHealth{IsHealthy: netStatus.IsHealthy, TotalChains: netStatus.TotalChains, Reachable: reachable},
		monitoring.ConfigHealth{Valid: cfgErr == "", Error: cfgErr},
	)
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleHealthComponent(w http.ResponseWriter, r *http.Request, ps params) {
	name := ps.ByName("name")
	storeHealth := s.store.CheckHealth()
	netStatus := s.chain.GetNetworkStatus(r.Context())
	reachable := 0
	for _, c := range netStatus.Chains {
		if c.Reachable {
			reachable++
		}
	}
	cfgErr := ""
	if err := config.Validate(s.cfg.Current()); err != nil {
		cfgErr = err.Error()
	}
	detail := s.monitor.Aggregate(
		r.Context(),
		monitoring.StorageHealth{IsHealthy: storeHealth.IsHealthy, DataIntegrity: storeHealth.DataIntegrity},
		monitoring.BlockchainHealth{IsHealthy: netStatus.IsHealthy, TotalChains: netStatus.TotalChains, Reachable: reachable},
		monitoring.ConfigHealth{Valid: cfgErr == "", Error: cfgErr},
	)

	var key string
	switch name {
	case "system":
		key = "system"
	case "database":
		key = "storage"
	case "blockchain":
		key = "blockchain"
	case "configuration":
		key = "configuration"
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown health component: "+name)
		return
	}
	for _, c := range detail.Components {
		if c.Name == key {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, "not_found", "unknown health component: "+name)
}

func (s *Server) handleHealthContracts(w http.ResponseWriter, r *http.Request, _ params) {
	probes := s.chain.ProbeContracts(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contracts": probes,
		"count":     len(probes),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ params) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.monitor.Export()))
}
