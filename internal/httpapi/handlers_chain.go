package httpapi

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

type chainDescriptor struct {
	ChainID         uint64 `json:"chain_id"`
	Name            string `json:"name"`
	CurrencySymbol  string `json:"currency_symbol"`
	ContractAddress string `json:"contract_address,omitempty"`
	BlockExplorerURL string `json:"block_explorer_url"`
	IsSupported     bool   `json:"is_supported"`
}

func (s *Server) handleSupportedChains(w http.ResponseWriter, r *http.Request, _ params) {
	cfg := s.cfg.Current()
	out := make([]chainDescriptor, 0, len(cfg.SupportedChains))
	for id, cc := range cfg.SupportedChains {
		out = append(out, chainDescriptor{
			ChainID:          id,
			Name:             cc.Name,
			CurrencySymbol:   cc.CurrencySymbol,
			ContractAddress:  cc.ContractAddress,
			BlockExplorerURL: cfg.ExplorerURL(id),
			IsSupported:      true,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChainInfo(w http.ResponseWriter, r *http.Request, ps params) {
	id, err := strconv.ParseUint(ps.ByName("chain_id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "invalid chain_id")
		return
	}
	cfg := s.cfg.Current()
	cc, ok := cfg.SupportedChains[id]
	if !ok {
		writeJSON(w, http.StatusOK, chainDescriptor{ChainID: id, IsSupported: false, BlockExplorerURL: cfg.ExplorerURL(id)})
		return
	}
	writeJSON(w, http.StatusOK, chainDescriptor{
		ChainID:          id,
		Name:             cc.Name,
		CurrencySymbol:   cc.CurrencySymbol,
		ContractAddress:  cc.ContractAddress,
		BlockExplorerURL: cfg.ExplorerURL(id),
		IsSupported:      true,
	})
}

func (s *Server) handleContractPayments(w http.ResponseWriter, r *http.Request, _ params) {
	q := r.URL.Query()

	chainID, err := strconv.ParseUint(q.Get("chain_id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "chain_id is required")
		return
	}

	var fromBlock, toBlock *uint64
	if v := q.Get("from_block"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			fromBlock = &n
		}
	}
	if v := q.Get("to_block"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			toBlock = &n
		}
	}

	events, err := s.chain.GetContractEvents(r.Context(), chainID, fromBlock, toBlock)
	if err != nil {
		s.monitor.IncRPCErrors()
		s.writeResilienceError(w, r, err)
		return
	}
	s.monitor.IncContractEvents()

	fromFilter := q.Get("from_address")
	toFilter := q.Get("to_address")
	limit := parseLimit(q.Get("limit"), 100)
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	filtered := make([]interface{}, 0, len(events))
	for _, e := range events {
		if fromFilter != "" && !addrEqual(e.From, fromFilter) {
			continue
		}
		if toFilter != "" && !addrEqual(e.To, toFilter) {
			continue
		}
		filtered = append(filtered, e)
	}

	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	page := filtered[offset:end]

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": page,
		"count":    len(page),
	})
}

func addrEqual(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}
