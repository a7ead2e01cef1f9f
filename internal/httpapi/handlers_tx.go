package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/airchainpay/relay/internal/queue"
	"github.com/airchainpay/relay/internal/resilience"
	"github.com/airchainpay/relay/internal/storage"
)

type sendTxRequest struct {
	SignedTx string `json:"signed_tx"`
	RPCURL   string `json:"rpc_url"`
	ChainID  uint64 `json:"chain_id"`
}

// handleSendTx implements POST /send_tx (and its /api/v1/submit-transaction
// alias): rate-limit, validate, check blockchain health, persist pending,
// enqueue.
func (s *Server) handleSendTx(w http.ResponseWriter, r *http.Request, _ params) {
	s.monitor.IncRequestsTotal()
	s.monitor.IncTransactionsReceived()

	var req sendTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.monitor.IncRequestsFailed()
		writeError(w, r, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	if !s.limiter.Allow("global") {
		s.monitor.IncRateLimitHits()
		s.monitor.IncRequestsFailed()
		retryAfterSec := s.cfg.Current().RateLimits.WindowMS / 1000
		if retryAfterSec <= 0 {
			retryAfterSec = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
		writeError(w, r, http.StatusTooManyRequests, "rate_limit", "rate limit exceeded")
		return
	}

	result := s.validate.Validate(req.SignedTx, req.ChainID)
	if !result.Valid {
		s.monitor.IncValidationFailures()
		s.monitor.IncRequestsFailed()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":     result.Kind,
			"message":   joinErrors(result.Errors),
			"timestamp": nowISO(),
			"request_id": requestIDFrom(r),
		})
		return
	}

	status := s.chain.GetNetworkStatus(r.Context())
	if status.OverallStatus != "healthy" {
		s.monitor.IncRequestsFailed()
		w.Header().Set("Retry-After", "10")
		writeError(w, r, http.StatusServiceUnavailable, "network_unavailable", "blockchain network is currently unavailable")
		return
	}

	id := uuid.NewString()
	submittedAt := time.Now().UTC()

	if err := s.store.SaveTransaction(&storage.Transaction{
		ID:        id,
		SignedTx:  req.SignedTx,
		ChainID:   req.ChainID,
		Status:    storage.StatusPending,
		Timestamp: submittedAt,
	}); err != nil {
		s.monitor.IncDatabaseErrors()
		s.monitor.IncRequestsFailed()
		writeError(w, r, http.StatusInternalServerError, "storage", "failed to persist transaction")
		return
	}

	qtx := &queue.Transaction{
		ID:       id,
		ChainID:  req.ChainID,
		Metadata: map[string]string{"id": id, "signedTx": req.SignedTx},
		Priority: queue.Normal,
	}
	if err := s.proc.Enqueue(qtx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":  "queue_full",
			"status": "queue_failed",
		})
		s.monitor.IncRequestsFailed()
		return
	}

	s.monitor.IncRequestsSuccessful()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "queued",
		"transaction_id": id,
		"chain_id":       req.ChainID,
		"timestamp":      submittedAt.Format(timeLayout),
	})
}

type simpleSendTxRequest struct {
	SignedTx string `json:"signed_tx"`
	ChainID  uint64 `json:"chain_id"`
}

// handleSimpleSendTx implements POST /simple_send_tx: synchronous
// broadcast bypassing the queue entirely, for callers that want to block
// until the result is known.
func (s *Server) handleSimpleSendTx(w http.ResponseWriter, r *http.Request, _ params) {
	s.monitor.IncRequestsTotal()
	s.monitor.IncTransactionsReceived()

	var req simpleSendTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.monitor.IncRequestsFailed()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body", "status": "failed"})
		return
	}

	result := s.validate.Validate(req.SignedTx, req.ChainID)
	if !result.Valid {
		s.monitor.IncValidationFailures()
		s.monitor.IncRequestsFailed()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": joinErrors(result.Errors), "status": "failed"})
		return
	}

	id := uuid.NewString()
	qtx := &queue.Transaction{ID: id, ChainID: req.ChainID, Metadata: map[string]string{"id": id, "signedTx": req.SignedTx}}
	hash, err := s.chain.SendTransaction(r.Context(), qtx)
	if err != nil {
		s.monitor.IncTransactionsFailed()
		s.monitor.IncRequestsFailed()
		writeJSON(w, resilience.HTTPStatus(err), map[string]interface{}{"success": false, "error": err.Error(), "status": "failed"})
		return
	}

	s.monitor.IncTransactionsBroadcast()
	s.monitor.IncRequestsSuccessful()
	cc, _ := s.chain.ChainConfig(req.ChainID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"transaction_id":      id,
		"transaction_hash":    hash,
		"chain_id":            req.ChainID,
		"chain_name":          cc.Name,
		"block_explorer_url":  s.cfg.Current().ExplorerURL(req.ChainID),
		"status":              "completed",
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, ps params) {
	s.renderTransactionByID(w, r, ps.ByName("id"), true)
}

func (s *Server) handleGetTransactionStatus(w http.ResponseWriter, r *http.Request, ps params) {
	s.renderTransactionByID(w, r, ps.ByName("id"), false)
}

func (s *Server) renderTransactionByID(w http.ResponseWriter, r *http.Request, id string, withExplorer bool) {
	tx, ok := s.store.GetTransaction(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "transaction not found")
		return
	}
	s.writeTransactionView(w, tx, withExplorer)
}

func (s *Server) handleGetTransactionByHash(w http.ResponseWriter, r *http.Request, ps params) {
	tx, ok := s.store.GetTransactionByHash(ps.ByName("hash"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "transaction not found")
		return
	}
	s.writeTransactionView(w, tx, true)
}

func (s *Server) writeTransactionView(w http.ResponseWriter, tx *storage.Transaction, withExplorer bool) {
	cc, _ := s.chain.ChainConfig(tx.ChainID)
	body := map[string]interface{}{
		"success":        true,
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
		"chain_id":       tx.ChainID,
		"chain_name":     cc.Name,
		"timestamp":      tx.Timestamp.UTC().Format(timeLayout),
		"message":        statusMessage(tx.Status),
	}
	if tx.TxHash != "" {
		body["transaction_hash"] = tx.TxHash
		if withExplorer {
			body["block_explorer_url"] = s.cfg.Current().ExplorerURL(tx.ChainID)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, _ params) {
	limit := parseLimit(r.URL.Query().Get("limit"), 100)
	writeJSON(w, http.StatusOK, s.store.GetTransactions(limit))
}

func (s *Server) handleListTransactionsByUser(w http.ResponseWriter, r *http.Request, ps params) {
	userID := ps.ByName("user_id")
	limit := parseLimit(r.URL.Query().Get("limit"), 100)
	all := s.store.GetTransactions(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"user_id":     userID,
		"transactions": all,
		"total_count": len(all),
		"limit":       limit,
	})
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return "validation failed"
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}

func statusMessage(status storage.Status) string {
	switch status {
	case storage.StatusCompleted:
		return "transaction confirmed"
	case storage.StatusFailed:
		return "transaction failed"
	case storage.StatusQueueFailed:
		return "transaction rejected: queue full"
	case storage.StatusRetrying:
		return "transaction retrying"
	case storage.StatusProcessing:
		return "transaction broadcasting"
	default:
		return "transaction pending"
	}
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

const timeLayout = time.RFC3339
