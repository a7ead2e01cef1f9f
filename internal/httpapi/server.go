// Package httpapi implements the relay's HTTP surface (§6) on top of
// julienschmidt/httprouter, the only routing library present anywhere in
// the retrieval pack (ethereum-go-ethereum and SipengXie-modifiedGeth both
// carry it as a direct dependency).
package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/airchainpay/relay/internal/blockchain"
	"github.com/airchainpay/relay/internal/config"
	"github.com/airchainpay/relay/internal/monitoring"
	"github.com/airchainpay/relay/internal/processor"
	"github.com/airchainpay/relay/internal/ratelimit"
	"github.com/airchainpay/relay/internal/resilience"
	"github.com/airchainpay/relay/internal/storage"
	"github.com/airchainpay/relay/internal/validator"
)

const version = "1.0.0"

// params aliases httprouter.Params so handler signatures read cleanly.
type params = httprouter.Params

// Server wires every dependency the HTTP handlers need and owns the
// underlying httprouter.Router.
type Server struct {
	cfg        *config.Manager
	store      storage.Store
	proc       *processor.Processor
	chain      *blockchain.Manager
	monitor    *monitoring.Registry
	resilience *resilience.Handler
	limiter    *ratelimit.Limiter
	validate   *validator.Validator
	log        *zap.Logger
	auth       *tokenAuthority

	router *httprouter.Router
}

func NewServer(
	cfg *config.Manager,
	store storage.Store,
	proc *processor.Processor,
	chain *blockchain.Manager,
	monitor *monitoring.Registry,
	resilienceHandler *resilience.Handler,
	limiter *ratelimit.Limiter,
	validate *validator.Validator,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:        cfg,
		store:      store,
		proc:       proc,
		chain:      chain,
		monitor:    monitor,
		resilience: resilienceHandler,
		limiter:    limiter,
		validate:   validate,
		log:        log,
		auth:       newTokenAuthority(cfg.Current().JWTSecret),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(withRecovery(s.log, withAccessLog(s.log, s.withCORS(s.router))))
}

func (s *Server) routes() *httprouter.Router {
	r := httprouter.New()

	r.GET("/health", s.handleHealth)
	r.POST("/send_tx", s.handleSendTx)
	r.POST("/simple_send_tx", s.handleSimpleSendTx)
	r.POST("/api/v1/submit-transaction", s.handleSendTx)
	r.GET("/transaction/:id", s.handleGetTransaction)
	r.GET("/transaction/:id/status", s.handleGetTransactionStatus)
	r.GET("/transaction/hash/:hash", s.handleGetTransactionByHash)
	r.GET("/transactions", s.handleListTransactions)
	r.GET("/transactions/user/:user_id", s.handleListTransactionsByUser)
	r.GET("/contract/payments", s.handleContractPayments)
	r.GET("/chains/supported", s.handleSupportedChains)
	r.GET("/chains/:chain_id/info", s.handleChainInfo)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/health/detailed", s.handleHealthDetailed)
	r.GET("/health/component/:name", s.handleHealthComponent)
	r.GET("/health/contracts", s.handleHealthContracts)
	r.GET("/health/contracts/detailed", s.handleHealthContracts)
	r.POST("/auth/token", s.handleAuthToken)

	return r
}

func requestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

type ctxKey int

const ctxKeyRequestID ctxKey = iota

func newRequestID() string { return uuid.NewString() }

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }
