package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airchainpay/relay/internal/blockchain"
	"github.com/airchainpay/relay/internal/config"
	"github.com/airchainpay/relay/internal/monitoring"
	"github.com/airchainpay/relay/internal/processor"
	"github.com/airchainpay/relay/internal/ratelimit"
	"github.com/airchainpay/relay/internal/resilience"
	"github.com/airchainpay/relay/internal/storage"
	"github.com/airchainpay/relay/internal/validator"
)

const testServerContractAddr = "0xcE2D1f36FA75806C5EC2Bb20b2d1F77B6A8F81fF"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:        4000,
		Environment: config.EnvDevelopment,
		APIKey:      "test-api-key",
		JWTSecret:   "test-jwt-secret",
		CORSOrigins: nil,
		SupportedChains: map[uint64]config.ChainConfig{
			1114: {
				ChainID:         1114,
				Name:            "core-testnet",
				RPCURL:          "https://rpc.example",
				ContractAddress: testServerContractAddr,
				CurrencySymbol:  "TCORE2",
			},
		},
		MaxConcurrentWorkers: 2,
		MaxQueueSize:         10,
		DefaultRetryCount:    1,
	}
	cfgManager := config.NewManager(cfg)

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	registry := resilience.NewRegistry(resilience.DefaultPathConfigs())
	resilienceHandler := resilience.NewHandler(registry, 100, nil)

	operator, err := blockchain.NewOperator("")
	require.NoError(t, err)

	chainManager, err := blockchain.NewManager(cfg, resilienceHandler, operator, nil)
	require.NoError(t, err)

	monitor := monitoring.NewRegistry()
	limiter := ratelimit.New(1000, time.Minute)
	txValidator := validator.New(cfgManager, limiter)

	proc := processor.New(processor.Config{MaxConcurrentWorkers: 1, MaxQueueSize: 10, DefaultRetryCount: 1}, chainManager, store, nil)

	return NewServer(cfgManager, store, proc, chainManager, monitor, resilienceHandler, limiter, txValidator, nil)
}

func TestHandleHealth_ReturnsHealthy(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleSupportedChains_ListsConfiguredChains(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/chains/supported", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var chains []chainDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chains))
	require.Len(t, chains, 1)
	assert.Equal(t, uint64(1114), chains[0].ChainID)
	assert.True(t, chains[0].IsSupported)
}

func TestHandleChainInfo_UnknownChainReportsUnsupported(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/chains/999999/info", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var cd chainDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cd))
	assert.False(t, cd.IsSupported)
}

func TestHandleAuthToken_ValidAPIKeyIssuesToken(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"api_key":"test-api-key"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
}

func TestHandleAuthToken_InvalidAPIKeyRejected(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"api_key":"wrong-key"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleMetrics_ExposesPrometheusText(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP relay_transactions_received_total")
}

func TestHandleGetTransaction_UnknownIDReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/transaction/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS_PreflightRequestReturnsNoContent(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPanicRecovery_ConvertsToInternalErrorResponse(t *testing.T) {
	s := newTestServer(t)
	s.router.GET("/panic-test", func(w http.ResponseWriter, r *http.Request, _ params) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic-test", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
