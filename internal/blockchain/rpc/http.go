package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient implements Client over HTTP JSON-RPC with multi-endpoint
// failover, adapted from the teacher's src/chainadapter/rpc/http.go
// HTTPRPCClient (round-robin + health-based endpoint selection).
type HTTPClient struct {
	endpoints    []string
	currentIndex int
	health       HealthTracker
	httpClient   *http.Client
	requestID    atomic.Int64
	mu           sync.RWMutex
}

func NewHTTPClient(endpoints []string, timeout time.Duration, health HealthTracker) (*HTTPClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if health == nil {
		health = NewSimpleHealthTracker()
	}
	return &HTTPClient{
		endpoints:  endpoints,
		health:     health,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Call executes a single JSON-RPC call, retrying across healthy endpoints
// with a bounded exponential backoff between attempts on the same
// endpoint set (cenkalti/backoff/v4), matching the teacher's failover loop.
func (c *HTTPClient) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var lastErr error
	attempted := make(map[string]bool)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0

	for len(attempted) < len(c.endpoints) {
		endpoint := c.nextHealthyEndpoint(attempted)
		if endpoint == "" {
			break
		}
		attempted[endpoint] = true

		result, err := c.callEndpoint(ctx, endpoint, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}

	return nil, fmt.Errorf("all RPC endpoints failed, last error: %w", lastErr)
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) callEndpoint(ctx context.Context, endpoint, method string, params []interface{}) (json.RawMessage, error) {
	start := time.Now()

	id := c.requestID.Add(1)
	body, err := json.Marshal(rpcEnvelope{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.health.RecordFailure(endpoint, fmt.Errorf("HTTP %d", resp.StatusCode))
		return nil, fmt.Errorf("HTTP error: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var env rpcEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("failed to parse JSON-RPC response: %w", err)
	}
	if env.Error != nil {
		c.health.RecordFailure(endpoint, env.Error)
		return nil, fmt.Errorf("JSON-RPC error: %s", env.Error.Message)
	}

	c.health.RecordSuccess(endpoint, time.Since(start).Milliseconds())
	return env.Result, nil
}

func (c *HTTPClient) nextHealthyEndpoint(attempted map[string]bool) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < len(c.endpoints); i++ {
		idx := (c.currentIndex + i) % len(c.endpoints)
		endpoint := c.endpoints[idx]
		if attempted[endpoint] {
			continue
		}
		if c.health.IsHealthy(endpoint) {
			c.currentIndex = (idx + 1) % len(c.endpoints)
			return endpoint
		}
	}
	for _, endpoint := range c.endpoints {
		if !attempted[endpoint] {
			return endpoint
		}
	}
	return ""
}
