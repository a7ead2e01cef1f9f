// Package config loads and validates the relay's multi-chain configuration
// from environment variables and exposes it behind an atomically swappable
// snapshot, per the §9 redesign note ("Global config with hot reload").
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

var addressRE = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ChainConfig describes one supported EVM chain (§3 "Chain config").
type ChainConfig struct {
	ChainID         uint64
	Name            string
	RPCURL          string
	ContractAddress string
	ExplorerURL     string
	CurrencySymbol  string
	MaxGasLimit     uint64 // 0 means "use the tier default"
}

// RateLimits is the global sliding-window rate-limit configuration
// consumed by both the validator (§4.1 rule 8) and the HTTP layer.
type RateLimits struct {
	WindowMS    int64
	MaxRequests int
}

// Environment names the deployment tier, gating the "production requires
// these env vars" rule in §6.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config is the immutable configuration snapshot. A new Config replaces
// the old one atomically via Manager.Reload; readers never block.
type Config struct {
	Port            int
	Environment     Environment
	DefaultChainID  uint64
	APIKey          string
	JWTSecret       string
	CORSOrigins     []string
	RateLimits      RateLimits
	SupportedChains map[uint64]ChainConfig

	MaxConcurrentWorkers int
	MaxQueueSize         int
	DefaultRetryCount    int
	DefaultRetryDelayMS  int64
	MaxRetryDelayMS      int64
	TransactionTimeoutMS int64
}

// explorerByChainID is the block-explorer URL derivation table from §6.
var explorerByChainID = map[uint64]string{
	1114:  "https://scan.test2.btcs.network",
	84532: "https://sepolia.basescan.org",
	17000: "https://holesky.etherscan.io",
	4202:  "https://sepolia.scroll.io",
}

// ExplorerURL returns the configured explorer, falling back to the
// well-known table, then a generic fallback.
func (c *Config) ExplorerURL(chainID uint64) string {
	if cc, ok := c.SupportedChains[chainID]; ok && cc.ExplorerURL != "" {
		return cc.ExplorerURL
	}
	if u, ok := explorerByChainID[chainID]; ok {
		return u
	}
	return fmt.Sprintf("https://explorer.unknown/chain/%d", chainID)
}

// Manager holds an atomically swappable *Config pointer so readers are
// never blocked by a reload (§9 "core holds an immutable snapshot behind
// an atomically swappable pointer").
type Manager struct {
	ptr atomic.Pointer[Config]
}

func NewManager(initial *Config) *Manager {
	m := &Manager{}
	m.ptr.Store(initial)
	return m
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config { return m.ptr.Load() }

// Reload validates next and, if valid, atomically swaps it in.
func (m *Manager) Reload(next *Config) error {
	if err := Validate(next); err != nil {
		return err
	}
	m.ptr.Store(next)
	return nil
}

// Load builds a Config from environment variables per §6's table. It does
// not watch the filesystem; the watcher, if any, is an external collaborator
// that calls Manager.Reload when it observes a change.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 envInt("PORT", 4000),
		Environment:          Environment(envString("RUST_ENV", string(EnvDevelopment))),
		APIKey:               os.Getenv("API_KEY"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		CORSOrigins:          splitNonEmpty(os.Getenv("CORS_ORIGINS"), ","),
		MaxConcurrentWorkers: envInt("MAX_CONCURRENT_WORKERS", 6),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 1000),
		DefaultRetryCount:    envInt("DEFAULT_RETRY_COUNT", 3),
		DefaultRetryDelayMS:  envInt64("DEFAULT_RETRY_DELAY_MS", 5000),
		MaxRetryDelayMS:      envInt64("MAX_RETRY_DELAY_MS", 60000),
		TransactionTimeoutMS: envInt64("TRANSACTION_TIMEOUT_MS", 5*60*1000),
		RateLimits: RateLimits{
			WindowMS:    envInt64("RATE_LIMIT_WINDOW_MS", 60000),
			MaxRequests: envInt("RATE_LIMIT_MAX", 100),
		},
		SupportedChains: map[uint64]ChainConfig{},
	}

	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		id, err := strconv.ParseUint(chainID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAIN_ID: %w", err)
		}
		cfg.DefaultChainID = id
		cfg.SupportedChains[id] = ChainConfig{
			ChainID:         id,
			Name:            fmt.Sprintf("chain-%d", id),
			RPCURL:          os.Getenv("RPC_URL"),
			ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
			CurrencySymbol:  envString("CURRENCY_SYMBOL", "ETH"),
		}
	}

	// Per-chain overrides: <NAME>_RPC_URL / <NAME>_CONTRACT_ADDRESS.
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], parts[1]
		if strings.HasSuffix(key, "_RPC_URL") && key != "RPC_URL" {
			name := strings.TrimSuffix(key, "_RPC_URL")
			mergeChainField(cfg, name, func(cc *ChainConfig) { cc.RPCURL = val })
		}
		if strings.HasSuffix(key, "_CONTRACT_ADDRESS") && key != "CONTRACT_ADDRESS" {
			name := strings.TrimSuffix(key, "_CONTRACT_ADDRESS")
			mergeChainField(cfg, name, func(cc *ChainConfig) { cc.ContractAddress = val })
		}
	}

	if err := requireProductionVars(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeChainField(cfg *Config, name string, set func(*ChainConfig)) {
	// NAME-keyed overrides apply only to a chain already present in
	// SupportedChains whose Name matches NAME case-insensitively; an
	// override naming no such chain is ignored.
	for id, cc := range cfg.SupportedChains {
		if strings.EqualFold(cc.Name, name) {
			set(&cc)
			cfg.SupportedChains[id] = cc
			return
		}
	}
}

// requireProductionVars enforces the §6 rule: production aborts startup if
// any of {RPC_URL, CHAIN_ID, CONTRACT_ADDRESS, API_KEY, JWT_SECRET} is
// missing or empty.
func requireProductionVars(cfg *Config) error {
	if cfg.Environment != EnvProduction {
		return nil
	}
	required := map[string]string{
		"RPC_URL":          os.Getenv("RPC_URL"),
		"CHAIN_ID":         os.Getenv("CHAIN_ID"),
		"CONTRACT_ADDRESS": os.Getenv("CONTRACT_ADDRESS"),
		"API_KEY":          cfg.APIKey,
		"JWT_SECRET":       cfg.JWTSecret,
	}
	var missing []string
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("production environment missing required variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks invariants: every contract address must pass hex-address
// validation and every rpc_url must be non-empty (§3, §6).
func Validate(cfg *Config) error {
	for id, cc := range cfg.SupportedChains {
		if cc.RPCURL == "" {
			return fmt.Errorf("chain %d: rpc_url must not be empty", id)
		}
		if cc.ContractAddress != "" && !addressRE.MatchString(cc.ContractAddress) {
			return fmt.Errorf("chain %d: invalid contract address %q", id, cc.ContractAddress)
		}
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsValidAddress reports whether addr matches the §6 address-validity rule.
func IsValidAddress(addr string) bool { return addressRE.MatchString(addr) }
