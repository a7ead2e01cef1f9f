package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "RUST_ENV", "RPC_URL", "CHAIN_ID", "CONTRACT_ADDRESS",
		"API_KEY", "JWT_SECRET", "CORS_ORIGINS", "RATE_LIMIT_MAX", "CURRENCY_SYMBOL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearRelayEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 6, cfg.MaxConcurrentWorkers)
	assert.Equal(t, 1000, cfg.MaxQueueSize)
}

func TestLoad_SingleChainFromEnv(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("CHAIN_ID", "1114")
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("CONTRACT_ADDRESS", "0xcE2D1f36FA75806C5EC2Bb20b2d1F77B6A8F81fF")

	cfg, err := Load()
	require.NoError(t, err)
	cc, ok := cfg.SupportedChains[1114]
	require.True(t, ok)
	assert.Equal(t, "https://rpc.example", cc.RPCURL)
	assert.Equal(t, "0xcE2D1f36FA75806C5EC2Bb20b2d1F77B6A8F81fF", cc.ContractAddress)
}

func TestLoad_ProductionRequiresAllVars(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("RUST_ENV", "production")

	_, err := Load()
	assert.Error(t, err, "production must abort startup when required vars are missing")
}

func TestLoad_ProductionSucceedsWhenAllVarsPresent(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("RUST_ENV", "production")
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("CHAIN_ID", "1114")
	t.Setenv("CONTRACT_ADDRESS", "0xcE2D1f36FA75806C5EC2Bb20b2d1F77B6A8F81fF")
	t.Setenv("API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Environment)
}

func TestValidate_RejectsInvalidContractAddress(t *testing.T) {
	cfg := &Config{
		SupportedChains: map[uint64]ChainConfig{
			1114: {ChainID: 1114, RPCURL: "https://rpc.example", ContractAddress: "not-an-address"},
		},
	}
	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsEmptyRPCURL(t *testing.T) {
	cfg := &Config{
		SupportedChains: map[uint64]ChainConfig{
			1114: {ChainID: 1114, RPCURL: ""},
		},
	}
	assert.Error(t, Validate(cfg))
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0xcE2D1f36FA75806C5EC2Bb20b2d1F77B6A8F81fF"))
	assert.False(t, IsValidAddress("0xshort"))
	assert.False(t, IsValidAddress("cE2D1f36FA75806C5EC2Bb20b2d1F77B6A8F81fF"))
}

func TestManager_ReloadSwapsAtomically(t *testing.T) {
	initial := &Config{SupportedChains: map[uint64]ChainConfig{}}
	m := NewManager(initial)
	assert.Same(t, initial, m.Current())

	next := &Config{SupportedChains: map[uint64]ChainConfig{
		1114: {ChainID: 1114, RPCURL: "https://rpc.example"},
	}}
	require.NoError(t, m.Reload(next))
	assert.Same(t, next, m.Current())
}

func TestManager_ReloadRejectsInvalidConfig(t *testing.T) {
	initial := &Config{SupportedChains: map[uint64]ChainConfig{}}
	m := NewManager(initial)

	bad := &Config{SupportedChains: map[uint64]ChainConfig{
		1: {ChainID: 1, RPCURL: ""},
	}}
	assert.Error(t, m.Reload(bad))
	assert.Same(t, initial, m.Current(), "a rejected reload must not replace the active snapshot")
}

func TestExplorerURL_KnownChainFallsBackToTable(t *testing.T) {
	cfg := &Config{SupportedChains: map[uint64]ChainConfig{}}
	assert.Equal(t, "https://sepolia.basescan.org", cfg.ExplorerURL(84532))
}

func TestExplorerURL_ConfiguredOverridesTable(t *testing.T) {
	cfg := &Config{SupportedChains: map[uint64]ChainConfig{
		84532: {ExplorerURL: "https://custom.explorer"},
	}}
	assert.Equal(t, "https://custom.explorer", cfg.ExplorerURL(84532))
}

func TestExplorerURL_UnknownChainGenericFallback(t *testing.T) {
	cfg := &Config{SupportedChains: map[uint64]ChainConfig{}}
	assert.Contains(t, cfg.ExplorerURL(999999), "999999")
}
