package blockchain

import (
	"math/big"
	"time"
)

// PaymentEvent is a decoded on-chain Payment log (§3 "Payment event").
type PaymentEvent struct {
	From              string
	To                string
	Amount            *big.Int
	PaymentReference  string
	IsRelayed         bool
	TxHash            string
	BlockNumber       uint64
	LogIndex          uint
}

// EIP712Domain is the 7-tuple returned by eip712Domain() (EIP-5267).
type EIP712Domain struct {
	Fields            byte
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
	Salt              [32]byte
	Extensions        []*big.Int
}

// ChainCounters backs the per-chain part of GetNetworkStatus.
type ChainCounters struct {
	ChainID   uint64
	Reachable bool
	LatestBlock uint64
	LatencyMs int64
	Error     string
}

// NetworkStatus is the aggregate status map named in §4.4's operations
// table ("get_network_status").
type NetworkStatus struct {
	OverallStatus string
	TotalChains   int
	Timestamp     time.Time
	IsHealthy     bool
	Chains        []ChainCounters
}

// ContractProbe backs GET /health/contracts (§6, SPEC_FULL §3 SUPPLEMENT).
type ContractProbe struct {
	ChainID     uint64
	Kind        string
	Address     string
	Reachable   bool
	LastChecked time.Time
	LatencyMs   int64
	Error       string
}

// BlockchainError is the family of errors named in §4.4 "Failure semantics".
type BlockchainError struct {
	Code    string
	Message string
}

func (e *BlockchainError) Error() string { return e.Code + ": " + e.Message }

const (
	ErrProviderNotFound     = "PROVIDER_NOT_FOUND"
	ErrInvalidTransactionHash = "INVALID_TRANSACTION_HASH"
	ErrContractError        = "CONTRACT_ERROR"
	ErrNetworkError         = "NETWORK_ERROR"
	ErrOperatorNotConfigured = "OPERATOR_NOT_CONFIGURED"
)
