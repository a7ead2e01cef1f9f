// Package blockchain implements the blockchain manager (§4.4): one RPC
// provider per supported chain, one contract binding per (chain ×
// contract kind), raw-tx broadcast, meta-transaction/payment contract
// calls, event retrieval, and aggregate health.
package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	blockchainabi "github.com/airchainpay/relay/internal/blockchain/abi"
	"github.com/airchainpay/relay/internal/blockchain/rpc"
	"github.com/airchainpay/relay/internal/config"
	"github.com/airchainpay/relay/internal/queue"
	"github.com/airchainpay/relay/internal/resilience"
)

// chainBinding is the (provider, contract_address, ABI) triple used to
// make read/write calls against one deployed contract (GLOSSARY "Chain
// binding"), immutable after construction.
type chainBinding struct {
	cfg              config.ChainConfig
	rpc              rpc.Client
	airChainPay      ethabi.ABI
	airChainPayToken ethabi.ABI
	contractAddr     common.Address
	hasContract      bool
}

// Manager owns one provider per supported chain and the resilience
// handler every operation runs through.
type Manager struct {
	mu         sync.RWMutex
	bindings   map[uint64]*chainBinding
	resilience *resilience.Handler
	operator   *Operator
	log        *zap.Logger
	timeout    time.Duration
}

// NewManager constructs a chain binding for every chain in cfg, per the
// §4.4 construction rule: instantiate an HTTP JSON-RPC provider, and if a
// contract_address is configured, bind both AirChainPay and
// AirChainPayToken ABIs to it.
func NewManager(cfg *config.Config, resilienceHandler *resilience.Handler, operator *Operator, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		bindings:   make(map[uint64]*chainBinding),
		resilience: resilienceHandler,
		operator:   operator,
		log:        log,
		timeout:    15 * time.Second,
	}

	airABI, err := blockchainabi.Parse(blockchainabi.AirChainPay)
	if err != nil {
		return nil, fmt.Errorf("parse AirChainPay ABI: %w", err)
	}
	tokenABI, err := blockchainabi.Parse(blockchainabi.AirChainPayToken)
	if err != nil {
		return nil, fmt.Errorf("parse AirChainPayToken ABI: %w", err)
	}

	for id, cc := range cfg.SupportedChains {
		client, err := rpc.NewHTTPClient([]string{cc.RPCURL}, 20*time.Second, rpc.NewSimpleHealthTracker())
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", id, err)
		}
		b := &chainBinding{
			cfg:              cc,
			rpc:              client,
			airChainPay:      airABI,
			airChainPayToken: tokenABI,
		}
		if cc.ContractAddress != "" {
			b.contractAddr = common.HexToAddress(cc.ContractAddress)
			b.hasContract = true
		}
		m.bindings[id] = b
	}

	return m, nil
}

func (m *Manager) binding(chainID uint64) (*chainBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[chainID]
	if !ok {
		return nil, &BlockchainError{Code: ErrProviderNotFound, Message: fmt.Sprintf("no provider bound for chain %d", chainID)}
	}
	return b, nil
}

func (m *Manager) exec(ctx context.Context, component string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if m.resilience == nil {
		return fn(ctx)
	}
	return m.resilience.Execute(ctx, resilience.PathBlockchainTransaction, component, fn)
}

// SendTransaction decodes queued.Metadata["signedTx"] and broadcasts it raw
// (§4.4 operations table, row 1).
func (m *Manager) SendTransaction(ctx context.Context, qtx *queue.Transaction) (string, error) {
	res, err := m.exec(ctx, "blockchain.send_transaction", func(ctx context.Context) (interface{}, error) {
		b, err := m.binding(qtx.ChainID)
		if err != nil {
			return nil, err
		}
		signedTx, ok := qtx.Metadata["signedTx"]
		if !ok || signedTx == "" {
			return nil, &BlockchainError{Code: ErrInvalidTransactionHash, Message: "queued transaction missing signedTx metadata"}
		}
		hash, err := sendRawTransaction(ctx, b.rpc, signedTx)
		if err != nil {
			return nil, resilience.New(resilience.KindBlockchain, resilience.SubNetwork, resilience.SeverityMedium, true, err.Error(), err)
		}
		return hash, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// ExecuteMetaTransaction invokes the AirChainPay contract's
// executeMetaTransaction using the operator's sponsoring account.
func (m *Manager) ExecuteMetaTransaction(ctx context.Context, chainID uint64, from, to common.Address, amount *big.Int, paymentRef string, deadline *big.Int, sig []byte) (string, error) {
	res, err := m.exec(ctx, "blockchain.execute_meta_transaction", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		data, err := b.airChainPay.Pack("executeMetaTransaction", from, to, amount, paymentRef, deadline, sig)
		if err != nil {
			return nil, &BlockchainError{Code: ErrContractError, Message: err.Error()}
		}
		return m.sendOperatorTx(ctx, b, chainID, data, nil)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// ExecuteTokenMetaTransaction invokes the AirChainPayToken contract's
// executeTokenMetaTransaction variant.
func (m *Manager) ExecuteTokenMetaTransaction(ctx context.Context, chainID uint64, token, from, to common.Address, amount *big.Int, paymentRef string, deadline *big.Int, sig []byte) (string, error) {
	res, err := m.exec(ctx, "blockchain.execute_token_meta_transaction", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		data, err := b.airChainPayToken.Pack("executeTokenMetaTransaction", token, from, to, amount, paymentRef, deadline, sig)
		if err != nil {
			return nil, &BlockchainError{Code: ErrContractError, Message: err.Error()}
		}
		return m.sendOperatorTx(ctx, b, chainID, data, nil)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// ProcessNativePayment calls the payable `pay(recipient, reference)`.
func (m *Manager) ProcessNativePayment(ctx context.Context, chainID uint64, recipient common.Address, paymentRef string, value *big.Int) (string, error) {
	res, err := m.exec(ctx, "blockchain.process_native_payment", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		data, err := b.airChainPay.Pack("pay", recipient, paymentRef)
		if err != nil {
			return nil, &BlockchainError{Code: ErrContractError, Message: err.Error()}
		}
		return m.sendOperatorTx(ctx, b, chainID, data, value)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// ProcessTokenPayment calls processTokenPayment on the token contract.
func (m *Manager) ProcessTokenPayment(ctx context.Context, chainID uint64, token common.Address, amount *big.Int, recipient common.Address, paymentRef string) (string, error) {
	res, err := m.exec(ctx, "blockchain.process_token_payment", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		data, err := b.airChainPayToken.Pack("processTokenPayment", token, amount, recipient, paymentRef)
		if err != nil {
			return nil, &BlockchainError{Code: ErrContractError, Message: err.Error()}
		}
		return m.sendOperatorTx(ctx, b, chainID, data, nil)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (m *Manager) sendOperatorTx(ctx context.Context, b *chainBinding, chainID uint64, data []byte, value *big.Int) (string, error) {
	if m.operator == nil {
		return "", &BlockchainError{Code: ErrOperatorNotConfigured, Message: "operator key not configured"}
	}
	tx, err := m.operator.buildAndSign(ctx, b.rpc, chainID, b.contractAddr, data, value)
	if err != nil {
		return "", err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal signed transaction: %w", err)
	}
	return sendRawTransaction(ctx, b.rpc, "0x"+common.Bytes2Hex(raw))
}

// GetNonce returns nonces(address) from the AirChainPay contract.
func (m *Manager) GetNonce(ctx context.Context, chainID uint64, address common.Address) (*big.Int, error) {
	res, err := m.exec(ctx, "blockchain.get_nonce", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		return m.callView(ctx, b, b.airChainPay, "nonces", []interface{}{address})
	})
	if err != nil {
		return nil, err
	}
	out := res.([]interface{})
	return out[0].(*big.Int), nil
}

// GetPaymentTypehash returns PAYMENT_TYPEHASH().
func (m *Manager) GetPaymentTypehash(ctx context.Context, chainID uint64) ([32]byte, error) {
	res, err := m.exec(ctx, "blockchain.get_payment_typehash", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		return m.callView(ctx, b, b.airChainPay, "PAYMENT_TYPEHASH", nil)
	})
	var zero [32]byte
	if err != nil {
		return zero, err
	}
	return res.([]interface{})[0].([32]byte), nil
}

// GetTokenPaymentTypehash returns TOKEN_PAYMENT_TYPEHASH().
func (m *Manager) GetTokenPaymentTypehash(ctx context.Context, chainID uint64) ([32]byte, error) {
	res, err := m.exec(ctx, "blockchain.get_token_payment_typehash", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		return m.callView(ctx, b, b.airChainPayToken, "TOKEN_PAYMENT_TYPEHASH", nil)
	})
	var zero [32]byte
	if err != nil {
		return zero, err
	}
	return res.([]interface{})[0].([32]byte), nil
}

// GetEIP712Domain returns the 7-tuple from eip712Domain() (EIP-5267).
func (m *Manager) GetEIP712Domain(ctx context.Context, chainID uint64) (*EIP712Domain, error) {
	res, err := m.exec(ctx, "blockchain.get_eip712_domain", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		return m.callView(ctx, b, b.airChainPay, "eip712Domain", nil)
	})
	if err != nil {
		return nil, err
	}
	out := res.([]interface{})
	d := &EIP712Domain{
		Fields:            out[0].([1]byte)[0],
		Name:              out[1].(string),
		Version:           out[2].(string),
		ChainID:           out[3].(*big.Int),
		VerifyingContract: out[4].(common.Address).Hex(),
		Salt:              out[5].([32]byte),
	}
	if ext, ok := out[6].([]*big.Int); ok {
		d.Extensions = ext
	}
	return d, nil
}

// IsTokenSupported reads index 0 of the 6-tuple supportedTokens(token).
func (m *Manager) IsTokenSupported(ctx context.Context, chainID uint64, token common.Address) (bool, error) {
	res, err := m.exec(ctx, "blockchain.is_token_supported", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}
		return m.callView(ctx, b, b.airChainPayToken, "supportedTokens", []interface{}{token})
	})
	if err != nil {
		return false, err
	}
	return res.([]interface{})[0].(bool), nil
}

func (m *Manager) callView(ctx context.Context, b *chainBinding, contractABI ethabi.ABI, method string, args []interface{}) (interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, &BlockchainError{Code: ErrContractError, Message: err.Error()}
	}
	raw, err := ethCall(ctx, b.rpc, b.contractAddr, data)
	if err != nil {
		return nil, resilience.New(resilience.KindBlockchain, resilience.SubRPC, resilience.SeverityMedium, true, err.Error(), err)
	}
	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, &BlockchainError{Code: ErrContractError, Message: fmt.Sprintf("unpack %s: %v", method, err)}
	}
	return out, nil
}

func (m *Manager) requireContract(chainID uint64) (*chainBinding, error) {
	b, err := m.binding(chainID)
	if err != nil {
		return nil, err
	}
	if !b.hasContract {
		return nil, &BlockchainError{Code: ErrContractError, Message: fmt.Sprintf("chain %d has no contract address configured", chainID)}
	}
	return b, nil
}

// GetNetworkStatus aggregates reachability across every configured chain
// (§4.4 operations table, last row).
func (m *Manager) GetNetworkStatus(ctx context.Context) NetworkStatus {
	m.mu.RLock()
	bindings := make(map[uint64]*chainBinding, len(m.bindings))
	for id, b := range m.bindings {
		bindings[id] = b
	}
	m.mu.RUnlock()

	status := NetworkStatus{
		Timestamp:   time.Now().UTC(),
		TotalChains: len(bindings),
		IsHealthy:   true,
	}

	for id, b := range bindings {
		start := time.Now()
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		num, err := blockNumber(cctx, b.rpc)
		cancel()

		cc := ChainCounters{ChainID: id, LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			cc.Reachable = false
			cc.Error = err.Error()
			status.IsHealthy = false
		} else {
			cc.Reachable = true
			cc.LatestBlock = num
		}
		status.Chains = append(status.Chains, cc)
	}

	if status.IsHealthy {
		status.OverallStatus = "healthy"
	} else {
		status.OverallStatus = "degraded"
	}
	return status
}

// ProbeContracts checks reachability of every (chain, contract kind) pair
// for GET /health/contracts.
func (m *Manager) ProbeContracts(ctx context.Context) []ContractProbe {
	m.mu.RLock()
	bindings := make(map[uint64]*chainBinding, len(m.bindings))
	for id, b := range m.bindings {
		bindings[id] = b
	}
	m.mu.RUnlock()

	var probes []ContractProbe
	for id, b := range bindings {
		if !b.hasContract {
			continue
		}
		for _, kind := range []string{string(blockchainabi.AirChainPay), string(blockchainabi.AirChainPayToken)} {
			start := time.Now()
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := blockNumber(cctx, b.rpc)
			cancel()
			probes = append(probes, ContractProbe{
				ChainID:     id,
				Kind:        kind,
				Address:     b.contractAddr.Hex(),
				Reachable:   err == nil,
				LastChecked: time.Now().UTC(),
				LatencyMs:   time.Since(start).Milliseconds(),
				Error:       errString(err),
			})
		}
	}
	return probes
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// SupportedChains returns the configured chain ids this manager serves.
func (m *Manager) SupportedChains() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint64, 0, len(m.bindings))
	for id := range m.bindings {
		ids = append(ids, id)
	}
	return ids
}

// ChainConfig returns the configuration for chainID, if bound.
func (m *Manager) ChainConfig(chainID uint64) (config.ChainConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[chainID]
	if !ok {
		return config.ChainConfig{}, false
	}
	return b.cfg, true
}

// PaymentEventTopic0 is the Keccak256 hash of the Payment event signature,
// used as topic0 when filtering logs (§4.4 "Event decoding").
func PaymentEventTopic0() common.Hash {
	return crypto.Keccak256Hash([]byte(blockchainabi.PaymentEventSignature))
}
