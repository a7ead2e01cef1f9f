package blockchain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/airchainpay/relay/internal/blockchain/rpc"
)

// Operator is the relay's own gas-sponsoring account, used only for the
// explicit contract-invocation operations (executeMetaTransaction,
// pay, processTokenPayment, …). It never touches the end user's signing
// key — that stays entirely inside the out-of-scope wallet-core binary.
//
// This resolves the open question in §9 ("whether meta-transaction
// execution is ever invoked by the core"): it is invoked, but only when
// an operator key is explicitly configured, which lets an operator choose
// to run the relay in raw-broadcast-only mode by omitting it.
type Operator struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewOperator loads the operator key from a hex-encoded ECDSA private key
// (no 0x prefix required). An empty string disables operator-signed calls.
func NewOperator(hexKey string) (*Operator, error) {
	if hexKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}
	return &Operator{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (o *Operator) Address() common.Address { return o.address }

// buildAndSign assembles a legacy EIP-155 transaction calling `to` with
// `data` and `value`, fetching nonce/gas price/gas limit from the chain's
// RPC client, then signs it with the operator key. This mirrors the
// Build → Estimate → Sign pipeline in the teacher's
// src/chainadapter/ethereum/adapter.go, narrowed to the operator's own
// account instead of a caller-supplied KeySource.
func (o *Operator) buildAndSign(ctx context.Context, client rpc.Client, chainID uint64, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	if o == nil {
		return nil, &BlockchainError{Code: ErrOperatorNotConfigured, Message: "no operator key configured for contract-invocation operations"}
	}
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := getTransactionCount(ctx, client, o.address)
	if err != nil {
		return nil, err
	}
	gasPrice, err := getGasPrice(ctx, client)
	if err != nil {
		return nil, err
	}
	gasLimit, err := estimateGas(ctx, client, o.address, to, value, data)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signer := types.NewEIP155Signer(new(big.Int).SetUint64(chainID))
	signed, err := types.SignTx(tx, signer, o.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign operator transaction: %w", err)
	}
	return signed, nil
}

func getTransactionCount(ctx context.Context, client rpc.Client, addr common.Address) (uint64, error) {
	raw, err := client.Call(ctx, "eth_getTransactionCount", addr.Hex(), "pending")
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount: %w", err)
	}
	return decodeHexUint(raw)
}

func getGasPrice(ctx context.Context, client rpc.Client) (*big.Int, error) {
	raw, err := client.Call(ctx, "eth_gasPrice")
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	return decodeHexBig(raw)
}

func estimateGas(ctx context.Context, client rpc.Client, from, to common.Address, value *big.Int, data []byte) (uint64, error) {
	callMsg := map[string]interface{}{
		"from":  from.Hex(),
		"to":    to.Hex(),
		"value": hexutil.EncodeBig(value),
		"data":  hexutil.Encode(data),
	}
	raw, err := client.Call(ctx, "eth_estimateGas", callMsg)
	if err != nil {
		return 0, fmt.Errorf("eth_estimateGas: %w", err)
	}
	return decodeHexUint(raw)
}
