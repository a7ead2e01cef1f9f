package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/airchainpay/relay/internal/blockchain/rpc"
)

func decodeHexUint(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("decode hex uint: %w", err)
	}
	return hexutil.DecodeUint64(s)
}

func decodeHexBig(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode hex big: %w", err)
	}
	b, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func decodeHexString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode hex string: %w", err)
	}
	return s, nil
}

// ethCall performs a read-only eth_call against contract with the given
// ABI-packed calldata and returns the raw return bytes.
func ethCall(ctx context.Context, client rpc.Client, contract common.Address, data []byte) ([]byte, error) {
	callMsg := map[string]interface{}{
		"to":   contract.Hex(),
		"data": hexutil.Encode(data),
	}
	raw, err := client.Call(ctx, "eth_call", callMsg, "latest")
	if err != nil {
		return nil, fmt.Errorf("eth_call: %w", err)
	}
	s, err := decodeHexString(raw)
	if err != nil {
		return nil, err
	}
	return hexutil.Decode(s)
}

// sendRawTransaction submits a signed raw transaction and returns its hash.
func sendRawTransaction(ctx context.Context, client rpc.Client, rawTxHex string) (string, error) {
	raw, err := client.Call(ctx, "eth_sendRawTransaction", rawTxHex)
	if err != nil {
		return "", fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	return decodeHexString(raw)
}

// blockNumber returns the latest block number visible to the node.
func blockNumber(ctx context.Context, client rpc.Client) (uint64, error) {
	raw, err := client.Call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return decodeHexUint(raw)
}

// getLogs executes eth_getLogs with an optional block range and address
// list, returning the raw log entries for the caller to decode.
type rawLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	LogIndex    string   `json:"logIndex"`
	TxHash      string   `json:"transactionHash"`
}

func getLogs(ctx context.Context, client rpc.Client, addresses []common.Address, topics [][]string, fromBlock, toBlock *uint64) ([]rawLog, error) {
	filter := map[string]interface{}{}

	addrStrs := make([]string, len(addresses))
	for i, a := range addresses {
		addrStrs[i] = a.Hex()
	}
	filter["address"] = addrStrs

	if topics != nil {
		filter["topics"] = topics
	}
	if fromBlock != nil {
		filter["fromBlock"] = hexutil.EncodeUint64(*fromBlock)
	} else {
		filter["fromBlock"] = "earliest"
	}
	if toBlock != nil {
		filter["toBlock"] = hexutil.EncodeUint64(*toBlock)
	} else {
		filter["toBlock"] = "latest"
	}

	raw, err := client.Call(ctx, "eth_getLogs", filter)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs: %w", err)
	}
	var logs []rawLog
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	return logs, nil
}
