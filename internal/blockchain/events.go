package blockchain

import (
	"context"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// GetContractEvents retrieves and decodes Payment events emitted by the
// contract bound on chainID, across both AirChainPay and AirChainPayToken
// (they emit the identical Payment(address,address,uint256,string,bool)
// signature from the same deployed address, per the spec's data model).
// Malformed log entries are skipped, not fatal, matching §4.4's event
// decoding note.
func (m *Manager) GetContractEvents(ctx context.Context, chainID uint64, fromBlock, toBlock *uint64) ([]PaymentEvent, error) {
	res, err := m.exec(ctx, "blockchain.get_contract_events", func(ctx context.Context) (interface{}, error) {
		b, err := m.requireContract(chainID)
		if err != nil {
			return nil, err
		}

		topic0 := PaymentEventTopic0().Hex()
		logs, err := getLogs(ctx, b.rpc, []common.Address{b.contractAddr}, [][]string{{topic0}}, fromBlock, toBlock)
		if err != nil {
			return nil, err
		}

		events := make([]PaymentEvent, 0, len(logs))
		for _, l := range logs {
			ev, ok := decodePaymentLog(b.airChainPay, l, m.log)
			if !ok {
				continue
			}
			events = append(events, ev)
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]PaymentEvent), nil
}

// decodePaymentLog decodes one Payment log entry: topics[1]/topics[2] are
// the indexed from/to addresses, and Data holds the ABI-encoded
// (uint256 amount, string paymentReference, bool isRelayed) tuple.
func decodePaymentLog(contractABI abi.ABI, l rawLog, log *zap.Logger) (PaymentEvent, bool) {
	if len(l.Topics) < 3 {
		if log != nil {
			log.Warn("skipping malformed payment log: not enough topics", zap.Int("topics", len(l.Topics)))
		}
		return PaymentEvent{}, false
	}

	event, err := contractABI.EventByID(common.HexToHash(l.Topics[0]))
	if err != nil {
		return PaymentEvent{}, false
	}

	data, err := hexDecode(l.Data)
	if err != nil {
		return PaymentEvent{}, false
	}

	unpacked, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return PaymentEvent{}, false
	}
	if len(unpacked) < 3 {
		return PaymentEvent{}, false
	}

	amount, ok := unpacked[0].(*big.Int)
	if !ok {
		return PaymentEvent{}, false
	}
	reference, ok := unpacked[1].(string)
	if !ok {
		return PaymentEvent{}, false
	}
	relayed, ok := unpacked[2].(bool)
	if !ok {
		return PaymentEvent{}, false
	}

	blockNum, _ := strconv.ParseUint(strings.TrimPrefix(l.BlockNumber, "0x"), 16, 64)
	logIdx, _ := strconv.ParseUint(strings.TrimPrefix(l.LogIndex, "0x"), 16, 64)

	return PaymentEvent{
		From:             common.HexToAddress(l.Topics[1]).Hex(),
		To:               common.HexToAddress(l.Topics[2]).Hex(),
		Amount:           amount,
		PaymentReference: reference,
		IsRelayed:        relayed,
		TxHash:           l.TxHash,
		BlockNumber:      blockNum,
		LogIndex:         uint(logIdx),
	}, true
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
