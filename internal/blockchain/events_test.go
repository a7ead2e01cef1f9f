package blockchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blockchainabi "github.com/airchainpay/relay/internal/blockchain/abi"
)

func TestDecodePaymentLog_RoundTrip(t *testing.T) {
	contractABI, err := blockchainabi.Parse(blockchainabi.AirChainPay)
	require.NoError(t, err)

	event, ok := contractABI.Events["Payment"]
	require.True(t, ok)

	wantAmount := big.NewInt(123456789)
	wantRef := "invoice-42"
	wantRelayed := true

	packed, err := event.Inputs.NonIndexed().Pack(wantAmount, wantRef, wantRelayed)
	require.NoError(t, err)

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	l := rawLog{
		Topics: []string{
			PaymentEventTopic0().Hex(),
			from.Hash().Hex(),
			to.Hash().Hex(),
		},
		Data:        hexutil.Encode(packed),
		BlockNumber: "0x64",
		LogIndex:    "0x3",
		TxHash:      "0xabc123",
	}

	ev, ok := decodePaymentLog(contractABI, l, nil)
	require.True(t, ok)

	assert.Equal(t, from.Hex(), ev.From)
	assert.Equal(t, to.Hex(), ev.To)
	assert.Equal(t, 0, wantAmount.Cmp(ev.Amount))
	assert.Equal(t, wantRef, ev.PaymentReference)
	assert.Equal(t, wantRelayed, ev.IsRelayed)
	assert.Equal(t, uint64(0x64), ev.BlockNumber)
	assert.Equal(t, uint(0x3), ev.LogIndex)
	assert.Equal(t, "0xabc123", ev.TxHash)
}

func TestDecodePaymentLog_SkipsLogWithTooFewTopics(t *testing.T) {
	contractABI, err := blockchainabi.Parse(blockchainabi.AirChainPay)
	require.NoError(t, err)

	l := rawLog{Topics: []string{PaymentEventTopic0().Hex()}, Data: "0x"}
	_, ok := decodePaymentLog(contractABI, l, nil)
	assert.False(t, ok, "malformed logs must be skipped, not fatal")
}

func TestDecodePaymentLog_SkipsUnknownTopic0(t *testing.T) {
	contractABI, err := blockchainabi.Parse(blockchainabi.AirChainPay)
	require.NoError(t, err)

	l := rawLog{
		Topics: []string{
			common.HexToHash("0xdeadbeef").Hex(),
			common.HexToAddress("0x1").Hash().Hex(),
			common.HexToAddress("0x2").Hash().Hex(),
		},
		Data: "0x",
	}
	_, ok := decodePaymentLog(contractABI, l, nil)
	assert.False(t, ok)
}

func TestPaymentEventTopic0_MatchesSignatureHash(t *testing.T) {
	got := PaymentEventTopic0()
	assert.Len(t, got.Bytes(), 32)
	contractABI, err := blockchainabi.Parse(blockchainabi.AirChainPay)
	require.NoError(t, err)
	assert.Equal(t, contractABI.Events["Payment"].ID, got)
	// Stable across calls (pure function of the signature string).
	assert.Equal(t, got, PaymentEventTopic0())
}
