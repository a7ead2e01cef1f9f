// Package abi bundles the contract ABI JSON files at compile time (§9
// redesign note: "Dynamic contract ABIs loaded at build" → bundle at
// compile time, construct bindings at startup, treat as immutable).
package abi

import (
	"bytes"
	_ "embed"
	"io"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

//go:embed airchainpay.json
var airChainPayJSON []byte

//go:embed airchainpaytoken.json
var airChainPayTokenJSON []byte

// Kind names one of the two logical contract kinds bound to the same
// deployed address (§4.4 "Construction").
type Kind string

const (
	AirChainPay      Kind = "AirChainPay"
	AirChainPayToken Kind = "AirChainPayToken"
)

// PaymentEventSignature is the human-readable event signature whose
// Keccak256 hash is topic0 for every Payment log (§4.4 "Event decoding").
const PaymentEventSignature = "Payment(address,address,uint256,string,bool)"

// Parse returns the parsed ABI for kind.
func Parse(kind Kind) (ethabi.ABI, error) {
	switch kind {
	case AirChainPay:
		return ethabi.JSON(bytesReader(airChainPayJSON))
	case AirChainPayToken:
		return ethabi.JSON(bytesReader(airChainPayTokenJSON))
	default:
		return ethabi.ABI{}, errUnknownKind(kind)
	}
}

type unknownKindError string

func (e unknownKindError) Error() string { return "abi: unknown contract kind " + string(e) }

func errUnknownKind(kind Kind) error { return unknownKindError(kind) }
