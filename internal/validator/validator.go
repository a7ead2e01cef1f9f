// Package validator implements the transaction validator (§4.1): it
// rejects malformed or policy-violating raw signed transactions before
// they reach the queue.
package validator

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/airchainpay/relay/internal/config"
	"github.com/airchainpay/relay/internal/ratelimit"
)

// Machine-readable error kinds surfaced over HTTP (§7, §8 scenario 3).
// KindInvalidChain lets a caller distinguish "resubmit on a different
// chain" from every other validation failure without parsing message text.
const (
	KindValidationFailed = "VALIDATION_FAILED"
	KindInvalidChain     = "INVALID_CHAIN"
)

// Result is the aggregate outcome of validate() (§4.1).
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
	// Kind classifies the failure for HTTP callers; it is
	// KindValidationFailed unless a more specific rule (currently just
	// chain_id) set it otherwise.
	Kind string
}

// chain gas-limit tiers, named verbatim in §4.1 rule 5.
var (
	baseEthChainIDs = map[uint64]bool{84532: true, 17000: true}
	coreChainIDs    = map[uint64]bool{1114: true}
	liskChainIDs    = map[uint64]bool{4202: true}
)

const (
	minHexLen       = 66
	maxRawTxChars   = 128000
	defaultMaxGas   = 1_000_000
	baseEthMaxGas   = 500_000
	coreMaxGas      = 2_000_000
	liskMaxGas      = 1_500_000
	minAmountWei    = 1
)

var maxAmountWei = new(big.Int).Exp(big.NewInt(10), big.NewInt(21), nil) // 10^21 wei

// Validator holds the shared, process-wide rate limiter and a reference to
// the current config snapshot.
type Validator struct {
	cfg     *config.Manager
	limiter *ratelimit.Limiter
}

func New(cfg *config.Manager, limiter *ratelimit.Limiter) *Validator {
	return &Validator{cfg: cfg, limiter: limiter}
}

// Validate runs every check named in §4.1, aggregating all failures rather
// than short-circuiting on the first one.
func (v *Validator) Validate(signedTxHex string, chainID uint64) Result {
	res := Result{Valid: true, Kind: KindValidationFailed}
	fail := func(rule, msg string) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", rule, msg))
	}
	warn := func(msg string) {
		res.Warnings = append(res.Warnings, msg)
	}

	if err := checkFormat(signedTxHex); err != nil {
		fail("format", err.Error())
		// Format failure makes every further structural check meaningless.
		return res
	}

	tx, decodeErr := decodeLegacyTx(signedTxHex)

	effectiveChainID := chainID
	if decodeErr == nil && tx.ChainId() != nil && tx.ChainId().Sign() != 0 {
		effectiveChainID = tx.ChainId().Uint64()
	} else {
		warn("could not extract chain id from transaction; using submitted/default chain id")
	}

	cfg := v.cfg.Current()
	if len(cfg.SupportedChains) > 0 {
		if _, ok := cfg.SupportedChains[effectiveChainID]; !ok {
			fail("chain_id", fmt.Sprintf("chain id %d is not supported", effectiveChainID))
			res.Kind = KindInvalidChain
		}
	}

	if len(signedTxHex) > maxRawTxChars {
		fail("size", fmt.Sprintf("transaction too large: %d bytes (max %d)", len(signedTxHex), maxRawTxChars))
	}

	if decodeErr != nil {
		fail("decode", fmt.Sprintf("failed to decode as EIP-155 legacy transaction: %v", decodeErr))
		// Nothing below this point can be checked without a decoded tx.
		v.checkRateLimit(fail)
		return res
	}

	if err := checkSignatureShape(tx, effectiveChainID); err != nil {
		fail("signature", err.Error())
	}

	if err := checkGasLimit(tx, effectiveChainID, cfg); err != nil {
		fail("gas_limit", err.Error())
	}

	warnNonce(tx, warn)

	if err := checkContractPin(tx, effectiveChainID, cfg); err != nil {
		fail("contract_interaction", err.Error())
	}

	if err := checkAmount(tx); err != nil {
		fail("amount", err.Error())
	}

	v.checkRateLimit(fail)

	return res
}

func (v *Validator) checkRateLimit(fail func(rule, msg string)) {
	if v.limiter == nil {
		return
	}
	if !v.limiter.Allow("global") {
		fail("rate_limit", "rate limit exceeded")
	}
}

// invalidFormatMsg is the literal message the original Rust relay returns
// for every malformed-raw-transaction case (§8 scenario 2); callers and
// tests may rely on this exact substring appearing in the response body.
const invalidFormatMsg = "Invalid raw transaction: must be 0x-prefixed, even-length, valid hex"

func checkFormat(raw string) error {
	if raw == "" {
		return fmt.Errorf("%s (empty)", invalidFormatMsg)
	}
	if !strings.HasPrefix(raw, "0x") {
		return fmt.Errorf("%s (missing 0x prefix)", invalidFormatMsg)
	}
	if len(raw) < minHexLen {
		return fmt.Errorf("%s (too short)", invalidFormatMsg)
	}
	without := strings.TrimPrefix(raw, "0x")
	if len(without)%2 != 0 {
		return fmt.Errorf("%s (odd length)", invalidFormatMsg)
	}
	if _, err := hex.DecodeString(without); err != nil {
		return fmt.Errorf("%s: %v", invalidFormatMsg, err)
	}
	return nil
}

// decodeLegacyTx decodes the raw hex as an RLP-encoded EIP-155 legacy
// transaction using go-ethereum's binary codec, which dispatches to the
// legacy RLP decoder whenever the first byte is >= 0xc0.
func decodeLegacyTx(raw string) (*types.Transaction, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	if tx.Type() != types.LegacyTxType {
		return nil, fmt.Errorf("typed transaction envelope (type %d) is not a legacy transaction", tx.Type())
	}
	return tx, nil
}

// checkSignatureShape validates the trailing signature's v value against
// the plain and EIP-155-encoded forms named in §4.1 rule 4.
func checkSignatureShape(tx *types.Transaction, chainID uint64) error {
	v, r, s := tx.RawSignatureValues()
	if r == nil || s == nil || r.Sign() == 0 || s.Sign() == 0 {
		return fmt.Errorf("missing or zero-valued signature")
	}
	if v == nil {
		return fmt.Errorf("missing signature v value")
	}
	vu := v.Uint64()
	switch vu {
	case 0, 1, 27, 28:
		return nil
	default:
		lo := 35 + 2*chainID
		hi := lo + 1
		if vu == lo || vu == hi {
			return nil
		}
	}
	return fmt.Errorf("invalid signature v value %d", vu)
}

func checkGasLimit(tx *types.Transaction, chainID uint64, cfg *config.Config) error {
	limit := defaultMaxGas
	switch {
	case baseEthChainIDs[chainID]:
		limit = baseEthMaxGas
	case coreChainIDs[chainID]:
		limit = coreMaxGas
	case liskChainIDs[chainID]:
		limit = liskMaxGas
	}
	if cc, ok := cfg.SupportedChains[chainID]; ok && cc.MaxGasLimit > 0 {
		limit = int(cc.MaxGasLimit)
	}

	gas := tx.Gas()
	if gas == 0 {
		return fmt.Errorf("gas limit cannot be zero")
	}
	if gas > uint64(limit) {
		return fmt.Errorf("gas limit %d exceeds max allowed %d", gas, limit)
	}
	return nil
}

// warnNonce only records a warning: the relay does not own accounts, so
// nonce validation against chain state cannot be authoritative (§4.1).
func warnNonce(tx *types.Transaction, warn func(string)) {
	_ = tx.Nonce() // extractable; nothing further to assert without chain state.
	warn("nonce not verified against on-chain state")
}

func checkContractPin(tx *types.Transaction, chainID uint64, cfg *config.Config) error {
	cc, ok := cfg.SupportedChains[chainID]
	if !ok || cc.ContractAddress == "" {
		return nil
	}
	to := tx.To()
	if to == nil {
		return fmt.Errorf("transaction has no 'to' address but chain requires contract %s", cc.ContractAddress)
	}
	if !strings.EqualFold(to.Hex(), cc.ContractAddress) {
		return fmt.Errorf("'to' address %s does not match expected contract address %s", to.Hex(), cc.ContractAddress)
	}
	return nil
}

func checkAmount(tx *types.Transaction) error {
	value := tx.Value()
	if value == nil || value.Sign() == 0 {
		// Zero-value calls (pure contract invocations) are common and not
		// bounded by the native-amount sanity rule.
		return nil
	}
	if value.Sign() < 0 {
		return fmt.Errorf("negative amount")
	}
	if value.Cmp(big.NewInt(minAmountWei)) < 0 {
		return fmt.Errorf("amount too small: %s wei", value.String())
	}
	if value.Cmp(maxAmountWei) > 0 {
		return fmt.Errorf("amount too large: %s wei", value.String())
	}
	return nil
}
