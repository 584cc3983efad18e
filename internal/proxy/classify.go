package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/txguard/scanner/internal/chain"
	"github.com/txguard/scanner/internal/evmtypes"
)

// interceptedMethods are the only JSON-RPC methods this proxy scans before
// forwarding; every other method passes through verbatim.
var interceptedMethods = map[string]bool{
	"eth_sendTransaction":    true,
	"eth_sendRawTransaction": true,
}

func isIntercepted(method string) bool {
	return interceptedMethods[method]
}

// sendTransactionParam mirrors the object shape eth_sendTransaction's
// params[0] carries. ChainID, when present, is a 0x-prefixed quantity.
type sendTransactionParam struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Data    string `json:"data"`
	Input   string `json:"input"`
	Value   string `json:"value"`
	ChainID string `json:"chainId"`
}

// coerceSendTransaction extracts params[0] of an eth_sendTransaction call
// into a CalldataInput. chainID is left empty on the returned input when
// the param carries none — the caller resolves it from the flag/upstream
// fallback chain.
func coerceSendTransaction(params json.RawMessage) (*evmtypes.CalldataInput, error) {
	var args []sendTransactionParam
	if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
		return nil, fmt.Errorf("proxy: eth_sendTransaction requires a params[0] object")
	}
	p := args[0]
	data := p.Data
	if data == "" {
		data = p.Input
	}
	return evmtypes.NewCalldataInput(p.To, p.From, data, p.Value, p.ChainID)
}

// coerceRawTransaction decodes a signed eth_sendRawTransaction payload and
// recovers its sender, to, value, data, and chain id via signature
// recovery.
func coerceRawTransaction(params json.RawMessage) (*evmtypes.CalldataInput, error) {
	var args []string
	if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
		return nil, fmt.Errorf("proxy: eth_sendRawTransaction requires a params[0] hex string")
	}

	raw, err := hexutil.Decode(args[0])
	if err != nil {
		return nil, fmt.Errorf("proxy: malformed raw transaction: %w", err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("proxy: undecodable raw transaction: %w", err)
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}

	from := ""
	if tx.ChainId() != nil && tx.ChainId().Sign() > 0 {
		signer := types.LatestSignerForChainID(tx.ChainId())
		if sender, err := types.Sender(signer, tx); err == nil {
			from = sender.Hex()
		}
	}

	chainID := ""
	if tx.ChainId() != nil && tx.ChainId().Sign() > 0 {
		chainID = tx.ChainId().String()
	}

	return evmtypes.NewCalldataInput(to, from, hexutil.Encode(tx.Data()), tx.Value().String(), chainID)
}

// resolveChain picks the effective chain in priority order: the calldata's
// own chain field, the proxy's configured flag chain, then the upstream's
// probed chain id. Returns ok=false when none resolve.
func resolveChain(calldataChain, flagChain, upstreamChain chain.Chain) (chain.Chain, bool) {
	if calldataChain.Valid() {
		return calldataChain, true
	}
	if flagChain.Valid() {
		return flagChain, true
	}
	if upstreamChain.Valid() {
		return upstreamChain, true
	}
	return "", false
}
