package decode

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/txguard/scanner/internal/evmtypes"
)

// decodeContractABI is decoder Stage C: a verified contract ABI resolved
// earlier in the fan-out (e.g. from Etherscan-style metadata) is matched
// against the calldata's selector. Returns (nil, nil) when no ABI is
// available or the selector isn't one of its methods, so the pipeline
// falls through to Stage D.
func decodeContractABI(ctx DecodeContext, to string, data []byte) (*evmtypes.DecodedCall, error) {
	if ctx.ContractABIs == nil || len(data) < 4 {
		return nil, nil
	}
	abiJSON, ok := ctx.ContractABIs.ABIFor(to)
	if !ok || abiJSON == "" {
		return nil, nil
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, nil
	}

	var sel [4]byte
	copy(sel[:], data[:4])

	method, err := parsed.MethodById(sel[:])
	if err != nil || method == nil {
		return nil, nil
	}

	args, err := unpackToArgs(method.Inputs, data[4:])
	if err != nil {
		return nil, nil
	}

	sig := method.Sig
	typeStrs, _ := argTypeStrings(sig)

	return &evmtypes.DecodedCall{
		Selector:     selectorHex(sel),
		Signature:    sig,
		FunctionName: method.RawName,
		Source:       evmtypes.SourceContractABI,
		Standard:     inferStandardFromName(method.RawName, typeStrs),
		Args:         args,
		ArgNames:     args.Names(),
		ArgTypes:     typeStrs,
	}, nil
}

// inferStandardFromName recognizes the ERC-20/EIP-2612 method shapes even
// when they arrive via a verified contract ABI rather than the built-in
// Stage A table (e.g. a token with a nonstandard name alongside the
// standard selector, or extra overloaded methods).
func inferStandardFromName(name string, types []string) evmtypes.Standard {
	switch {
	case name == "approve" && len(types) == 2:
		return evmtypes.StandardERC20
	case name == "transfer" && len(types) == 2:
		return evmtypes.StandardERC20
	case name == "transferFrom" && len(types) == 3:
		return evmtypes.StandardERC20
	case name == "permit" && len(types) == 7:
		return evmtypes.StandardEIP2612
	}
	return evmtypes.StandardNone
}
