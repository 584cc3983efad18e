package decode

import (
	"math/big"

	"github.com/txguard/scanner/internal/evmtypes"
)

// knownSignature is one entry of the built-in ABI: ERC-20 (approve,
// transfer, transferFrom), EIP-2612 (permit), and common wrapped-token
// methods (deposit, withdraw). argNames carries the real Solidity
// parameter names so the intent builder and the unlimited-approval check
// can look arguments up by name rather than by synthesized position.
type knownSignature struct {
	signature string
	standard  evmtypes.Standard
	argNames  []string
}

var knownSignatures = []knownSignature{
	{"approve(address,uint256)", evmtypes.StandardERC20, []string{"spender", "amount"}},
	{"transfer(address,uint256)", evmtypes.StandardERC20, []string{"recipient", "amount"}},
	{"transferFrom(address,address,uint256)", evmtypes.StandardERC20, []string{"sender", "recipient", "amount"}},
	{"permit(address,address,uint256,uint256,uint8,bytes32,bytes32)", evmtypes.StandardEIP2612,
		[]string{"owner", "spender", "value", "deadline", "v", "r", "s"}},
	{"deposit()", evmtypes.StandardNone, nil},
	{"withdraw(uint256)", evmtypes.StandardNone, []string{"amount"}},
}

// knownMethods indexes knownSignatures by their 4-byte selector, built once.
var knownMethods = buildKnownMethods()

type knownMethod struct {
	signature string
	standard  evmtypes.Standard
	argNames  []string
}

func buildKnownMethods() map[[4]byte]knownMethod {
	m := make(map[[4]byte]knownMethod, len(knownSignatures))
	for _, ks := range knownSignatures {
		m[Selector4(ks.signature)] = knownMethod{signature: ks.signature, standard: ks.standard, argNames: ks.argNames}
	}
	return m
}

// decodeKnownABI is decoder Stage A. It returns (nil, nil) — not an error —
// when the selector isn't one of the built-in methods, so the pipeline
// falls through to Stage B.
func decodeKnownABI(data []byte) (*evmtypes.DecodedCall, error) {
	if len(data) < 4 {
		return nil, nil
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	km, ok := knownMethods[sel]
	if !ok {
		return nil, nil
	}

	method, err := methodFromNamedSignature(km.signature, km.argNames)
	if err != nil {
		return nil, nil
	}

	args, err := unpackToArgs(method.Inputs, data[4:])
	if err != nil {
		// A known selector with undecodable calldata is a decode failure,
		// not an unresolved selector: let the caller fall back further.
		return nil, nil
	}

	typeStrs, _ := argTypeStrings(km.signature)

	dc := &evmtypes.DecodedCall{
		Selector:     selectorHex(sel),
		Signature:    km.signature,
		FunctionName: functionName(km.signature),
		Source:       evmtypes.SourceKnownABI,
		Standard:     km.standard,
		Args:         args,
		ArgNames:     args.Names(),
		ArgTypes:     typeStrs,
	}
	return dc, nil
}

// maxUint256 is 2^256 - 1, the canonical "unlimited" ERC-20/EIP-2612
// approval amount.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxUint256 exposes the unlimited-approval sentinel for the analyzer.
func MaxUint256() *big.Int { return new(big.Int).Set(maxUint256) }
