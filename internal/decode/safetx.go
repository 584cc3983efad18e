package decode

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/txguard/scanner/internal/evmtypes"
)

// safeExecTransactionSignature is the canonical Gnosis Safe execTransaction
// signature. operation 0 = CALL, 1 = DELEGATECALL.
const safeExecTransactionSignature = "execTransaction(address,uint256,bytes,uint8,uint256,uint256,uint256,address,address,bytes)"

// decodeSafeExecTransaction decodes a Safe execTransaction(...) call and
// recurses the decoder into its embedded `data` payload (subject to the
// recursion bound), so a signer sees what the Safe would actually execute,
// not just the multisig wrapper.
func decodeSafeExecTransaction(ctx DecodeContext, data []byte) (*evmtypes.DecodedCall, error) {
	method, err := methodFromSignature(safeExecTransactionSignature)
	if err != nil {
		return nil, nil
	}

	args, err := unpackToArgs(method.Inputs, data)
	if err != nil {
		return nil, nil
	}

	typeStrs, _ := argTypeStrings(safeExecTransactionSignature)
	dc := &evmtypes.DecodedCall{
		Selector:     selectorHex(Selector4(safeExecTransactionSignature)),
		Signature:    safeExecTransactionSignature,
		FunctionName: "execTransaction",
		Source:       evmtypes.SourceLocalSelector,
		Args:         args,
		ArgNames:     args.Names(),
		ArgTypes:     typeStrs,
	}

	innerData, ok := args.ByName("arg2")
	if !ok || innerData.Kind != evmtypes.KindBytes {
		return dc, nil
	}

	child := ctx.Child()
	if child.ExceedsLimit() {
		return dc, nil
	}

	raw := common.FromHex(innerData.Hex)
	if inner, err := Decode(child, raw); err == nil && inner != nil {
		// Surface the unwrapped call as a trailing "decodedData" arg so
		// callers can render "Safe wraps: <inner signature>" without
		// re-decoding the payload themselves.
		wrapped := evmtypes.InnerCallValue(inner)
		names := append(append([]string{}, args.Names()...), "decodedData")
		values := append(append([]evmtypes.Value{}, args.Values()...), wrapped)
		dc.Args = evmtypes.NewNamedArgs(names, values)
	}

	return dc, nil
}
