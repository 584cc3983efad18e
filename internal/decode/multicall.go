package decode

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/txguard/scanner/internal/evmtypes"
)

// decodeMulticall decodes a multicall(bytes[]) / multicall(uint256,bytes[])
// payload (NFT position manager style) by recursing the top-level Decode
// entry point over each inner call, subject to the recursion bound. It
// returns one InnerCall Value per element of the bytes[] array, in order.
func decodeMulticall(ctx DecodeContext, data []byte, hasDeadline bool) ([]evmtypes.Value, error) {
	var calls [][]byte

	if hasDeadline {
		deadlineT, _ := abi.NewType("uint256", "", nil)
		callsT, _ := abi.NewType("bytes[]", "", nil)
		args := abi.Arguments{
			{Name: "deadline", Type: deadlineT},
			{Name: "data", Type: callsT},
		}
		vals, err := args.Unpack(data)
		if err != nil || len(vals) != 2 {
			return nil, ErrUnresolvedSelector
		}
		cs, ok := vals[1].([][]byte)
		if !ok {
			return nil, ErrUnresolvedSelector
		}
		calls = cs
	} else {
		callsT, _ := abi.NewType("bytes[]", "", nil)
		args := abi.Arguments{{Name: "data", Type: callsT}}
		vals, err := args.Unpack(data)
		if err != nil || len(vals) != 1 {
			return nil, ErrUnresolvedSelector
		}
		cs, ok := vals[0].([][]byte)
		if !ok {
			return nil, ErrUnresolvedSelector
		}
		calls = cs
	}

	child := ctx.Child()
	out := make([]evmtypes.Value, len(calls))
	for i, inner := range calls {
		if child.ExceedsLimit() {
			out[i] = evmtypes.BytesValue("0x" + common.Bytes2Hex(inner))
			continue
		}
		dc, err := Decode(child, inner)
		if err != nil || dc == nil {
			out[i] = evmtypes.BytesValue("0x" + common.Bytes2Hex(inner))
			continue
		}
		out[i] = evmtypes.InnerCallValue(dc)
	}
	return out, nil
}
