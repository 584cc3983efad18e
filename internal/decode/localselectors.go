package decode

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/txguard/scanner/internal/evmtypes"
)

// localRoute names the specialized decoder a Stage B selector dispatches
// to, beyond plain ABI unpacking.
type localRoute int

const (
	routePlain localRoute = iota
	routeUniversalRouterExecute
	routeUniversalRouterExecuteDeadline
	routeMulticall
	routeMulticallDeadline
	routeSafeExecTransaction
	routeMultiSend
)

type localSelectorEntry struct {
	signature string
	standard  evmtypes.Standard
	route     localRoute
	argNames  []string
}

// localSelectors is the Stage B fallback table: well-known router/aggregator
// methods that aren't in the Stage A built-in ABI but are common enough
// that decoding them shouldn't require a network round trip to a contract
// ABI or signature database. argNames carries real parameter names for the
// entries the intent builder or analyzer look arguments up by name for;
// entries it only ever renders generically leave it nil.
var localSelectors = []localSelectorEntry{
	// Universal Router
	{"execute(bytes,bytes[])", evmtypes.StandardNone, routeUniversalRouterExecute, []string{"commands", "inputs"}},
	{"execute(bytes,bytes[],uint256)", evmtypes.StandardNone, routeUniversalRouterExecuteDeadline, []string{"commands", "inputs", "deadline"}},

	// Uniswap V2 Router02
	{"swapExactTokensForTokens(uint256,uint256,address[],address,uint256)", evmtypes.StandardNone, routePlain,
		[]string{"amountIn", "amountOutMin", "path", "to", "deadline"}},
	{"swapTokensForExactTokens(uint256,uint256,address[],address,uint256)", evmtypes.StandardNone, routePlain,
		[]string{"amountOut", "amountInMax", "path", "to", "deadline"}},
	{"swapExactETHForTokens(uint256,address[],address,uint256)", evmtypes.StandardNone, routePlain,
		[]string{"amountOutMin", "path", "to", "deadline"}},
	{"swapETHForExactTokens(uint256,address[],address,uint256)", evmtypes.StandardNone, routePlain,
		[]string{"amountOut", "path", "to", "deadline"}},
	{"swapExactTokensForETH(uint256,uint256,address[],address,uint256)", evmtypes.StandardNone, routePlain,
		[]string{"amountIn", "amountOutMin", "path", "to", "deadline"}},
	{"swapTokensForExactETH(uint256,uint256,address[],address,uint256)", evmtypes.StandardNone, routePlain,
		[]string{"amountOut", "amountInMax", "path", "to", "deadline"}},
	{"addLiquidity(address,address,uint256,uint256,uint256,uint256,address,uint256)", evmtypes.StandardNone, routePlain, nil},
	{"addLiquidityETH(address,uint256,uint256,uint256,address,uint256)", evmtypes.StandardNone, routePlain, nil},
	{"removeLiquidity(address,address,uint256,uint256,uint256,address,uint256)", evmtypes.StandardNone, routePlain, nil},
	{"removeLiquidityETH(address,uint256,uint256,uint256,address,uint256)", evmtypes.StandardNone, routePlain, nil},

	// Uniswap V3 SwapRouter02 + NonfungiblePositionManager
	{"exactInputSingle((address,address,uint24,address,uint256,uint256,uint256,uint160))", evmtypes.StandardNone, routePlain, nil},
	{"exactOutputSingle((address,address,uint24,address,uint256,uint256,uint160))", evmtypes.StandardNone, routePlain, nil},
	{"exactInput((bytes,address,uint256,uint256,uint256))", evmtypes.StandardNone, routePlain, nil},
	{"exactOutput((bytes,address,uint256,uint256,uint256))", evmtypes.StandardNone, routePlain, nil},
	{"mint((address,address,uint24,int24,int24,uint256,uint256,uint256,uint256,address,uint256))", evmtypes.StandardNone, routePlain, nil},
	{"increaseLiquidity((uint256,uint256,uint256,uint256,uint256,uint256))", evmtypes.StandardNone, routePlain, nil},
	{"decreaseLiquidity((uint256,uint128,uint256,uint256,uint256))", evmtypes.StandardNone, routePlain, nil},
	{"collect((uint256,address,uint128,uint128))", evmtypes.StandardNone, routePlain, nil},
	{"multicall(bytes[])", evmtypes.StandardNone, routeMulticall, nil},
	{"multicall(uint256,bytes[])", evmtypes.StandardNone, routeMulticallDeadline, nil},

	// Permit2
	{"permit(address,((address,uint160,uint48,uint48),address,uint256),bytes)", evmtypes.StandardNone, routePlain, nil},
	{"permitTransferFrom(((address,uint256),uint256,uint256),(address,uint256),address,bytes)", evmtypes.StandardNone, routePlain, nil},

	// Safe / Gnosis Safe
	{safeExecTransactionSignature, evmtypes.StandardNone, routeSafeExecTransaction, nil},
	{"multiSend(bytes)", evmtypes.StandardNone, routeMultiSend, nil},
	{"approveHash(bytes32)", evmtypes.StandardNone, routePlain, nil},

	// 1inch AggregationRouter
	{"unoswap(address,uint256,uint256,uint256[])", evmtypes.StandardNone, routePlain, nil},
	{"swap(address,(address,address,address,address,uint256,uint256,uint256),bytes)", evmtypes.StandardNone, routePlain, nil},

	// ERC-721 / ERC-1155
	{"safeTransferFrom(address,address,uint256)", evmtypes.StandardNone, routePlain, []string{"from", "to", "tokenId"}},
	{"safeTransferFrom(address,address,uint256,bytes)", evmtypes.StandardNone, routePlain, []string{"from", "to", "tokenId", "data"}},
	{"setApprovalForAll(address,bool)", evmtypes.StandardNone, routePlain, []string{"operator", "approved"}},
	{"safeBatchTransferFrom(address,address,uint256[],uint256[],bytes)", evmtypes.StandardNone, routePlain,
		[]string{"from", "to", "ids", "amounts", "data"}},
}

type localSelectorInfo struct {
	signature string
	standard  evmtypes.Standard
	route     localRoute
	argNames  []string
}

var localSelectorIndex = buildLocalSelectorIndex()

func buildLocalSelectorIndex() map[[4]byte]localSelectorInfo {
	m := make(map[[4]byte]localSelectorInfo, len(localSelectors))
	for _, e := range localSelectors {
		m[Selector4(e.signature)] = localSelectorInfo{signature: e.signature, standard: e.standard, route: e.route, argNames: e.argNames}
	}
	return m
}

// decodeLocalSelector is decoder Stage B. Like Stage A, it returns
// (nil, nil) on a selector miss so the pipeline falls through to Stage C.
func decodeLocalSelector(ctx DecodeContext, data []byte) (*evmtypes.DecodedCall, error) {
	if len(data) < 4 {
		return nil, nil
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	info, ok := localSelectorIndex[sel]
	if !ok {
		return nil, nil
	}

	switch info.route {
	case routeSafeExecTransaction:
		return decodeSafeExecTransaction(ctx, data[4:])
	case routeUniversalRouterExecute, routeUniversalRouterExecuteDeadline:
		return decodeUniversalRouterCall(ctx, data, info)
	case routeMulticall:
		return decodeMulticallCall(ctx, data, info, false)
	case routeMulticallDeadline:
		return decodeMulticallCall(ctx, data, info, true)
	case routeMultiSend:
		return decodeMultiSendCall(ctx, data, info)
	default:
		return decodePlainLocalSelector(data, info)
	}
}

func decodePlainLocalSelector(data []byte, info localSelectorInfo) (*evmtypes.DecodedCall, error) {
	method, err := methodFromNamedSignature(info.signature, info.argNames)
	if err != nil {
		return nil, nil
	}
	args, err := unpackToArgs(method.Inputs, data[4:])
	if err != nil {
		return nil, nil
	}
	typeStrs, _ := argTypeStrings(info.signature)
	return &evmtypes.DecodedCall{
		Selector:     selectorHex(Selector4(info.signature)),
		Signature:    info.signature,
		FunctionName: functionName(info.signature),
		Source:       evmtypes.SourceLocalSelector,
		Standard:     info.standard,
		Args:         args,
		ArgNames:     args.Names(),
		ArgTypes:     typeStrs,
	}, nil
}

func decodeUniversalRouterCall(ctx DecodeContext, data []byte, info localSelectorInfo) (*evmtypes.DecodedCall, error) {
	method, err := methodFromNamedSignature(info.signature, info.argNames)
	if err != nil {
		return nil, nil
	}
	raw, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(raw) < 2 {
		return nil, nil
	}
	commands, ok := raw[0].([]byte)
	if !ok {
		return nil, nil
	}
	rawInputs, ok := raw[1].([][]byte)
	if !ok {
		return nil, nil
	}

	args, err := unpackToArgs(method.Inputs, data[4:])
	if err != nil {
		return nil, nil
	}
	typeStrs, _ := argTypeStrings(info.signature)

	steps := decodeUniversalRouter(ctx, commands, rawInputs)

	return &evmtypes.DecodedCall{
		Selector:        selectorHex(Selector4(info.signature)),
		Signature:       info.signature,
		FunctionName:    "execute",
		Source:          evmtypes.SourceLocalSelector,
		Args:            args,
		ArgNames:        args.Names(),
		ArgTypes:        typeStrs,
		CommandsDecoded: steps,
	}, nil
}

func decodeMulticallCall(ctx DecodeContext, data []byte, info localSelectorInfo, hasDeadline bool) (*evmtypes.DecodedCall, error) {
	inner, err := decodeMulticall(ctx, data[4:], hasDeadline)
	if err != nil {
		return nil, nil
	}

	name := "calls"
	values := evmtypes.NewNamedArgs([]string{name}, []evmtypes.Value{evmtypes.ListValue(inner)})
	typeStrs, _ := argTypeStrings(info.signature)

	return &evmtypes.DecodedCall{
		Selector:     selectorHex(Selector4(info.signature)),
		Signature:    info.signature,
		FunctionName: "multicall",
		Source:       evmtypes.SourceLocalSelector,
		Args:         values,
		ArgNames:     values.Names(),
		ArgTypes:     typeStrs,
	}, nil
}

func decodeMultiSendCall(ctx DecodeContext, data []byte, info localSelectorInfo) (*evmtypes.DecodedCall, error) {
	transactions, err := unpackMultiSendPayload(data)
	if err != nil {
		return nil, nil
	}

	result := DecodeMultiSend(ctx, transactions)

	recordValues := make([]evmtypes.Value, len(result.Records))
	for i, r := range result.Records {
		var callVal evmtypes.Value
		if r.Call != nil {
			callVal = evmtypes.InnerCallValue(r.Call)
		} else {
			callVal = evmtypes.BytesValue("0x" + common.Bytes2Hex(r.Data))
		}
		recordValues[i] = evmtypes.RecordValue([]evmtypes.RecordField{
			{Name: "operation", Value: evmtypes.ScalarValue(operationName(r.Operation))},
			{Name: "to", Value: evmtypes.AddressValue(r.To.Hex())},
			{Name: "value", Value: evmtypes.ScalarValue(r.Value.String())},
			{Name: "call", Value: callVal},
		})
	}

	details := map[string]evmtypes.Value{
		"transactions": evmtypes.ListValue(recordValues),
	}
	if result.Truncated {
		details["truncated"] = evmtypes.ScalarValue("true")
	}
	if result.TooLarge {
		details["tooLarge"] = evmtypes.ScalarValue("true")
	}

	names := make([]string, 0, len(details))
	values := make([]evmtypes.Value, 0, len(details))
	for _, k := range []string{"transactions", "truncated", "tooLarge"} {
		if v, ok := details[k]; ok {
			names = append(names, k)
			values = append(values, v)
		}
	}

	return &evmtypes.DecodedCall{
		Selector:     selectorHex(Selector4(info.signature)),
		Signature:    info.signature,
		FunctionName: "multiSend",
		Source:       evmtypes.SourceLocalSelector,
		Args:         evmtypes.NewNamedArgs(names, values),
		ArgNames:     names,
	}, nil
}

func operationName(op MultiSendOp) string {
	if op == MultiSendDelegateCall {
		return "delegatecall"
	}
	return "call"
}

