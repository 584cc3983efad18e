package decode

import (
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/txguard/scanner/internal/evmtypes"
)

// commandLabels maps a Universal Router command id (low 6 bits of the
// opcode byte) to its canonical label. Bit-exact per spec §4.1/§6.
var commandLabels = map[byte]string{
	0x00: "V3_SWAP_EXACT_IN",
	0x01: "V3_SWAP_EXACT_OUT",
	0x02: "PERMIT2_TRANSFER_FROM",
	0x03: "PERMIT2_PERMIT_BATCH",
	0x04: "SWEEP",
	0x05: "TRANSFER",
	0x06: "PAY_PORTION",
	0x08: "V2_SWAP_EXACT_IN",
	0x09: "V2_SWAP_EXACT_OUT",
	0x0a: "PERMIT2_PERMIT",
	0x0b: "WRAP_ETH",
	0x0c: "UNWRAP_WETH",
	0x0d: "PERMIT2_TRANSFER_FROM_BATCH",
	0x0e: "BALANCE_CHECK_ERC20",
	0x10: "V4_SWAP",
	0x11: "V3_POSITION_MANAGER_PERMIT",
	0x12: "V3_POSITION_MANAGER_CALL",
	0x13: "V4_INITIALIZE_POOL",
	0x14: "V4_POSITION_MANAGER_CALL",
	0x21: "EXECUTE_SUB_PLAN",
}

// commandIDMask isolates the low 6 bits of an opcode byte (the command id);
// the top bit (0x80) is the allow-revert flag.
const commandIDMask = 0x3f
const allowRevertBit = 0x80

func commandLabel(id byte) string {
	if label, ok := commandLabels[id]; ok {
		return label
	}
	return "UNKNOWN"
}

// decodeUniversalRouter decodes an execute(bytes,bytes[]) /
// execute(bytes,bytes[],uint256) payload's commands/inputs pair into a
// step-by-step RouterStep list. len(steps) == len(commands) always, even
// for opcodes this decoder doesn't know a tuple schema for (unknown
// opcodes still produce a step, with the payload hex under Details["raw"]
// when it is non-empty).
func decodeUniversalRouter(ctx DecodeContext, commands []byte, inputs [][]byte) []evmtypes.RouterStep {
	steps := make([]evmtypes.RouterStep, len(commands))
	for i, opcode := range commands {
		id := opcode & commandIDMask
		step := evmtypes.RouterStep{
			Index:       i,
			Opcode:      opcode,
			Command:     commandLabel(id),
			AllowRevert: opcode&allowRevertBit != 0,
			Details:     map[string]evmtypes.Value{},
		}
		var payload []byte
		if i < len(inputs) {
			payload = inputs[i]
		}
		decodeRouterStepDetails(ctx, id, payload, &step)
		steps[i] = step
	}
	return steps
}

// decodeRouterStepDetails fills step.Details from payload according to the
// per-opcode tuple schema in spec §4.1. Unknown opcodes store a non-empty
// payload as hex under Details["raw"]; undecodable payloads of known
// opcodes leave Details empty (decoder failures are non-fatal).
func decodeRouterStepDetails(ctx DecodeContext, id byte, payload []byte, step *evmtypes.RouterStep) {
	defer func() {
		// abi.Arguments.Unpack can panic on certain malformed fixed-size
		// inputs; treat any such failure as "no details", matching the
		// best-effort degrade-ability the rest of the decoder follows.
		if r := recover(); r != nil {
			step.Details = map[string]evmtypes.Value{}
		}
	}()

	switch commandLabel(id) {
	case "V3_SWAP_EXACT_IN":
		decodeTuple(payload, []string{"recipient", "amountIn", "amountOutMin", "path", "payerIsUser"},
			[]string{"address", "uint256", "uint256", "bytes", "bool"}, step)
		splitPath(step)
	case "V3_SWAP_EXACT_OUT":
		decodeTuple(payload, []string{"recipient", "amountOut", "amountInMax", "path", "payerIsUser"},
			[]string{"address", "uint256", "uint256", "bytes", "bool"}, step)
		splitPath(step)
	case "V2_SWAP_EXACT_IN":
		decodeTuple(payload, []string{"recipient", "amountIn", "amountOutMin", "path", "payerIsUser"},
			[]string{"address", "uint256", "uint256", "address[]", "bool"}, step)
		splitAddressPath(step)
	case "V2_SWAP_EXACT_OUT":
		decodeTuple(payload, []string{"recipient", "amountOut", "amountInMax", "path", "payerIsUser"},
			[]string{"address", "uint256", "uint256", "address[]", "bool"}, step)
		splitAddressPath(step)
	case "WRAP_ETH", "UNWRAP_WETH":
		decodeTuple(payload, []string{"recipient", "amountMin"}, []string{"address", "uint256"}, step)
	case "SWEEP":
		decodeTuple(payload, []string{"token", "recipient", "amountMin"}, []string{"address", "address", "uint256"}, step)
	case "TRANSFER":
		decodeTuple(payload, []string{"token", "recipient", "amount"}, []string{"address", "address", "uint256"}, step)
	case "PAY_PORTION":
		decodeTuple(payload, []string{"token", "recipient", "bips"}, []string{"address", "address", "uint256"}, step)
	case "PERMIT2_TRANSFER_FROM":
		decodeTuple(payload, []string{"token", "recipient", "amount"}, []string{"address", "address", "uint160"}, step)
	case "EXECUTE_SUB_PLAN":
		decodeSubPlan(ctx, payload, step)
	default:
		if len(payload) > 0 {
			step.Details["raw"] = evmtypes.BytesValue("0x" + common.Bytes2Hex(payload))
		}
	}
}

// decodeTuple ABI-decodes payload against the given field names/types and
// writes each into step.Details. Any failure leaves Details untouched.
func decodeTuple(payload []byte, names, types []string, step *evmtypes.RouterStep) {
	if len(payload) == 0 {
		return
	}
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		at, err := abi.NewType(t, "", nil)
		if err != nil {
			return
		}
		args[i] = abi.Argument{Name: names[i], Type: at}
	}
	vals, err := args.Unpack(payload)
	if err != nil || len(vals) != len(names) {
		return
	}
	for i, name := range names {
		step.Details[name] = toValue(args[i].Type, vals[i])
	}
}

// splitPath extracts tokenIn/tokenOut from an encoded V3 `path` by taking
// the first and last 20 bytes.
func splitPath(step *evmtypes.RouterStep) {
	pathVal, ok := step.Details["path"]
	if !ok || pathVal.Kind != evmtypes.KindBytes {
		return
	}
	raw := common.FromHex(pathVal.Hex)
	if len(raw) < 20 {
		return
	}
	step.Details["tokenIn"] = evmtypes.AddressValue(common.BytesToAddress(raw[:20]).Hex())
	step.Details["tokenOut"] = evmtypes.AddressValue(common.BytesToAddress(raw[len(raw)-20:]).Hex())
}

// splitAddressPath extracts tokenIn/tokenOut from a V2-style address[] path.
func splitAddressPath(step *evmtypes.RouterStep) {
	pathVal, ok := step.Details["path"]
	if !ok || pathVal.Kind != evmtypes.KindList || len(pathVal.List) == 0 {
		return
	}
	step.Details["tokenIn"] = pathVal.List[0]
	step.Details["tokenOut"] = pathVal.List[len(pathVal.List)-1]
}

// decodeSubPlan recurses the decoder into an EXECUTE_SUB_PLAN's own
// (bytes commands, bytes[] inputs) pair, subject to the recursion bound.
func decodeSubPlan(ctx DecodeContext, payload []byte, step *evmtypes.RouterStep) {
	if len(payload) == 0 {
		return
	}
	child := ctx.Child()
	if child.ExceedsLimit() {
		return
	}
	commandsT, _ := abi.NewType("bytes", "", nil)
	inputsT, _ := abi.NewType("bytes[]", "", nil)
	args := abi.Arguments{
		{Name: "commands", Type: commandsT},
		{Name: "inputs", Type: inputsT},
	}
	vals, err := args.Unpack(payload)
	if err != nil || len(vals) != 2 {
		return
	}
	commands, ok := vals[0].([]byte)
	if !ok {
		return
	}
	rawInputs, ok := vals[1].([][]byte)
	if !ok {
		return
	}
	subSteps := decodeUniversalRouter(child, commands, rawInputs)
	recs := make([]evmtypes.Value, len(subSteps))
	for i, s := range subSteps {
		recs[i] = routerStepToValue(s)
	}
	step.Details["subPlan"] = evmtypes.ListValue(recs)
}

// routerStepToValue renders a RouterStep as a generic record Value so it
// can be embedded inside another step's Details.
func routerStepToValue(s evmtypes.RouterStep) evmtypes.Value {
	fields := []evmtypes.RecordField{
		{Name: "index", Value: evmtypes.ScalarValue(strconv.Itoa(s.Index))},
		{Name: "command", Value: evmtypes.ScalarValue(s.Command)},
		{Name: "allowRevert", Value: evmtypes.ScalarValue(strconv.FormatBool(s.AllowRevert))},
	}
	return evmtypes.RecordValue(fields)
}
