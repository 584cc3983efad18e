package evmtypes

// DecodeSource records which decoder stage produced a DecodedCall.
type DecodeSource string

const (
	SourceKnownABI    DecodeSource = "known-abi"
	SourceSignatureDB DecodeSource = "signature-db"
	SourceContractABI DecodeSource = "contract-abi"
	SourceLocalSelector DecodeSource = "local-selector"
)

// Standard tags a DecodedCall as matching a well-known token standard, used
// downstream by the unlimited-approval detector and the intent builder.
type Standard string

const (
	StandardNone    Standard = ""
	StandardERC20   Standard = "erc20"
	StandardEIP2612 Standard = "eip2612"
)

// DecodedCall is the result of successfully decoding a calldata payload
// against some ABI. Recursion depth (via multicall/execTransaction/command
// sub-plans) is capped at 2; see internal/decode.MaxRecursionDepth.
type DecodedCall struct {
	Selector     string // 4-byte hex, e.g. "0x095ea7b3"
	Signature    string // canonical Solidity signature
	FunctionName string
	Source       DecodeSource
	Standard     Standard

	Args      Args
	ArgNames  []string
	ArgTypes  []string

	// CommandsDecoded holds the per-opcode step list for a Universal Router
	// execute() call. Nil for every other decoded call.
	CommandsDecoded []RouterStep

	// Alternates holds additional signatures that also decoded successfully
	// at Stage D (signature database), beyond the primary candidate.
	Alternates []string
}

// RouterStep is one decoded step of a Universal Router command-plan.
type RouterStep struct {
	Index       int
	Opcode      byte
	Command     string // label from the command-id table, e.g. "V3_SWAP_EXACT_IN"
	AllowRevert bool
	Details     map[string]Value
}
