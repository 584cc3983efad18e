package analyzer

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/txguard/scanner/internal/evmtypes"
)

// maxUint160 is 2^160 - 1, the unlimited-approval sentinel Permit2-style
// approvals use for their uint160 amount field.
var maxUint160 = func() *uint256.Int {
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, 160)
	return new(uint256.Int).Sub(shifted, one)
}()

// DetectUnlimitedApproval implements spec §4.4's unlimited-approval rule:
// an ERC-20 approve (or EIP-2612 permit) whose amount/value decodes to
// 2^256-1 yields an UNLIMITED_APPROVAL warning. Returns nil when the call
// doesn't match.
func DetectUnlimitedApproval(call *evmtypes.DecodedCall) *evmtypes.Finding {
	if call == nil {
		return nil
	}

	var argName string
	switch call.Standard {
	case evmtypes.StandardERC20:
		if call.FunctionName != "approve" {
			return nil
		}
		argName = "amount"
	case evmtypes.StandardEIP2612:
		argName = "value"
	default:
		return nil
	}

	v, ok := call.Args.ByName(argName)
	if !ok || v.Kind != evmtypes.KindScalar {
		return nil
	}

	amount, err := uint256.FromDecimal(v.Scalar)
	if err != nil {
		return nil
	}

	if amount.Cmp(maxUint256Uint()) != 0 {
		return nil
	}

	return &evmtypes.Finding{
		Level:   evmtypes.LevelWarning,
		Code:    evmtypes.CodeUnlimitedApproval,
		Message: "This transaction grants an unlimited token approval.",
	}
}

// DetectUnlimitedSimulatedApproval detects a Permit2-style max (2^160-1)
// allowance observed in a simulated approval delta, which the decoder
// alone cannot see (Permit2's `permit` call doesn't always carry an
// amount that round-trips as decimal text the same way).
func DetectUnlimitedSimulatedApproval(change evmtypes.ApprovalChange) *evmtypes.Finding {
	if change.Amount == nil {
		return nil
	}
	amount, overflow := uint256.FromBig(change.Amount)
	if overflow {
		return nil
	}
	if amount.Cmp(maxUint160) != 0 {
		return nil
	}
	return &evmtypes.Finding{
		Level:   evmtypes.LevelWarning,
		Code:    evmtypes.CodeUnlimitedApproval,
		Message: fmt.Sprintf("Simulated approval to %s grants the maximum Permit2 allowance.", change.Spender),
	}
}

// maxUint256Uint returns 2^256 - 1. It can't be built via Lsh(1, 256) since
// that shifts entirely out of a 256-bit register; bitwise-NOT of zero
// (all bits set) is the correct construction.
func maxUint256Uint() *uint256.Int {
	return new(uint256.Int).Not(uint256.NewInt(0))
}
