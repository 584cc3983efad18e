package intent

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/txguard/scanner/internal/decode"
	"github.com/txguard/scanner/internal/evmtypes"
)

type fakeTokens struct {
	byAddress map[string]TokenMetadata
}

func (f fakeTokens) Token(address string) (TokenMetadata, bool) {
	m, ok := f.byAddress[address]
	return m, ok
}

func TestBuild_PlainETHTransfer(t *testing.T) {
	input, err := evmtypes.NewCalldataInput(
		"0x1111111111111111111111111111111111111111", "", "", "1000000000000000000", "1")
	if err != nil {
		t.Fatalf("NewCalldataInput: %v", err)
	}
	got := Build(input, nil, nil)
	assert.Equal(t, "Send 1 ETH to 0x1111111111111111111111111111111111111111", got)
}

func TestBuild_ApproveUnlimited(t *testing.T) {
	call := &evmtypes.DecodedCall{
		FunctionName: "approve",
		Standard:     evmtypes.StandardERC20,
		Args: evmtypes.NewNamedArgs(
			[]string{"spender", "amount"},
			[]evmtypes.Value{
				evmtypes.AddressValue("0x2222222222222222222222222222222222222222"),
				evmtypes.ScalarValue(decode.MaxUint256().String()),
			},
		),
	}
	got := Build(nil, call, nil)
	assert.Equal(t, "Approve unlimited spending to 0x2222222222222222222222222222222222222222", got)
}

func TestBuild_ApproveWithTokenMetadata(t *testing.T) {
	call := &evmtypes.DecodedCall{
		FunctionName: "approve",
		Standard:     evmtypes.StandardERC20,
		Args: evmtypes.NewNamedArgs(
			[]string{"spender", "amount"},
			[]evmtypes.Value{
				evmtypes.AddressValue("0x3333333333333333333333333333333333333333"),
				evmtypes.ScalarValue("1500000"),
			},
		),
	}
	input, err := evmtypes.NewCalldataInput(
		"0x4444444444444444444444444444444444444444", "", "0xdeadbeef", "0", "1")
	if err != nil {
		t.Fatalf("NewCalldataInput: %v", err)
	}
	tokens := fakeTokens{byAddress: map[string]TokenMetadata{
		"0x4444444444444444444444444444444444444444": {Symbol: "USDC", Decimals: 6},
	}}
	got := Build(input, call, tokens)
	assert.Equal(t, "Approve 0x3333333333333333333333333333333333333333 to spend 1.5 USDC", got)
}

func TestBuild_UniversalRouterCommandPlan(t *testing.T) {
	call := &evmtypes.DecodedCall{
		FunctionName: "execute",
		CommandsDecoded: []evmtypes.RouterStep{
			{Command: "WRAP_ETH"},
			{Command: "V4_SWAP"},
			{Command: "SWEEP"},
		},
	}
	got := Build(nil, call, nil)
	assert.Equal(t, "WRAP_ETH -> V4_SWAP -> SWEEP", got)
}

func TestBuild_FallsBackToSignature(t *testing.T) {
	call := &evmtypes.DecodedCall{
		FunctionName: "doSomethingObscure",
		Signature:    "doSomethingObscure(uint256)",
	}
	got := Build(nil, call, nil)
	assert.Equal(t, "doSomethingObscure(uint256)", got)
}

func TestFormatDecimal_TrimsTrailingZeros(t *testing.T) {
	assert.Equal(t, "1.5", formatDecimal(big.NewInt(1500000), 6))
	assert.Equal(t, "1", formatDecimal(big.NewInt(1000000), 6))
	assert.Equal(t, "0.000001", formatDecimal(big.NewInt(1), 6))
}
