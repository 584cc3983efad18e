package decode

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txguard/scanner/internal/evmtypes"
)

func packSignature(t *testing.T, signature string, args ...interface{}) []byte {
	t.Helper()
	method, err := methodFromSignature(signature)
	require.NoError(t, err)
	packed, err := method.Inputs.Pack(args...)
	require.NoError(t, err)
	sel := Selector4(signature)
	return append(append([]byte{}, sel[:]...), packed...)
}

func TestDecodeKnownABI_ApproveUnlimited(t *testing.T) {
	spender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	data := packSignature(t, "approve(address,uint256)", spender, MaxUint256())

	dc, err := Decode(DecodeContext{}, data)
	require.NoError(t, err)
	require.NotNil(t, dc)

	assert.Equal(t, evmtypes.SourceKnownABI, dc.Source)
	assert.Equal(t, evmtypes.StandardERC20, dc.Standard)
	assert.Equal(t, "approve", dc.FunctionName)

	amount, ok := dc.Args.ByName("amount")
	require.True(t, ok)
	assert.Equal(t, MaxUint256().String(), amount.Scalar)
}

func TestDecode_EmptyCalldataIsTerminal(t *testing.T) {
	dc, err := Decode(DecodeContext{}, nil)
	assert.Nil(t, dc)
	assert.ErrorIs(t, err, ErrEmptyCalldata)
}

func TestDecode_UnresolvedSelectorIsTerminal(t *testing.T) {
	dc, err := Decode(DecodeContext{}, []byte{0xde, 0xad, 0xbe, 0xef})
	assert.Nil(t, dc)
	assert.ErrorIs(t, err, ErrUnresolvedSelector)
}

func TestDecode_Idempotent(t *testing.T) {
	data := packSignature(t, "transfer(address,uint256)",
		common.HexToAddress("0x2222222222222222222222222222222222222222"), bigInt(1000))

	first, err1 := Decode(DecodeContext{}, data)
	second, err2 := Decode(DecodeContext{}, data)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, first.Args.Values()[1].Scalar, second.Args.Values()[1].Scalar)
}

func TestDecodeLocalSelector_UniversalRouterCommandPlan(t *testing.T) {
	// execute(bytes commands, bytes[] inputs) with WRAP_ETH, V4_SWAP, SWEEP
	// (commands 0x0b, 0x10, 0x04) matching the S3 scenario.
	commands := []byte{0x0b, 0x10, 0x04}

	wrapEthInput := mustPackTuple(t, []string{"address", "uint256"},
		common.HexToAddress("0x3333333333333333333333333333333333333333"), bigInt(0))
	sweepInput := mustPackTuple(t, []string{"address", "address", "uint256"},
		common.HexToAddress("0x4444444444444444444444444444444444444444"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"), bigInt(0))

	inputs := [][]byte{wrapEthInput, {}, sweepInput}

	data := packSignature(t, "execute(bytes,bytes[])", commands, inputs)

	dc, err := Decode(DecodeContext{}, data)
	require.NoError(t, err)
	require.NotNil(t, dc)
	require.Len(t, dc.CommandsDecoded, 3)

	assert.Equal(t, "WRAP_ETH", dc.CommandsDecoded[0].Command)
	assert.Equal(t, "V4_SWAP", dc.CommandsDecoded[1].Command)
	assert.Equal(t, "SWEEP", dc.CommandsDecoded[2].Command)
	assert.False(t, dc.CommandsDecoded[0].AllowRevert)
}

func TestDecodeUniversalRouter_AllowRevertBit(t *testing.T) {
	ctx := DecodeContext{}
	steps := decodeUniversalRouter(ctx, []byte{0x84}, [][]byte{{}})
	require.Len(t, steps, 1)
	assert.True(t, steps[0].AllowRevert)
	assert.Equal(t, "SWEEP", steps[0].Command)
}

func TestDecodeMulticall_RecursesAndRespectsDepthBound(t *testing.T) {
	approveCall := packSignature(t, "approve(address,uint256)",
		common.HexToAddress("0x5555555555555555555555555555555555555555"), bigInt(100))

	data := packSignature(t, "multicall(bytes[])", [][]byte{approveCall})

	dc, err := Decode(DecodeContext{}, data)
	require.NoError(t, err)
	require.NotNil(t, dc)

	calls, ok := dc.Args.ByName("calls")
	require.True(t, ok)
	require.Len(t, calls.List, 1)
	require.Equal(t, evmtypes.KindInnerCall, calls.List[0].Kind)
	assert.Equal(t, "approve", calls.List[0].Inner.FunctionName)
}

func TestDecodeMulticall_AtMaxDepthDegradesToRawBytes(t *testing.T) {
	approveCall := packSignature(t, "approve(address,uint256)",
		common.HexToAddress("0x6666666666666666666666666666666666666666"), bigInt(1))
	inner := packSignature(t, "multicall(bytes[])", [][]byte{approveCall})

	ctx := DecodeContext{Depth: MaxRecursionDepth}
	dc, err := decodeLocalSelector(ctx, inner)
	require.NoError(t, err)
	require.NotNil(t, dc)

	calls, ok := dc.Args.ByName("calls")
	require.True(t, ok)
	require.Len(t, calls.List, 1)
	assert.Equal(t, evmtypes.KindBytes, calls.List[0].Kind)
}

func TestDecodeSafeExecTransaction_UnwrapsInnerCall(t *testing.T) {
	approveCall := packSignature(t, "approve(address,uint256)",
		common.HexToAddress("0x7777777777777777777777777777777777777777"), bigInt(5))

	data := packSignature(t, safeExecTransactionSignature,
		common.HexToAddress("0x8888888888888888888888888888888888888888"),
		bigInt(0), approveCall, uint8(0), bigInt(0), bigInt(0), bigInt(0),
		common.Address{}, common.Address{}, []byte{})

	dc, err := Decode(DecodeContext{}, data)
	require.NoError(t, err)
	require.NotNil(t, dc)

	decodedData, ok := dc.Args.ByName("decodedData")
	require.True(t, ok)
	require.Equal(t, evmtypes.KindInnerCall, decodedData.Kind)
	assert.Equal(t, "approve", decodedData.Inner.FunctionName)
}

func TestDecodeMultiSend_TruncatedHeaderIsFlagged(t *testing.T) {
	ctx := DecodeContext{}
	result := DecodeMultiSend(ctx, []byte{0x00, 0x01, 0x02})
	assert.True(t, result.Truncated)
	assert.Empty(t, result.Records)
}

func TestDecodeMultiSend_TooLargeRejectsOutright(t *testing.T) {
	ctx := DecodeContext{}
	oversized := make([]byte, MultiSendMaxBytes+1)
	result := DecodeMultiSend(ctx, oversized)
	assert.True(t, result.TooLarge)
	assert.Empty(t, result.Records)
}

func TestDecodeMultiSend_CapsAt250RecordsAndFlagsTruncated(t *testing.T) {
	record := make([]byte, 85)
	var transactions []byte
	for i := 0; i < MultiSendMaxRecords+5; i++ {
		transactions = append(transactions, record...)
	}

	ctx := DecodeContext{}
	result := DecodeMultiSend(ctx, transactions)
	assert.Len(t, result.Records, MultiSendMaxRecords)
	assert.True(t, result.Truncated)
}

func TestSelectorResolver_CachesAndDedupes(t *testing.T) {
	fetcher := &countingFetcher{signatures: []string{"transfer(address,uint256)"}}
	resolver := NewSelectorResolver(fetcher)

	sel := Selector4("transfer(address,uint256)")
	sigs1, err := resolver.Lookup(sel)
	require.NoError(t, err)
	sigs2, err := resolver.Lookup(sel)
	require.NoError(t, err)

	assert.Equal(t, sigs1, sigs2)
	assert.Equal(t, 1, fetcher.calls)
}

type countingFetcher struct {
	signatures []string
	calls      int
}

func (f *countingFetcher) FetchSignatures(_ context.Context, _ [4]byte) ([]string, error) {
	f.calls++
	return f.signatures, nil
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }

func mustPackTuple(t *testing.T, types []string, values ...interface{}) []byte {
	t.Helper()
	args := make(abi.Arguments, len(types))
	for i, ts := range types {
		at, err := abi.NewType(ts, "", nil)
		require.NoError(t, err)
		args[i] = abi.Argument{Type: at}
	}
	packed, err := args.Pack(values...)
	require.NoError(t, err)
	return packed
}
