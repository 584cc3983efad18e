package safeingest

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txguard/scanner/internal/chain"
	"github.com/txguard/scanner/internal/decode"
	"github.com/txguard/scanner/internal/evmtypes"
)

func TestAnalyze_RunsEveryRecord(t *testing.T) {
	batch := decode.MultiSendResult{
		Records: []decode.MultiSendRecord{
			{To: common.HexToAddress("0x1111111111111111111111111111111111111111"), Value: big.NewInt(0)},
			{To: common.HexToAddress("0x2222222222222222222222222222222222222222"), Value: big.NewInt(1)},
		},
	}

	entries := Analyze(context.Background(), chain.Ethereum, batch, func(ctx context.Context, input *evmtypes.CalldataInput) (*evmtypes.AnalysisResult, error) {
		return &evmtypes.AnalysisResult{Intent: "analyzed " + input.To.Hex()}, nil
	})

	require.Len(t, entries, 2)
	assert.Equal(t, "analyzed 0x1111111111111111111111111111111111111111", entries[0].Result.Intent)
	assert.Equal(t, "analyzed 0x2222222222222222222222222222222222222222", entries[1].Result.Intent)
	assert.NoError(t, entries[0].Err)
	assert.NoError(t, entries[1].Err)
}

func TestAnalyze_OneFailureDoesNotSuppressOthers(t *testing.T) {
	boom := errors.New("provider unavailable")
	batch := decode.MultiSendResult{
		Records: []decode.MultiSendRecord{
			{To: common.HexToAddress("0x1111111111111111111111111111111111111111")},
			{To: common.HexToAddress("0x2222222222222222222222222222222222222222")},
			{To: common.HexToAddress("0x3333333333333333333333333333333333333333")},
		},
	}

	entries := Analyze(context.Background(), chain.Ethereum, batch, func(ctx context.Context, input *evmtypes.CalldataInput) (*evmtypes.AnalysisResult, error) {
		if input.To == common.HexToAddress("0x2222222222222222222222222222222222222222") {
			return nil, boom
		}
		return &evmtypes.AnalysisResult{}, nil
	})

	require.Len(t, entries, 3)
	assert.NoError(t, entries[0].Err)
	assert.ErrorIs(t, entries[1].Err, boom)
	assert.Nil(t, entries[1].Result)
	assert.NoError(t, entries[2].Err)
	assert.NotNil(t, entries[2].Result)
}
