package analyzer

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txguard/scanner/internal/decode"
	"github.com/txguard/scanner/internal/evmtypes"
	"github.com/txguard/scanner/internal/providers"
)

func approveCalldata(t *testing.T, spender string, amount string) string {
	t.Helper()
	abiJSON := `[{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}]}]`
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	amt, ok := new(big.Int).SetString(amount, 10)
	require.True(t, ok)
	packed, err := parsed.Pack("approve", common.HexToAddress(spender), amt)
	require.NoError(t, err)
	return "0x" + common.Bytes2Hex(packed)
}

func TestAggregate_DedupKeepsHighestPriority(t *testing.T) {
	findings := []evmtypes.Finding{
		{Level: evmtypes.LevelWarning, Code: evmtypes.CodeUnverified, Message: "first"},
		{Level: evmtypes.LevelDanger, Code: evmtypes.CodeKnownPhishing, Message: "phishing"},
		{Level: evmtypes.LevelWarning, Code: evmtypes.CodeUnverified, Message: "second"},
	}
	out := Aggregate(findings)
	require.Len(t, out, 2)
	assert.Equal(t, evmtypes.CodeKnownPhishing, out[0].Code)
	assert.Equal(t, evmtypes.CodeUnverified, out[1].Code)
	assert.Equal(t, "first", out[1].Message)
}

func TestRecommend_Thresholds(t *testing.T) {
	assert.Equal(t, evmtypes.RecommendationOK, Recommend(nil))
	assert.Equal(t, evmtypes.RecommendationWarning, Recommend([]evmtypes.Finding{
		{Level: evmtypes.LevelWarning, Code: evmtypes.CodeUnverified},
	}))
	assert.Equal(t, evmtypes.RecommendationCaution, Recommend([]evmtypes.Finding{
		{Level: evmtypes.LevelWarning, Code: evmtypes.CodeUnverified},
		{Level: evmtypes.LevelWarning, Code: evmtypes.CodeBlacklist},
	}))
	assert.Equal(t, evmtypes.RecommendationDanger, Recommend([]evmtypes.Finding{
		{Level: evmtypes.LevelDanger, Code: evmtypes.CodeHoneypot},
		{Level: evmtypes.LevelWarning, Code: evmtypes.CodeUnverified},
	}))
}

func TestFoldSimulation_NeverDowngradesDanger(t *testing.T) {
	sim := &evmtypes.SimulationResult{Success: false}
	assert.Equal(t, evmtypes.RecommendationDanger, FoldSimulation(evmtypes.RecommendationDanger, sim))
	assert.Equal(t, evmtypes.RecommendationCaution, FoldSimulation(evmtypes.RecommendationOK, sim))
	assert.Equal(t, evmtypes.RecommendationWarning, FoldSimulation(evmtypes.RecommendationWarning, sim))
}

func TestDetectUnlimitedApproval_MatchesMaxUint256(t *testing.T) {
	call := &evmtypes.DecodedCall{
		FunctionName: "approve",
		Standard:     evmtypes.StandardERC20,
		Args: evmtypes.NewNamedArgs(
			[]string{"spender", "amount"},
			[]evmtypes.Value{
				evmtypes.AddressValue("0x1111111111111111111111111111111111111111"),
				evmtypes.ScalarValue(decode.MaxUint256().String()),
			},
		),
	}
	f := DetectUnlimitedApproval(call)
	require.NotNil(t, f)
	assert.Equal(t, evmtypes.CodeUnlimitedApproval, f.Code)
}

func TestDetectUnlimitedApproval_NoMatchBelowMax(t *testing.T) {
	call := &evmtypes.DecodedCall{
		FunctionName: "approve",
		Standard:     evmtypes.StandardERC20,
		Args: evmtypes.NewNamedArgs(
			[]string{"spender", "amount"},
			[]evmtypes.Value{
				evmtypes.AddressValue("0x1111111111111111111111111111111111111111"),
				evmtypes.ScalarValue("1000"),
			},
		),
	}
	assert.Nil(t, DetectUnlimitedApproval(call))
}

func TestFromTokenSecurity_EachFlagProducesItsCode(t *testing.T) {
	out := FromTokenSecurity(providers.TokenSecurityResult{
		IsHoneypot: true,
		BuyTaxBps:  1500,
	})
	var codes []evmtypes.Code
	for _, f := range out {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, evmtypes.CodeHoneypot)
	assert.Contains(t, codes, evmtypes.CodeHighTax)
}

func TestConfidence_Levels(t *testing.T) {
	assert.Equal(t, evmtypes.ConfidenceHigh, Confidence(evmtypes.ContractInfo{Verified: true}, true).Level)
	medium := Confidence(evmtypes.ContractInfo{Verified: false}, true)
	assert.Equal(t, evmtypes.ConfidenceMedium, medium.Level)
	assert.NotEmpty(t, medium.Reasons)
	low := Confidence(evmtypes.ContractInfo{Verified: false}, false)
	assert.Equal(t, evmtypes.ConfidenceLow, low.Level)
	assert.Len(t, low.Reasons, 2)
}

func TestAnalyze_UnlimitedApprovalToUnverifiedSpender(t *testing.T) {
	to := "0x2222222222222222222222222222222222222222"
	spender := "0x3333333333333333333333333333333333333333"
	data := approveCalldata(t, spender, decode.MaxUint256().String())

	input, err := evmtypes.NewCalldataInput(to, "", data, "0", "1")
	require.NoError(t, err)

	prov := providers.Results{
		Verification: &providers.VerificationResult{Verified: true, Name: "TestToken"},
	}

	result, err := Analyze(input, nil, prov, &SpenderInfo{Verified: false}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result.DecodedCall)

	var codes []evmtypes.Code
	for _, f := range result.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, evmtypes.CodeUnlimitedApproval)
	assert.Contains(t, codes, evmtypes.CodeApprovalToDangerous)
	assert.Equal(t, evmtypes.RecommendationCaution, result.Recommendation)
}

func TestAnalyze_EmptyCalldataNoValue(t *testing.T) {
	input, err := evmtypes.NewCalldataInput("0x4444444444444444444444444444444444444444", "", "", "0", "1")
	require.NoError(t, err)

	result, err := Analyze(input, nil, providers.Results{}, nil, nil, nil)
	require.NoError(t, err)

	var codes []evmtypes.Code
	for _, f := range result.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, evmtypes.CodeCalldataEmpty)
}

func TestAnalyze_VerifiedUpgradeableProxyYieldsWarning(t *testing.T) {
	input, err := evmtypes.NewCalldataInput("0x6666666666666666666666666666666666666666", "", "", "1000000000000000000", "1")
	require.NoError(t, err)

	prov := providers.Results{
		Verification: &providers.VerificationResult{Verified: true, Name: "USD Coin"},
		ProxyDetect:  &providers.ProxyDetectResult{IsProxy: true, ProxyType: providers.ProxyEIP1967},
	}

	result, err := Analyze(input, nil, prov, nil, nil, nil)
	require.NoError(t, err)

	var codes []evmtypes.Code
	for _, f := range result.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, evmtypes.CodeVerified)
	assert.Contains(t, codes, evmtypes.CodeUpgradeable)
	assert.Equal(t, evmtypes.RecommendationWarning, result.Recommendation)
	assert.Equal(t, evmtypes.ConfidenceHigh, result.Confidence.Level)
}

func TestAnalyze_PlainTransferSkipsDecode(t *testing.T) {
	input, err := evmtypes.NewCalldataInput("0x5555555555555555555555555555555555555555", "", "", "1000000000000000000", "1")
	require.NoError(t, err)

	result, err := Analyze(input, nil, providers.Results{}, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, result.DecodedCall)
	assert.Contains(t, result.Intent, "Send 1 ETH")
}
