package analyzer

import (
	"errors"

	"github.com/txguard/scanner/internal/decode"
	"github.com/txguard/scanner/internal/evmtypes"
	"github.com/txguard/scanner/internal/intent"
	"github.com/txguard/scanner/internal/providers"
)

// wellKnownProtocols seeds the typosquat check: names the contract's (or
// its implementation's) name is compared against for every decoded call,
// whether or not the protocol registry matched the address.
var wellKnownProtocols = []string{
	"Uniswap", "Aave", "Compound", "Curve", "Balancer", "SushiSwap", "1inch",
	"Lido", "MakerDAO", "dYdX", "GMX", "PancakeSwap", "OpenSea", "Seaport",
	"Permit2", "Across", "Hop", "Stargate", "Velodrome", "Aerodrome",
	"Camelot", "Frax", "Yearn", "Convex", "Synthetix",
}

// typosquatMaxDistance is the edit-distance threshold at or below which a name is
// flagged as a likely impersonation rather than an unrelated contract.
const typosquatMaxDistance = 2

// newContractThresholdDays and lowActivityThreshold gate the NEW_CONTRACT
// and LOW_ACTIVITY informational findings.
const (
	newContractThresholdDays = 7
	lowActivityThreshold     = 10
)

// SpenderInfo is the caller-supplied result of a secondary fan-out round on
// an approve/setApprovalForAll call's spender address; Analyze does not
// perform this lookup itself since it targets a different address than the
// one the primary fan-out already resolved.
type SpenderInfo struct {
	Verified        bool
	IsEOA           bool
	IsKnownProtocol bool
}

// contractABIAdapter satisfies decode.ContractABIProvider from whichever
// provider result (verification or sourcify) carried back an ABI.
type contractABIAdapter struct {
	address string
	abiJSON string
}

func (a contractABIAdapter) ABIFor(address string) (string, bool) {
	if a.abiJSON == "" || address == "" || address != a.address {
		return "", false
	}
	return a.abiJSON, true
}

// Analyze wires the decode, intent, and provider-fan-out stages into a
// single AnalysisResult: decode the calldata, render its intent, translate
// provider results into findings, aggregate/dedup/order them, score
// confidence, and fold in the unlimited-approval and simulation checks.
func Analyze(
	input *evmtypes.CalldataInput,
	sigs decode.SignatureLookup,
	prov providers.Results,
	spender *SpenderInfo,
	tokens intent.TokenLookup,
	sim *evmtypes.SimulationResult,
) (*evmtypes.AnalysisResult, error) {
	if input == nil {
		return nil, errors.New("analyzer: nil input")
	}

	result := &evmtypes.AnalysisResult{
		Contract: buildContractInfo(input, prov),
		Protocol: "",
	}
	if prov.Protocol != nil {
		result.Protocol = prov.Protocol.Name
		result.ProtocolMatch = prov.Protocol.Slug
	}

	var findings []evmtypes.Finding
	var call *evmtypes.DecodedCall

	switch {
	case input.IsPlainTransfer():
		// No decode stage applies; intent builder handles this case itself.
	case len(input.Data) == 0:
		findings = append(findings, evmtypes.Finding{
			Level:   evmtypes.LevelInfo,
			Code:    evmtypes.CodeCalldataEmpty,
			Message: "Transaction carries no calldata and no value.",
		})
	default:
		abiJSON := ""
		if prov.Verification != nil {
			abiJSON = prov.Verification.ABI
		} else if prov.Sourcify != nil {
			abiJSON = prov.Sourcify.ABI
		}
		ctx := decode.DecodeContext{
			Signatures:   sigs,
			ContractABIs: contractABIAdapter{address: input.To.Hex(), abiJSON: abiJSON},
		}
		decoded, err := decode.DecodeTo(ctx, input.To.Hex(), input.Data)
		switch {
		case err == nil:
			call = decoded
		case errors.Is(err, decode.ErrUnresolvedSelector):
			findings = append(findings, evmtypes.Finding{
				Level:   evmtypes.LevelInfo,
				Code:    evmtypes.CodeCalldataUnknownSelector,
				Message: "Calldata selector does not match any known function.",
			})
		case errors.Is(err, decode.ErrEmptyCalldata):
			findings = append(findings, evmtypes.Finding{
				Level:   evmtypes.LevelInfo,
				Code:    evmtypes.CodeCalldataEmpty,
				Message: "Transaction carries no calldata and no value.",
			})
		default:
			return nil, err
		}
	}

	result.DecodedCall = call
	result.Intent = intent.Build(input, call, tokens)

	findings = append(findings, FromLabels(prov.Labels)...)
	if prov.TokenSecurity != nil {
		findings = append(findings, FromTokenSecurity(*prov.TokenSecurity)...)
	}
	if v := FromVerification(result.Contract.Verified); v != nil {
		findings = append(findings, *v)
	} else {
		findings = append(findings, evmtypes.Finding{
			Level:   evmtypes.LevelSafe,
			Code:    evmtypes.CodeVerified,
			Message: "Contract source is verified.",
		})
	}
	if f := FromProxyDetect(result.Contract.IsProxy, result.Contract.ProxyName); f != nil {
		findings = append(findings, *f)
	}
	if f := FromContractAge(result.Contract.AgeDays, newContractThresholdDays); f != nil {
		findings = append(findings, *f)
	}
	if f := FromActivity(result.Contract.TxCount, lowActivityThreshold); f != nil {
		findings = append(findings, *f)
	}
	if f := DetectUnlimitedApproval(call); f != nil {
		findings = append(findings, *f)
	}
	if spender != nil && call != nil && isApprovalCall(call) {
		if f := FromApprovalTarget(spender.Verified, spender.IsEOA, spender.IsKnownProtocol); f != nil {
			findings = append(findings, *f)
		}
	}
	if call != nil {
		candidate := result.Contract.ImplementationName
		if candidate == "" {
			candidate = result.Contract.Name
		}
		if candidate != "" {
			if f := FromTyposquat(candidate, wellKnownProtocols, typosquatMaxDistance); f != nil {
				findings = append(findings, *f)
			}
		}
	}
	if sim != nil {
		for _, approval := range sim.Approvals.Changes {
			if f := DetectUnlimitedSimulatedApproval(approval); f != nil {
				findings = append(findings, *f)
			}
		}
	}
	findings = append(findings, FromSimulation(sim)...)

	result.Findings = Aggregate(findings)
	result.Confidence = Confidence(result.Contract, prov.Metadata != nil)
	result.Recommendation = FoldSimulation(Recommend(result.Findings), sim)
	result.Simulation = sim

	return result, nil
}

func isApprovalCall(call *evmtypes.DecodedCall) bool {
	switch call.FunctionName {
	case "approve", "setApprovalForAll":
		return true
	default:
		return false
	}
}

func buildContractInfo(input *evmtypes.CalldataInput, prov providers.Results) evmtypes.ContractInfo {
	info := evmtypes.ContractInfo{
		Address: input.To.Hex(),
		Chain:   input.Chain,
	}
	if prov.Verification != nil {
		info.Verified = prov.Verification.Verified
		info.Name = prov.Verification.Name
	}
	if !info.Verified && prov.Sourcify != nil {
		info.Verified = prov.Sourcify.Verified
		if info.Name == "" {
			info.Name = prov.Sourcify.Name
		}
	}
	if prov.Metadata != nil {
		info.AgeDays = prov.Metadata.AgeDays
		info.TxCount = prov.Metadata.TxCount
	}
	if prov.ProxyDetect != nil {
		info.IsProxy = prov.ProxyDetect.IsProxy
		info.ProxyName = string(prov.ProxyDetect.ProxyType)
		info.Implementation = prov.ProxyDetect.Implementation
		info.Beacon = prov.ProxyDetect.Beacon
	}
	if prov.ImplSourcify != nil {
		info.ImplementationName = prov.ImplSourcify.Name
	} else if prov.ImplProtocol != nil {
		info.ImplementationName = prov.ImplProtocol.Name
	}
	return info
}
