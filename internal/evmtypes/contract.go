package evmtypes

import "github.com/txguard/scanner/internal/chain"

// ContractInfo is populated incrementally as providers report back during
// the fan-out (§4.3). Only Address, Chain, Verified, and IsProxy are
// mandatory; everything else starts zero-valued until a provider sets it.
type ContractInfo struct {
	Address            string
	Chain              chain.Chain
	Name               string
	ProxyName          string
	ImplementationName string
	Verified           bool
	AgeDays            *int
	TxCount            *int64
	IsProxy            bool
	Implementation     string
	Beacon             string
}

// Confidence describes how much the analyzer trusts its own ContractInfo
// and finding set.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

type Confidence struct {
	Level   ConfidenceLevel
	Reasons []string
}

// AnalysisResult is the top-level verdict produced by the analyzer. It
// exclusively owns its Findings and ContractInfo.
type AnalysisResult struct {
	Contract      ContractInfo
	Protocol      string
	ProtocolMatch string
	Findings      []Finding
	Confidence    Confidence
	Recommendation Recommendation
	Intent        string
	Simulation    *SimulationResult
	DecodedCall   *DecodedCall
}
