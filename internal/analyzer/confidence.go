package analyzer

import "github.com/txguard/scanner/internal/evmtypes"

// Confidence implements spec §4.4 invariant 3: high when a verification
// provider confirmed the source, medium when only partial metadata was
// available, low when neither succeeded. Each downgrade records why.
func Confidence(contract evmtypes.ContractInfo, metadataAvailable bool) evmtypes.Confidence {
	if contract.Verified {
		return evmtypes.Confidence{Level: evmtypes.ConfidenceHigh}
	}
	if metadataAvailable {
		return evmtypes.Confidence{
			Level:   evmtypes.ConfidenceMedium,
			Reasons: []string{"contract source is unverified; relying on metadata only"},
		}
	}
	return evmtypes.Confidence{
		Level: evmtypes.ConfidenceLow,
		Reasons: []string{
			"contract source is unverified",
			"metadata unavailable",
		},
	}
}
