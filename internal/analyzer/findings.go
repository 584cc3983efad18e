package analyzer

import (
	"fmt"

	"github.com/txguard/scanner/internal/evmtypes"
	"github.com/txguard/scanner/internal/providers"
)

// FromLabels turns a labels-provider tag list into findings; a "phishing"
// tag is the only one spec §4.3 assigns a dedicated code to.
func FromLabels(tags []string) []evmtypes.Finding {
	var out []evmtypes.Finding
	for _, tag := range tags {
		if tag == "phishing" {
			out = append(out, evmtypes.Finding{
				Level:   evmtypes.LevelDanger,
				Code:    evmtypes.CodeKnownPhishing,
				Message: "This address is flagged as a known phishing address.",
			})
		}
	}
	return out
}

// FromTokenSecurity turns token-security boolean flags into their
// dedicated finding codes, exactly as the table in spec §4.3 enumerates.
func FromTokenSecurity(r providers.TokenSecurityResult) []evmtypes.Finding {
	var out []evmtypes.Finding
	add := func(cond bool, level evmtypes.Level, code evmtypes.Code, msg string) {
		if cond {
			out = append(out, evmtypes.Finding{Level: level, Code: code, Message: msg})
		}
	}
	add(r.IsHoneypot, evmtypes.LevelDanger, evmtypes.CodeHoneypot, "Token security analysis flags this contract as a honeypot.")
	add(r.IsMintable, evmtypes.LevelWarning, evmtypes.CodeHiddenMint, "Token owner can mint new supply at will.")
	add(r.CanTakeBackOwnership, evmtypes.LevelDanger, evmtypes.CodeOwnerDrain, "Token owner can reclaim ownership after renouncing it.")
	add(r.HiddenOwner, evmtypes.LevelDanger, evmtypes.CodeOwnerDrain, "Token has a hidden owner with privileged control.")
	add(r.Selfdestruct, evmtypes.LevelDanger, evmtypes.CodeSelfdestruct, "Contract can self-destruct.")
	add(r.IsBlacklisted, evmtypes.LevelWarning, evmtypes.CodeBlacklist, "Token implements an address blacklist.")
	add(r.OwnerCanChangeBalance, evmtypes.LevelDanger, evmtypes.CodeOwnerDrain, "Token owner can directly change holder balances.")
	if r.BuyTaxBps > 1000 || r.SellTaxBps > 1000 {
		out = append(out, evmtypes.Finding{
			Level:   evmtypes.LevelWarning,
			Code:    evmtypes.CodeHighTax,
			Message: fmt.Sprintf("Token applies a high transfer tax (buy %d bps, sell %d bps).", r.BuyTaxBps, r.SellTaxBps),
		})
	}
	return out
}

// FromVerification produces UNVERIFIED when a contract's source could not
// be confirmed.
func FromVerification(verified bool) *evmtypes.Finding {
	if verified {
		return nil
	}
	return &evmtypes.Finding{
		Level:   evmtypes.LevelWarning,
		Code:    evmtypes.CodeUnverified,
		Message: "Contract source code is not verified.",
	}
}

// FromProxyDetect flags an upgradeable proxy.
func FromProxyDetect(isProxy bool, proxyType string) *evmtypes.Finding {
	if !isProxy {
		return nil
	}
	return &evmtypes.Finding{
		Level:   evmtypes.LevelWarning,
		Code:    evmtypes.CodeUpgradeable,
		Message: fmt.Sprintf("Contract is an upgradeable proxy (%s).", proxyType),
	}
}

// FromContractAge flags a newly deployed contract as a lower-trust signal.
func FromContractAge(ageDays *int, threshold int) *evmtypes.Finding {
	if ageDays == nil || *ageDays >= threshold {
		return nil
	}
	return &evmtypes.Finding{
		Level:   evmtypes.LevelInfo,
		Code:    evmtypes.CodeNewContract,
		Message: fmt.Sprintf("Contract was deployed %d day(s) ago.", *ageDays),
	}
}

// FromActivity flags a contract with very few historical transactions.
func FromActivity(txCount *int64, threshold int64) *evmtypes.Finding {
	if txCount == nil || *txCount >= threshold {
		return nil
	}
	return &evmtypes.Finding{
		Level:   evmtypes.LevelInfo,
		Code:    evmtypes.CodeLowActivity,
		Message: fmt.Sprintf("Contract has only %d recorded transaction(s).", *txCount),
	}
}

// FromApprovalTarget flags the spender of an approve/setApprovalForAll
// call: APPROVAL_TO_EOA (warning) for an externally-owned account,
// APPROVAL_TO_DANGEROUS_CONTRACT (warning) for an unverified contract, and
// APPROVAL_TARGET_MISMATCH (info) for a verified contract that matches no
// recognized protocol. A verified, recognized spender yields nil.
func FromApprovalTarget(spenderVerified, spenderIsEOA, spenderIsKnownProtocol bool) *evmtypes.Finding {
	switch {
	case spenderIsEOA:
		return &evmtypes.Finding{
			Level:   evmtypes.LevelWarning,
			Code:    evmtypes.CodeApprovalToEOA,
			Message: "Approval grants spending rights to an externally-owned account, not a contract.",
		}
	case !spenderVerified:
		return &evmtypes.Finding{
			Level:   evmtypes.LevelWarning,
			Code:    evmtypes.CodeApprovalToDangerous,
			Message: "Approval spender contract is unverified.",
		}
	case !spenderIsKnownProtocol:
		return &evmtypes.Finding{
			Level:   evmtypes.LevelInfo,
			Code:    evmtypes.CodeApprovalTargetMismatch,
			Message: "Approval spender does not match any recognized protocol contract.",
		}
	}
	return nil
}

// FromTyposquat flags a protocol name that closely resembles, but doesn't
// exactly match, a well-known protocol name (e.g. "Un1swap").
func FromTyposquat(candidateName string, wellKnownNames []string, maxDistance int) *evmtypes.Finding {
	for _, known := range wellKnownNames {
		if candidateName == known {
			return nil
		}
		if levenshtein(candidateName, known) <= maxDistance {
			return &evmtypes.Finding{
				Level:   evmtypes.LevelWarning,
				Code:    evmtypes.CodePossibleTyposquat,
				Message: fmt.Sprintf("Contract name %q closely resembles the well-known protocol %q.", candidateName, known),
			}
		}
	}
	return nil
}

// levenshtein computes edit distance with O(len(b)) memory.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// FromSimulation folds a SimulationResult into SIM_* findings.
func FromSimulation(sim *evmtypes.SimulationResult) []evmtypes.Finding {
	if sim == nil {
		return nil
	}
	var out []evmtypes.Finding
	if !sim.Success {
		msg := "Simulation reverted."
		if sim.RevertReason != "" {
			msg = fmt.Sprintf("Simulation reverted: %s", sim.RevertReason)
		}
		out = append(out, evmtypes.Finding{Level: evmtypes.LevelWarning, Code: evmtypes.CodeSimRevert, Message: msg})
	}
	if sim.Balances.Confidence != evmtypes.DeltaConfidenceHigh || sim.Approvals.Confidence != evmtypes.DeltaConfidenceHigh {
		out = append(out, evmtypes.Finding{
			Level:   evmtypes.LevelInfo,
			Code:    evmtypes.CodeSimCoverageIncomplete,
			Message: "Simulation could not fully resolve every balance/approval delta.",
		})
	}
	return out
}
