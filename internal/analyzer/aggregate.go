// Package analyzer aggregates findings gathered during decode and provider
// fan-out into a single AnalysisResult: deterministic ordering and
// deduplication, confidence scoring, the pure recommendation function, and
// the unlimited-approval and simulation folds.
package analyzer

import (
	"sort"

	"github.com/txguard/scanner/internal/evmtypes"
)

// Aggregate orders and deduplicates findings per spec §4.4 invariants 1-2:
// sorted by (severity, priority-table position), and for a given code only
// the highest-priority instance survives.
func Aggregate(findings []evmtypes.Finding) []evmtypes.Finding {
	bestByCode := make(map[evmtypes.Code]evmtypes.Finding)
	order := make([]evmtypes.Code, 0, len(findings))

	for _, f := range findings {
		existing, ok := bestByCode[f.Code]
		if !ok {
			bestByCode[f.Code] = f
			order = append(order, f.Code)
			continue
		}
		if rankFinding(f) < rankFinding(existing) {
			bestByCode[f.Code] = f
		}
	}

	out := make([]evmtypes.Finding, 0, len(order))
	for _, c := range order {
		out = append(out, bestByCode[c])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rankFinding(out[i]) < rankFinding(out[j])
	})
	return out
}

// rankFinding is the composite (severity, priority) sort key: severity
// dominates, priority-table position breaks ties within a severity.
func rankFinding(f evmtypes.Finding) int {
	return f.LevelRank()*10000 + evmtypes.FindingPriority(f.Code)
}

// Recommend is the pure recommendation function from spec §4.4: a function
// of the final (aggregated) finding set only.
func Recommend(findings []evmtypes.Finding) evmtypes.Recommendation {
	var dangerCount, warningCount int
	for _, f := range findings {
		switch f.Level {
		case evmtypes.LevelDanger:
			dangerCount++
		case evmtypes.LevelWarning:
			warningCount++
		}
	}
	switch {
	case dangerCount > 0:
		return evmtypes.RecommendationDanger
	case warningCount >= 2:
		return evmtypes.RecommendationCaution
	case warningCount == 1:
		return evmtypes.RecommendationWarning
	default:
		return evmtypes.RecommendationOK
	}
}

// FoldSimulation applies the simulation fold described in §4.4: a failed
// simulation raises an `ok` recommendation to `caution`, but never lowers
// it and never raises past `caution` on its own, and `danger` is never
// downgraded. Degraded delta-confidence is reported separately via
// RenderedVerdict rather than by mutating the recommendation.
func FoldSimulation(rec evmtypes.Recommendation, sim *evmtypes.SimulationResult) evmtypes.Recommendation {
	if sim == nil {
		return rec
	}
	if !sim.Success && rec == evmtypes.RecommendationOK {
		return evmtypes.RecommendationCaution
	}
	return rec
}

// RenderedVerdict is the CLI-facing annotation hook: it never mutates the
// underlying AnalysisResult.Recommendation, only the text a renderer shows
// alongside it, per Open Question resolution #3.
func RenderedVerdict(rec evmtypes.Recommendation, sim *evmtypes.SimulationResult) string {
	verdict := string(rec)
	if sim == nil {
		return verdict
	}
	if sim.Balances.Confidence != evmtypes.DeltaConfidenceHigh || sim.Approvals.Confidence != evmtypes.DeltaConfidenceHigh {
		return "BLOCK (UNVERIFIED) — simulation coverage incomplete"
	}
	return verdict
}
