package evmtypes

// Recommendation is the final verdict returned to callers. Its order is
// canonical and used everywhere: threshold comparison, exit-code mapping,
// and severity bucketing.
type Recommendation string

const (
	RecommendationOK      Recommendation = "ok"
	RecommendationCaution Recommendation = "caution"
	RecommendationWarning Recommendation = "warning"
	RecommendationDanger  Recommendation = "danger"
)

var recommendationRank = map[Recommendation]int{
	RecommendationOK:      0,
	RecommendationCaution: 1,
	RecommendationWarning: 2,
	RecommendationDanger:  3,
}

// Rank returns r's position in the canonical ok < caution < warning < danger
// order. Unrecognized values rank below ok (-1), so they never spuriously
// compare "risky".
func (r Recommendation) Rank() int {
	if v, ok := recommendationRank[r]; ok {
		return v
	}
	return -1
}

// AtLeast reports whether r is at or above threshold in the canonical order.
func (r Recommendation) AtLeast(threshold Recommendation) bool {
	return r.Rank() >= threshold.Rank()
}

// Max returns whichever of r, other ranks higher.
func (r Recommendation) Max(other Recommendation) Recommendation {
	if other.Rank() > r.Rank() {
		return other
	}
	return r
}
