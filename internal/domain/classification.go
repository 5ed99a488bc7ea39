package domain

// MaxClassificationCategories caps how many categories a classification names.
const MaxClassificationCategories = 2

// QueryClassification is the ephemeral result of routing a query against
// the category set. Invariant: empty Categories implies ShouldSearchAll.
type QueryClassification struct {
	Categories      []string
	Confidence      float64
	ShouldSearchAll bool
	Reasoning       string
}

// SearchAll builds a classification that bypasses category narrowing.
// This is the safe fallback for every failure path.
func SearchAll(confidence float64, reasoning string) QueryClassification {
	return QueryClassification{
		Confidence:      confidence,
		ShouldSearchAll: true,
		Reasoning:       reasoning,
	}
}
