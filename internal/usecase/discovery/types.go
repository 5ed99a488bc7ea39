package discovery

// CorpusDocument is the slice of a document the clustering prompt sees.
type CorpusDocument struct {
	ID      string
	Name    string
	Summary string
	Topics  []string
}

// DiscoveredCategory is one cluster proposed by the completion model, with
// member indices already resolved back to document IDs.
type DiscoveredCategory struct {
	Name        string
	Description string
	Keywords    []string
	DocumentIDs []string
}

// CategorySuggestion assigns a single piece of content to an existing or
// newly proposed category.
type CategorySuggestion struct {
	Category    string
	Confidence  float64
	IsNew       bool
	Description string
}
