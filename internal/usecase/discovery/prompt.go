package discovery

import (
	"fmt"
	"strings"

	"github.com/kbase-cloud/queryd/internal/domain"
)

const maxSummaryRunes = 200

func buildDiscoveryPrompt(corpus []CorpusDocument) string {
	var b strings.Builder
	b.WriteString("You organize a document corpus into categories for retrieval.\n\n")
	b.WriteString("Documents:\n")
	for i, doc := range corpus {
		fmt.Fprintf(&b, "%d. %s: %s", i+1, doc.Name, truncateRunes(doc.Summary, maxSummaryRunes))
		if len(doc.Topics) > 0 {
			fmt.Fprintf(&b, " [topics: %s]", strings.Join(doc.Topics, ", "))
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nGroup these documents into 3-10 categories. Give each a short lowercase name, ")
	b.WriteString("a one-sentence description, 3-8 keywords, and the document numbers it contains. ")
	b.WriteString("Every document should appear in exactly one category.\n\n")
	b.WriteString("Respond with only a JSON object:\n")
	b.WriteString(`{"categories": [{"name": "example", "description": "...", "keywords": ["..."], "documentIndices": [1, 2]}]}`)
	b.WriteByte('\n')
	return b.String()
}

func buildSuggestPrompt(content string, cats []domain.Category) string {
	var b strings.Builder
	b.WriteString("Assign the document below to one of the existing categories, or propose a new one if none fits.\n\n")
	b.WriteString("Existing categories:\n")
	for _, cat := range cats {
		fmt.Fprintf(&b, "- %s: %s", cat.Name, cat.Description)
		if len(cat.Keywords) > 0 {
			fmt.Fprintf(&b, " (keywords: %s)", strings.Join(cat.Keywords, ", "))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nDocument:\n%s\n\n", truncateRunes(content, 1000))
	b.WriteString("Respond with only a JSON object:\n")
	b.WriteString(`{"category": "name", "confidence": 0.0, "description": "only for a new category"}`)
	b.WriteByte('\n')
	return b.String()
}

func buildSynthesizePrompt(content, name string) string {
	var b strings.Builder
	b.WriteString("There are no categories yet. Propose one category for the document below.\n\n")
	fmt.Fprintf(&b, "Document name: %s\n", name)
	fmt.Fprintf(&b, "Content:\n%s\n\n", truncateRunes(content, 1000))
	b.WriteString("Respond with only a JSON object:\n")
	b.WriteString(`{"category": "short lowercase name", "description": "one sentence"}`)
	b.WriteByte('\n')
	return b.String()
}
