package classify

import (
	"fmt"
	"strings"

	"github.com/kbase-cloud/queryd/internal/domain"
)

const maxPromptKeywords = 5

// buildClassifyPrompt renders the completion-stage prompt. The model is asked
// for a single JSON object; anything around it is stripped before parsing.
func buildClassifyPrompt(query string, cats []domain.Category) string {
	var b strings.Builder
	b.WriteString("You classify a user query against a fixed set of knowledge base categories.\n\n")
	b.WriteString("Categories:\n")
	for _, cat := range cats {
		fmt.Fprintf(&b, "- %s: %s", cat.Name, cat.Description)
		if len(cat.Keywords) > 0 {
			kws := cat.Keywords
			if len(kws) > maxPromptKeywords {
				kws = kws[:maxPromptKeywords]
			}
			fmt.Fprintf(&b, " (keywords: %s)", strings.Join(kws, ", "))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nQuery: %q\n\n", query)
	b.WriteString("Pick at most ")
	fmt.Fprintf(&b, "%d", domain.MaxClassificationCategories)
	b.WriteString(" category names from the list above. If no category fits, return an empty list and set shouldSearchAll to true.\n\n")
	b.WriteString("Respond with only a JSON object:\n")
	b.WriteString(`{"categories": ["name"], "confidence": 0.0, "shouldSearchAll": false, "reasoning": "one sentence"}`)
	b.WriteByte('\n')
	return b.String()
}
