package answer

import (
	"fmt"
	"strings"

	"medrag/internal/domain"
)

// NoSourcesMarker is the context placeholder used when retrieval found
// nothing usable for the question.
const NoSourcesMarker = "No relevant articles were found in the index."

// BuildContext renders the top retrieval results into the prompt context.
// At most maxSources results are included, each truncated to charBudget
// characters of article text.
func BuildContext(results []domain.RankedResult, maxSources, charBudget int) string {
	if len(results) == 0 {
		return NoSourcesMarker
	}
	if len(results) > maxSources {
		results = results[:maxSources]
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[Source %d] %s", i+1, r.Title)
		if r.Year > 0 {
			fmt.Fprintf(&b, " (%d)", r.Year)
		}
		if r.DOI != "" {
			fmt.Fprintf(&b, "\nDOI: %s", r.DOI)
		}
		fmt.Fprintf(&b, "\nRelevance: %.2f%%", r.RelevanceScore)

		// Abstract first, then as much full content as the per-source
		// budget allows.
		text := r.Abstract
		if r.Content != "" {
			text = strings.TrimSpace(r.Abstract + "\n" + r.Content)
		} else if r.ContentPreview != "" && r.ContentPreview != r.Abstract {
			text = strings.TrimSpace(r.Abstract + "\n" + r.ContentPreview)
		}
		text = domain.Truncate(text, charBudget)
		if text != "" {
			b.WriteString("\n")
			b.WriteString(text)
		}
		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n")
}

// buildPrompt frames the question and the source context for the model.
func buildPrompt(question, context string) string {
	return fmt.Sprintf(`You are a medical literature assistant. Answer the question using only the numbered sources below. Cite sources as [Source N]. If the sources do not contain the answer, say so.

Sources:
%s

Question: %s

Answer:`, context, question)
}
