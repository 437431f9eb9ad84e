// Package chunker packs per-page text into chunks that fit the model's
// context window. Pages are appended greedily; a page that would push the
// current chunk past the budget starts a new one. A single page larger than
// the budget is emitted as its own oversized chunk; the model client owns
// the truncation boundary, nothing is dropped here.
package chunker

import (
	"fmt"
	"strings"
)

// DefaultBudget leaves headroom for the instruction prompt and reserved
// output tokens inside an 8K-token context window (~3.5 chars per token).
const DefaultBudget = 14000

// pageMarker separates pages inside a chunk. Informative for the model,
// never parsed as data.
func pageMarker(page int) string {
	return fmt.Sprintf("\n--- Page %d ---\n", page)
}

// Chunk splits pages into chunks whose length does not exceed budget, except
// for a single page that alone exceeds it. Empty pages are skipped.
func Chunk(pages []string, budget int) []string {
	if budget <= 0 {
		budget = DefaultBudget
	}

	var chunks []string
	var current strings.Builder

	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}

		current.WriteString(pageMarker(i+1))
		current.WriteString(page)
		if current.Len() >= budget {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
