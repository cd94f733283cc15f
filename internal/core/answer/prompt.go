package answer

import (
	"fmt"
	"strings"

	"pdfrag/internal/core/ranking"
)

const systemPrompt = `You are a helpful assistant that answers questions using only the provided document context.

Instructions:
1. Answer ONLY from the context below. If the context does not contain the answer, say "I don't have enough information to answer this question."
2. Cite every piece of information you use with its bracketed source number, for example [1] or [2].
3. Do not make up or infer information that is not in the context.
4. Keep the answer concise.`

// NoContextAnswer is returned when retrieval finds nothing to ground an
// answer on. The generator is never called in that case.
const NoContextAnswer = "I couldn't find any relevant information to answer your question."

// BuildPrompt renders the system and user messages for one answer. Context
// lines are numbered 1-based in retrieval order so the model's markers line
// up with the citation resolver.
func BuildPrompt(query string, results ranking.ResultSet) (system, user string) {
	var b strings.Builder
	for i, h := range results {
		fmt.Fprintf(&b, "[%d] from '%s', page %d: %s\n", i+1, h.Filename, h.PageNumber, h.Text)
	}
	user = fmt.Sprintf("Please answer the following question based on the provided context:\n\nQuestion: %s\n\nContext:\n%s", query, b.String())
	return systemPrompt, user
}
