package ranking

import "strings"

// Conversational lead-ins that carry no retrieval signal. Checked as prefixes
// against the lowercased query, longest phrases first.
var leadIns = []string{
	"can you explain to me",
	"could you explain to me",
	"can you explain",
	"could you explain",
	"can you tell me",
	"could you tell me",
	"i'm trying to find",
	"i am trying to find",
	"i want to know",
	"i would like to know",
	"please explain",
	"please tell me",
	"tell me about",
	"what is the difference between",
	"what is",
	"what are",
	"what was",
	"what were",
	"who is",
	"who are",
	"how do i",
	"how does",
	"how do",
	"explain",
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"of": {}, "for": {}, "to": {}, "in": {}, "on": {}, "at": {}, "by": {}, "with": {},
	"and": {}, "or": {},
	"i": {}, "me": {}, "my": {}, "you": {}, "your": {},
	"do": {}, "does": {}, "did": {}, "can": {}, "could": {},
	"what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"please": {}, "about": {},
}

// PrepareQuery reduces a conversational question to its content terms:
// leading instructional phrasing is stripped, stop words are dropped and
// whitespace is collapsed. Only the retrieval-for-generation path uses this;
// direct search keeps the user's query verbatim.
func PrepareQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimRight(q, "?!.,;: ")

	for stripped := true; stripped; {
		stripped = false
		for _, p := range leadIns {
			if strings.HasPrefix(q, p+" ") {
				q = strings.TrimSpace(q[len(p):])
				stripped = true
			}
		}
	}

	fields := strings.Fields(q)
	kept := fields[:0]
	for _, f := range fields {
		if _, skip := stopWords[f]; !skip {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
