package index

// Typed request bodies for the search API. Only the fields a query sets are
// serialized, so the same shape serves lexical, vector and browse requests.

type searchBody struct {
	Query     *queryClause     `json:"query,omitempty"`
	KNN       *knnClause       `json:"knn,omitempty"`
	From      int              `json:"from,omitempty"`
	Size      int              `json:"size"`
	Source    *sourceFilter    `json:"_source,omitempty"`
	Highlight *highlightClause `json:"highlight,omitempty"`
}

type queryClause struct {
	Bool     *boolClause `json:"bool,omitempty"`
	MatchAll *struct{}   `json:"match_all,omitempty"`
}

type boolClause struct {
	Must   []matchClause  `json:"must,omitempty"`
	Filter []filterClause `json:"filter,omitempty"`
}

type matchClause struct {
	MultiMatch *multiMatchClause `json:"multi_match,omitempty"`
}

type multiMatchClause struct {
	Query              string   `json:"query"`
	Fields             []string `json:"fields"`
	MinimumShouldMatch string   `json:"minimum_should_match,omitempty"`
}

type filterClause struct {
	Terms map[string][]string `json:"terms,omitempty"`
}

type knnClause struct {
	Field         string         `json:"field"`
	QueryVector   []float32      `json:"query_vector"`
	K             int            `json:"k"`
	NumCandidates int            `json:"num_candidates"`
	Filter        []filterClause `json:"filter,omitempty"`
}

type sourceFilter struct {
	Excludes []string `json:"excludes"`
}

type highlightClause struct {
	Fields map[string]struct{} `json:"fields"`
}

func buildBody(q Query) searchBody {
	body := searchBody{
		From:   q.From,
		Size:   q.Size,
		Source: &sourceFilter{Excludes: []string{"embedding"}},
	}

	var filters []filterClause
	if len(q.DocumentIDs) > 0 {
		filters = []filterClause{{Terms: map[string][]string{"document_id": q.DocumentIDs}}}
	}

	switch {
	case q.Text != "":
		body.Query = &queryClause{Bool: &boolClause{
			Must: []matchClause{{MultiMatch: &multiMatchClause{
				Query:              q.Text,
				Fields:             []string{"filename^2", "text"},
				MinimumShouldMatch: "50%",
			}}},
			Filter: filters,
		}}
	case q.Vector != nil:
		body.KNN = &knnClause{
			Field:         "embedding",
			QueryVector:   q.Vector,
			K:             q.K,
			NumCandidates: q.NumCandidates,
			Filter:        filters,
		}
	default:
		if len(filters) > 0 {
			body.Query = &queryClause{Bool: &boolClause{Filter: filters}}
		} else {
			body.Query = &queryClause{MatchAll: &struct{}{}}
		}
	}

	if q.Highlight {
		body.Highlight = &highlightClause{Fields: map[string]struct{}{"text": {}}}
	}
	return body
}
