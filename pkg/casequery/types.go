package casequery

import (
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

// Page is the outcome of one search turn.
type Page struct {
	Hits      []Hit
	Total     int    // engine match count, may exceed len(Hits)
	Corrected string // "did you mean" query, empty when none
	Session   string // pass back on the next turn
	Queries   []string
	Degraded  bool // expansion fell back to the verbatim query
	Searched  bool // false for a blank query
	// GenerationTokens is the generator token count spent on this turn.
	GenerationTokens int
}

// Hit is one judgment in a Page. Snippets hold highlighted fragments with
// matches wrapped in <em> tags; the surrounding text is not escaped.
type Hit struct {
	Score       float64
	Date        string
	CaseName    string
	DocumentURL string
	Snippets    []string
}

// Document is one judgment to index. Date is YYYY-MM-DD.
type Document struct {
	ID          string
	Text        string
	Date        string
	CaseName    string
	DocumentURL string
}

// Explanation is a prepared turn that was not sent to the engine.
type Explanation struct {
	Queries  []string
	Session  string
	Degraded bool
	// Body is the Elasticsearch request body the turn would send.
	Body map[string]any
}

func pageFromUC(p searchuc.Page) Page {
	out := Page{
		Hits:      make([]Hit, len(p.Hits)),
		Total:     p.Total,
		Corrected: p.Corrected,
		Session:   p.Session,
		Queries:   p.Queries,
		Degraded:  p.Degraded,
		Searched:  p.Searched,
	}
	for i := range p.Hits {
		out.Hits[i] = hitFromDomain(&p.Hits[i])
	}
	return out
}

func hitFromDomain(h *result.SearchHit) Hit {
	return Hit{
		Score:       h.Score(),
		Date:        h.Date(),
		CaseName:    h.CaseName(),
		DocumentURL: h.DocumentURL(),
		Snippets:    h.Snippets(),
	}
}
