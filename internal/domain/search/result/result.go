package result

// Hit is one engine hit as returned by the backend, before post-processing.
type Hit struct {
	ID          string
	Score       float64
	Date        string
	CaseName    string
	DocumentURL string
	// Fragments are the highlighted fragments of every highlighted field, in field order.
	Fragments []string
}

// SuggestOption is one alternative spelling for a suggestion slot.
type SuggestOption struct {
	Text  string
	Score float64
	Freq  int
}

// SuggestEntry is one analyzed token of the suggestion text with its alternatives,
// best first.
type SuggestEntry struct {
	Text    string
	Options []SuggestOption
}

// Response is the engine response for one structured query.
type Response struct {
	Total   int
	Hits    []Hit
	Suggest []SuggestEntry
}

// SearchHit is a post-processed hit ready for presentation.
type SearchHit struct {
	score       float64
	date        string
	caseName    string
	documentURL string
	snippets    []string
}

// NewSearchHit creates a presentation hit.
func NewSearchHit(score float64, date, caseName, documentURL string, snippets []string) SearchHit {
	return SearchHit{
		score:       score,
		date:        date,
		caseName:    caseName,
		documentURL: documentURL,
		snippets:    snippets,
	}
}

// Score returns the relevance score.
func (h *SearchHit) Score() float64 { return h.score }

// Date returns the document date.
func (h *SearchHit) Date() string { return h.date }

// CaseName returns the case name.
func (h *SearchHit) CaseName() string { return h.caseName }

// DocumentURL returns the resolved viewer URL, empty when the document has no link.
func (h *SearchHit) DocumentURL() string { return h.documentURL }

// Snippets returns the cleaned highlighted snippets (emphasis as <em>).
func (h *SearchHit) Snippets() []string { return h.snippets }
