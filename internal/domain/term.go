package domain

// KeyPrefix namespaces every key casequery writes to the shared store.
const KeyPrefix = "casequery:"

// Term is a phrase with its stopword-stripped form (immutable value object).
// The stripped form is computed once and travels with the term; it is never
// recomputed from the text after construction.
type Term struct {
	text     string
	stripped string
	priority int
}

// NewTerm creates a Term and computes its stripped form.
func NewTerm(text string) Term {
	return Term{text: text, stripped: StripStopwords(text)}
}

// NewPriorityTerm creates a highlight Term carrying a priority (1 = most important).
func NewPriorityTerm(text string, priority int) Term {
	t := NewTerm(text)
	if priority > 0 {
		t.priority = priority
	}
	return t
}

// ReconstructTerm creates a Term from stored parts without recomputing the stripped form.
func ReconstructTerm(text, stripped string, priority int) Term {
	return Term{text: text, stripped: stripped, priority: priority}
}

// Text returns the phrase as typed or generated.
func (t Term) Text() string { return t.text }

// Stripped returns the stopword-stripped phrase.
func (t Term) Stripped() string { return t.stripped }

// Priority returns the highlight priority, 0 when absent.
func (t Term) Priority() int { return t.priority }

// HasContent reports whether the stripped phrase is non-empty.
func (t Term) HasContent() bool { return t.stripped != "" }

// TermGroup is an ordered list of interchangeable phrases for one concept.
type TermGroup []Term

// Expansion is the result of expanding one raw query.
type Expansion struct {
	Search    []TermGroup
	Highlight []Term
}

// NewExpansion annotates generator output with stripped forms.
func NewExpansion(search [][]string, highlight []Term) Expansion {
	groups := make([]TermGroup, len(search))
	for i, phrases := range search {
		group := make(TermGroup, len(phrases))
		for j, p := range phrases {
			group[j] = NewTerm(p)
		}
		groups[i] = group
	}
	return Expansion{Search: groups, Highlight: highlight}
}

// FallbackExpansion is the single-group, single-term expansion used when the generator
// is unavailable: the raw query verbatim.
func FallbackExpansion(raw string) Expansion {
	t := NewTerm(raw)
	return Expansion{
		Search:    []TermGroup{{t}},
		Highlight: []Term{t},
	}
}

// Turn is one query submitted within a session.
type Turn struct {
	Query     string
	Expansion Expansion
}

// Log is the ordered session query log. Order is display order.
type Log []Turn

// Append returns the log with turn added at the end.
func (l Log) Append(turn Turn) Log {
	out := make(Log, len(l), len(l)+1)
	copy(out, l)
	return append(out, turn)
}

// Latest returns the most recent turn.
func (l Log) Latest() (Turn, bool) {
	if len(l) == 0 {
		return Turn{}, false
	}
	return l[len(l)-1], true
}

// Queries returns the raw query texts in order.
func (l Log) Queries() []string {
	out := make([]string, len(l))
	for i, t := range l {
		out[i] = t.Query
	}
	return out
}
