// Package query builds the structured full-text query for a session log.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/casequery/internal/domain"
	domquery "github.com/kailas-cloud/casequery/internal/domain/search/query"
)

// GroupMode decides how the phrases of one term group combine in the filter.
type GroupMode string

const (
	// GroupAll requires every phrase of a group to match.
	GroupAll GroupMode = "all"
	// GroupAny requires at least one phrase of a group to match.
	GroupAny GroupMode = "any"
)

// Weights are the constant boost weights, strongest first.
type Weights struct {
	ExactPhrase    float64
	StrippedPhrase float64
	Token          float64
	Fuzzy          float64
}

// Params configures the builder.
type Params struct {
	Field     string
	DateField string

	Weights   Weights
	Slop      int
	Fuzzy     bool
	Fuzziness string
	GroupMode GroupMode

	DecayScale time.Duration
	Decay      float64

	HighlightSlop  int
	HighlightBoost float64
	FragmentSize   int
	Fragments      int

	SuggestName string
	Size        int
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		Field:          "document_text",
		DateField:      "document_date",
		Weights:        Weights{ExactPhrase: 10, StrippedPhrase: 5, Token: 2, Fuzzy: 1},
		Slop:           20,
		Fuzzy:          true,
		Fuzziness:      "AUTO",
		GroupMode:      GroupAll,
		DecayScale:     300 * 24 * time.Hour,
		Decay:          0.5,
		HighlightSlop:  20,
		HighlightBoost: 1,
		FragmentSize:   50,
		Fragments:      18,
		SuggestName:    "spellcheck",
		Size:           50,
	}
}

// Validate checks the params for internal consistency.
func (p Params) Validate() error {
	var errs []error
	if p.Field == "" {
		errs = append(errs, errors.New("field is required"))
	}
	w := p.Weights
	if w.Fuzzy <= 0 {
		errs = append(errs, fmt.Errorf("fuzzy weight must be positive, got %v", w.Fuzzy))
	}
	if w.ExactPhrase <= w.StrippedPhrase || w.StrippedPhrase <= w.Token || w.Token <= w.Fuzzy {
		errs = append(errs, fmt.Errorf(
			"weights must be strictly decreasing exact > stripped > token > fuzzy, got %v > %v > %v > %v",
			w.ExactPhrase, w.StrippedPhrase, w.Token, w.Fuzzy))
	}
	if p.Slop < 0 || p.HighlightSlop < 0 {
		errs = append(errs, errors.New("slop must not be negative"))
	}
	if p.GroupMode != GroupAll && p.GroupMode != GroupAny {
		errs = append(errs, fmt.Errorf("group mode must be %q or %q, got %q", GroupAll, GroupAny, p.GroupMode))
	}
	if p.Decay < 0 || p.Decay >= 1 {
		errs = append(errs, fmt.Errorf("decay must be in [0, 1), got %v", p.Decay))
	}
	if p.HighlightBoost <= 0 {
		errs = append(errs, fmt.Errorf("highlight boost must be positive, got %v", p.HighlightBoost))
	}
	if p.Size <= 0 {
		errs = append(errs, fmt.Errorf("size must be positive, got %d", p.Size))
	}
	return errors.Join(errs...)
}

// Builder turns a session log into a domquery.Query.
type Builder struct {
	p Params
}

// New validates params and returns a builder.
func New(p Params) (*Builder, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("query params: %w", err)
	}
	return &Builder{p: p}, nil
}

// Params returns the builder's tuning.
func (b *Builder) Params() Params { return b.p }

// Build is a pure function of the whole log. Every turn narrows the filter and
// adds boosts; only the latest turn drives highlighting and spelling suggestions.
func (b *Builder) Build(log domain.Log) (*domquery.Query, error) {
	latest, ok := log.Latest()
	if !ok {
		return nil, domain.ErrEmptyLog
	}

	q := &domquery.Query{Size: b.p.Size}
	for _, turn := range log {
		if c := b.turnFilter(turn); c != nil {
			q.Filter = append(q.Filter, c)
		}
		q.Boosts = append(q.Boosts, b.turnBoosts(turn)...)
	}

	if b.p.DateField != "" && b.p.DecayScale > 0 && b.p.Decay > 0 {
		q.Decay = &domquery.Decay{Field: b.p.DateField, Scale: b.p.DecayScale, Decay: b.p.Decay}
	}
	q.Highlight = b.highlight(latest)
	q.Suggest = &domquery.Suggest{Name: b.p.SuggestName, Text: latest.Query, Field: b.p.Field, Mode: "always"}
	return q, nil
}

// turnFilter is the disjunction over the turn's non-empty groups, nil when there are none.
func (b *Builder) turnFilter(turn domain.Turn) domquery.Clause {
	var groups []domquery.Clause
	for _, group := range turn.Expansion.Search {
		if len(group) == 0 {
			continue
		}
		phrases := make([]domquery.Clause, len(group))
		for i, term := range group {
			phrases[i] = domquery.Phrase{Field: b.p.Field, Text: filterText(term), Slop: b.p.Slop}
		}
		if b.p.GroupMode == GroupAny {
			groups = append(groups, domquery.AnyOf{Clauses: phrases})
		} else {
			groups = append(groups, domquery.AllOf{Clauses: phrases})
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return domquery.AnyOf{Clauses: groups}
}

// filterText is the stripped phrase, or the raw phrase when it is all stopwords.
func filterText(t domain.Term) string {
	if t.HasContent() {
		return t.Stripped()
	}
	return t.Text()
}

func (b *Builder) turnBoosts(turn domain.Turn) []domquery.Weighted {
	var out []domquery.Weighted
	w := b.p.Weights
	for _, group := range turn.Expansion.Search {
		for _, term := range group {
			out = append(out, domquery.Weighted{
				Clause: domquery.Phrase{Field: b.p.Field, Text: term.Text(), Slop: b.p.Slop},
				Weight: w.ExactPhrase,
				Kind:   domquery.BoostExactPhrase,
			})
			if !term.HasContent() {
				continue
			}
			out = append(out,
				domquery.Weighted{
					Clause: domquery.Phrase{Field: b.p.Field, Text: term.Stripped(), Slop: b.p.Slop},
					Weight: w.StrippedPhrase,
					Kind:   domquery.BoostStrippedPhrase,
				},
				domquery.Weighted{
					Clause: domquery.Match{Field: b.p.Field, Text: term.Stripped()},
					Weight: w.Token,
					Kind:   domquery.BoostToken,
				},
			)
			if b.p.Fuzzy {
				out = append(out, domquery.Weighted{
					Clause: domquery.Match{Field: b.p.Field, Text: term.Stripped(), Fuzziness: b.p.Fuzziness},
					Weight: w.Fuzzy,
					Kind:   domquery.BoostFuzzy,
				})
			}
		}
	}
	return out
}

// highlight draws only from the latest turn's highlight terms; terms without content
// are skipped, which can leave the highlight with no clauses.
func (b *Builder) highlight(latest domain.Turn) *domquery.Highlight {
	h := &domquery.Highlight{Field: b.p.Field, FragmentSize: b.p.FragmentSize, Fragments: b.p.Fragments}
	for _, term := range latest.Expansion.Highlight {
		if !term.HasContent() {
			continue
		}
		boost := b.p.HighlightBoost
		if term.Priority() > 0 {
			boost /= float64(term.Priority())
		}
		h.Clauses = append(h.Clauses, b.highlightClause(term.Stripped(), boost))
	}
	return h
}

func (b *Builder) highlightClause(text string, boost float64) domquery.Weighted {
	return domquery.Weighted{
		Clause: domquery.Phrase{Field: b.p.Field, Text: text, Slop: b.p.HighlightSlop},
		Weight: boost,
		Kind:   domquery.BoostHighlight,
	}
}
