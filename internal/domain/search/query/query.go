// Package query holds the engine-agnostic structured full-text query.
package query

import (
	"math"
	"time"
)

// Clause is a node of the query clause tree.
type Clause interface {
	isClause()
}

// Phrase matches Text as a phrase, allowing up to Slop positions of reordering.
type Phrase struct {
	Field string
	Text  string
	Slop  int
}

// Match matches any token of Text. Fuzziness is empty for exact token matching,
// otherwise an edit distance spec ("AUTO", "1", "2").
type Match struct {
	Field     string
	Text      string
	Fuzziness string
}

// AnyOf matches when at least one clause matches.
type AnyOf struct {
	Clauses []Clause
}

// AllOf matches when every clause matches.
type AllOf struct {
	Clauses []Clause
}

func (Phrase) isClause() {}
func (Match) isClause()  {}
func (AnyOf) isClause()  {}
func (AllOf) isClause()  {}

// BoostKind identifies the role of a weighted clause.
type BoostKind string

// Boost kinds, strongest first.
const (
	BoostExactPhrase    BoostKind = "exact_phrase"
	BoostStrippedPhrase BoostKind = "stripped_phrase"
	BoostToken          BoostKind = "token"
	BoostFuzzy          BoostKind = "fuzzy"
	BoostHighlight      BoostKind = "highlight"
)

// Weighted is a clause contributing Weight to the score when it matches.
type Weighted struct {
	Clause Clause
	Weight float64
	Kind   BoostKind
}

// Decay is a gaussian decay over a date field anchored at the current time.
// A document Scale old scores Decay times a fresh one.
type Decay struct {
	Field string
	Scale time.Duration
	Decay float64
}

// Factor returns the multiplier for a document of the given age.
func (d Decay) Factor(age time.Duration) float64 {
	if age < 0 {
		age = -age
	}
	if d.Scale <= 0 || d.Decay <= 0 || d.Decay >= 1 {
		return 1
	}
	scale := d.Scale.Hours()
	sigma2 := -(scale * scale) / (2 * math.Log(d.Decay))
	x := age.Hours()
	return math.Exp(-(x * x) / (2 * sigma2))
}

// ScaleDays returns the decay horizon in whole days.
func (d Decay) ScaleDays() int {
	return int(d.Scale / (24 * time.Hour))
}

// Highlight is the highlight sub-query, independent of filter and boosts.
type Highlight struct {
	Field        string
	Clauses      []Weighted
	FragmentSize int
	Fragments    int
}

// Suggest requests alternate spellings of Text from Field.
type Suggest struct {
	Name  string
	Text  string
	Field string
	Mode  string
}

// Query is the structured full-text query built from a session log.
type Query struct {
	// Filter clauses are conjoined and do not score.
	Filter []Clause
	// Boosts are summed into the base score.
	Boosts    []Weighted
	Decay     *Decay
	Highlight *Highlight
	Suggest   *Suggest
	Size      int
}
