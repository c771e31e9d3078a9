package bleve

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	domquery "github.com/kailas-cloud/casequery/internal/domain/search/query"
)

// maxFuzziness is the largest edit distance bleve supports.
const maxFuzziness = 2

// translate converts a clause to a bleve query. bleve phrases have no slop, so a
// phrase with slop becomes a conjunctive match of its tokens; a zero-slop phrase
// stays an exact phrase.
func translate(c domquery.Clause, boost float64) (blevequery.Query, error) {
	switch c := c.(type) {
	case domquery.Phrase:
		if c.Slop == 0 {
			q := bleve.NewMatchPhraseQuery(c.Text)
			q.SetField(c.Field)
			setBoost(q, boost)
			return q, nil
		}
		q := bleve.NewMatchQuery(c.Text)
		q.SetField(c.Field)
		q.SetOperator(blevequery.MatchQueryOperatorAnd)
		setBoost(q, boost)
		return q, nil
	case domquery.Match:
		if c.Fuzziness == "" {
			q := bleve.NewMatchQuery(c.Text)
			q.SetField(c.Field)
			setBoost(q, boost)
			return q, nil
		}
		words := tokens(c.Text)
		qs := make([]blevequery.Query, 0, len(words))
		for _, w := range words {
			fuzz, err := fuzziness(c.Fuzziness, w)
			if err != nil {
				return nil, err
			}
			q := bleve.NewMatchQuery(w)
			q.SetField(c.Field)
			q.SetFuzziness(fuzz)
			setBoost(q, boost)
			qs = append(qs, q)
		}
		if len(qs) == 1 {
			return qs[0], nil
		}
		return bleve.NewDisjunctionQuery(qs...), nil
	case domquery.AnyOf:
		qs, err := translateAll(c.Clauses, boost)
		if err != nil {
			return nil, err
		}
		return bleve.NewDisjunctionQuery(qs...), nil
	case domquery.AllOf:
		qs, err := translateAll(c.Clauses, boost)
		if err != nil {
			return nil, err
		}
		return bleve.NewConjunctionQuery(qs...), nil
	default:
		return nil, fmt.Errorf("unsupported clause %T", c)
	}
}

func translateAll(clauses []domquery.Clause, boost float64) ([]blevequery.Query, error) {
	out := make([]blevequery.Query, 0, len(clauses))
	for _, c := range clauses {
		q, err := translate(c, boost)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

type boostable interface {
	SetBoost(b float64)
}

func setBoost(q boostable, boost float64) {
	if boost > 0 {
		q.SetBoost(boost)
	}
}

// fuzziness maps an Elasticsearch fuzziness spec to a bleve edit distance for one
// word. AUTO follows Elasticsearch: exact up to 2 runes, 1 edit up to 5, else 2.
func fuzziness(spec, word string) (int, error) {
	if spec == "AUTO" {
		switch n := len([]rune(word)); {
		case n <= 2:
			return 0, nil
		case n <= 5:
			return 1, nil
		default:
			return maxFuzziness, nil
		}
	}
	n, err := strconv.Atoi(spec)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid fuzziness %q", spec)
	}
	return min(n, maxFuzziness), nil
}
