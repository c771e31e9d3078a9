package elastic

import (
	"fmt"

	domquery "github.com/kailas-cloud/casequery/internal/domain/search/query"
)

// Body is a rendered Elasticsearch search request body.
type Body map[string]any

// Render translates a structured query into a search body. Boosts are summed by an
// inner function_score that replaces the filter score; the gaussian date decay
// multiplies it in an outer function_score.
func Render(q *domquery.Query) (Body, error) {
	filter := make([]any, 0, len(q.Filter))
	for _, c := range q.Filter {
		rendered, err := renderClause(c, 0)
		if err != nil {
			return nil, err
		}
		filter = append(filter, rendered)
	}

	functions := make([]any, 0, len(q.Boosts))
	for _, w := range q.Boosts {
		rendered, err := renderClause(w.Clause, 0)
		if err != nil {
			return nil, err
		}
		functions = append(functions, map[string]any{"filter": rendered, "weight": w.Weight})
	}

	var scored any = map[string]any{
		"function_score": map[string]any{
			"query":      map[string]any{"bool": map[string]any{"filter": filter}},
			"functions":  functions,
			"score_mode": "sum",
			"boost_mode": "replace",
		},
	}
	if len(functions) == 0 {
		scored = map[string]any{"bool": map[string]any{"filter": filter}}
	}

	if d := q.Decay; d != nil {
		scored = map[string]any{
			"function_score": map[string]any{
				"query": scored,
				"functions": []any{map[string]any{
					"gauss": map[string]any{
						d.Field: map[string]any{
							"origin": "now",
							"scale":  fmt.Sprintf("%dd", d.ScaleDays()),
							"decay":  d.Decay,
						},
					},
				}},
				"score_mode": "multiply",
				"boost_mode": "multiply",
			},
		}
	}

	body := Body{"query": scored, "size": q.Size, "track_total_hits": true}

	if h := q.Highlight; h != nil && len(h.Clauses) > 0 {
		should := make([]any, 0, len(h.Clauses))
		for _, w := range h.Clauses {
			rendered, err := renderClause(w.Clause, w.Weight)
			if err != nil {
				return nil, err
			}
			should = append(should, rendered)
		}
		body["highlight"] = map[string]any{
			"require_field_match": true,
			"fields": map[string]any{
				h.Field: map[string]any{
					"type":                "unified",
					"fragment_size":       h.FragmentSize,
					"number_of_fragments": h.Fragments,
					"matched_fields":      []string{h.Field},
					"highlight_query":     map[string]any{"bool": map[string]any{"should": should}},
				},
			},
		}
	}

	if s := q.Suggest; s != nil && s.Text != "" {
		body["suggest"] = map[string]any{
			"text": s.Text,
			s.Name: map[string]any{
				"term": map[string]any{"field": s.Field, "suggest_mode": s.Mode},
			},
		}
	}
	return body, nil
}

// renderClause renders a clause; boost is applied to leaves when positive.
func renderClause(c domquery.Clause, boost float64) (any, error) {
	switch c := c.(type) {
	case domquery.Phrase:
		params := map[string]any{"query": c.Text, "slop": c.Slop}
		if boost > 0 {
			params["boost"] = boost
		}
		return map[string]any{"match_phrase": map[string]any{c.Field: params}}, nil
	case domquery.Match:
		params := map[string]any{"query": c.Text}
		if c.Fuzziness != "" {
			params["fuzziness"] = c.Fuzziness
		}
		if boost > 0 {
			params["boost"] = boost
		}
		return map[string]any{"match": map[string]any{c.Field: params}}, nil
	case domquery.AnyOf:
		should, err := renderAll(c.Clauses, boost)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"should": should, "minimum_should_match": 1}}, nil
	case domquery.AllOf:
		must, err := renderAll(c.Clauses, boost)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"must": must}}, nil
	default:
		return nil, fmt.Errorf("unsupported clause %T", c)
	}
}

func renderAll(clauses []domquery.Clause, boost float64) ([]any, error) {
	out := make([]any, 0, len(clauses))
	for _, c := range clauses {
		rendered, err := renderClause(c, boost)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}
