package session

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/casequery/internal/domain"
)

// legacyEnvelope is the JSON token layout of the first release:
// {"resp": [[query, {"search": [[term...]...], "highlight": [term...]}], ...]}.
type legacyEnvelope struct {
	Resp []json.RawMessage `json:"resp"`
}

type legacyExpansion struct {
	Search    [][]legacyTerm `json:"search"`
	Highlight []legacyTerm   `json:"highlight"`
}

type legacyTerm struct {
	Text   string `json:"text"`
	NoStop string `json:"no_stop"`
}

func decodeLegacy(data []byte) (domain.Log, error) {
	var env legacyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domain.NewDecodeError("json", err)
	}
	if env.Resp == nil {
		return nil, domain.NewDecodeError("json", fmt.Errorf("missing resp"))
	}

	log := make(domain.Log, 0, len(env.Resp))
	for i, raw := range env.Resp {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return nil, domain.NewDecodeError("json", fmt.Errorf("turn %d: %w", i, err))
		}
		if len(pair) != 2 {
			return nil, domain.NewDecodeError("json", fmt.Errorf("turn %d: expected [query, expansion]", i))
		}

		var turn domain.Turn
		if err := json.Unmarshal(pair[0], &turn.Query); err != nil {
			return nil, domain.NewDecodeError("json", fmt.Errorf("turn %d query: %w", i, err))
		}
		var exp legacyExpansion
		if err := json.Unmarshal(pair[1], &exp); err != nil {
			return nil, domain.NewDecodeError("json", fmt.Errorf("turn %d expansion: %w", i, err))
		}

		turn.Expansion.Search = make([]domain.TermGroup, len(exp.Search))
		for g, group := range exp.Search {
			terms := make(domain.TermGroup, len(group))
			for j, t := range group {
				terms[j] = domain.ReconstructTerm(t.Text, t.NoStop, 0)
			}
			turn.Expansion.Search[g] = terms
		}
		turn.Expansion.Highlight = make([]domain.Term, len(exp.Highlight))
		for j, t := range exp.Highlight {
			turn.Expansion.Highlight[j] = domain.ReconstructTerm(t.Text, t.NoStop, 0)
		}

		log = append(log, turn)
	}
	return log, nil
}
