package elastic

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
)

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    source              `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Suggest map[string][]struct {
		Text    string `json:"text"`
		Options []struct {
			Text  string  `json:"text"`
			Score float64 `json:"score"`
			Freq  int     `json:"freq"`
		} `json:"options"`
	} `json:"suggest"`
}

type source struct {
	DocumentDate string `json:"document_date"`
	CaseName     string `json:"case_name"`
	DocumentURL  string `json:"document_url"`
}

func parseResponse(raw []byte, highlightField, suggestName string) (*result.Response, error) {
	var sr searchResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, domain.NewEngineError(0, "decode response: "+err.Error())
	}

	out := &result.Response{Total: sr.Hits.Total.Value, Hits: make([]result.Hit, len(sr.Hits.Hits))}
	for i, h := range sr.Hits.Hits {
		hit := result.Hit{
			ID:          h.ID,
			Date:        h.Source.DocumentDate,
			CaseName:    h.Source.CaseName,
			DocumentURL: h.Source.DocumentURL,
			Fragments:   fragments(h.Highlight, highlightField),
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits[i] = hit
	}

	for _, e := range sr.Suggest[suggestName] {
		entry := result.SuggestEntry{Text: e.Text, Options: make([]result.SuggestOption, len(e.Options))}
		for j, o := range e.Options {
			entry.Options[j] = result.SuggestOption{Text: o.Text, Score: o.Score, Freq: o.Freq}
		}
		out.Suggest = append(out.Suggest, entry)
	}
	return out, nil
}

// fragments flattens per-field highlights, the primary field first and the rest by name.
func fragments(byField map[string][]string, primary string) []string {
	out := append([]string(nil), byField[primary]...)
	rest := make([]string, 0, len(byField))
	for f := range byField {
		if f != primary {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	for _, f := range rest {
		out = append(out, byField[f]...)
	}
	return out
}

// errorReason extracts error.reason (or the root cause) from an error body.
func errorReason(raw []byte) string {
	var body struct {
		Error struct {
			Type      string `json:"type"`
			Reason    string `json:"reason"`
			RootCause []struct {
				Reason string `json:"reason"`
			} `json:"root_cause"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	reason := body.Error.Reason
	if reason == "" && len(body.Error.RootCause) > 0 {
		reason = body.Error.RootCause[0].Reason
	}
	if body.Error.Type != "" {
		reason = body.Error.Type + ": " + reason
	}
	return reason
}
