// Package results post-processes engine responses for presentation.
package results

import (
	"strings"

	"github.com/kailas-cloud/casequery/internal/domain/search/result"
)

// accept reports whether a suggestion is trusted enough to replace the typed token.
func accept(o result.SuggestOption) bool {
	return (o.Freq > 5 && o.Score > 0.9) || (o.Freq > 50 && o.Score > 0.7)
}

// CorrectSpelling assembles a "did you mean" query from term suggestions: each
// slot takes its top option when trusted, otherwise keeps the analyzed token.
// It returns "" when the result equals original case-insensitively.
func CorrectSpelling(entries []result.SuggestEntry, original string) string {
	if len(entries) == 0 {
		return ""
	}

	tokens := make([]string, len(entries))
	for i, e := range entries {
		tokens[i] = e.Text
		if len(e.Options) > 0 && accept(e.Options[0]) {
			tokens[i] = e.Options[0].Text
		}
	}

	corrected := strings.Join(tokens, " ")
	if strings.EqualFold(corrected, original) {
		return ""
	}
	return corrected
}
