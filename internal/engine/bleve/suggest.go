package bleve

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/search"

	"github.com/kailas-cloud/casequery/internal/domain/search/result"
)

const (
	maxSuggestEdits   = 2
	maxSuggestOptions = 5
	// minSuggestRunes matches the Elasticsearch term suggester's min_word_length.
	minSuggestRunes = 4
)

// tokens lower-cases text and splits it on anything but letters, digits and marks,
// approximating the standard analyzer.
func tokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// suggest emulates the term suggester in "always" mode: every token gets the dictionary
// terms within two edits, scored by edit similarity and ordered by score then frequency.
func (e *Engine) suggest(field, text string) ([]result.SuggestEntry, error) {
	words := tokens(text)
	if len(words) == 0 {
		return nil, nil
	}

	dict, err := e.index.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("field dict: %w", err)
	}
	defer dict.Close()

	entries := make([]result.SuggestEntry, len(words))
	for i, w := range words {
		entries[i].Text = w
	}
	for {
		de, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("field dict: %w", err)
		}
		if de == nil {
			break
		}
		for i, w := range words {
			if de.Term == w || len([]rune(w)) < minSuggestRunes {
				continue
			}
			dist, exceeded := search.LevenshteinDistanceMax(w, de.Term, maxSuggestEdits)
			if exceeded || dist == 0 {
				continue
			}
			entries[i].Options = append(entries[i].Options, result.SuggestOption{
				Text:  de.Term,
				Score: 1 - float64(dist)/float64(max(len([]rune(w)), len([]rune(de.Term)))),
				Freq:  int(de.Count),
			})
		}
	}

	for i := range entries {
		opts := entries[i].Options
		sort.SliceStable(opts, func(a, b int) bool {
			if opts[a].Score != opts[b].Score {
				return opts[a].Score > opts[b].Score
			}
			return opts[a].Freq > opts[b].Freq
		})
		if len(opts) > maxSuggestOptions {
			entries[i].Options = opts[:maxSuggestOptions]
		}
	}
	return entries, nil
}
