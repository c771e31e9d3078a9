package results

import (
	"html/template"
	"regexp"
	"strings"
	"unicode"

	"github.com/kailas-cloud/casequery/internal/domain"
)

var emSpan = regexp.MustCompile(`(?s)<em>(.*?)</em>`)

// Vocabulary is the set of lower-cased words a highlight may legitimately mark.
type Vocabulary map[string]struct{}

// BuildVocabulary collects the stripped words of every turn's search phrases,
// the latest turn's highlight terms, the latest raw query and the corrected query.
func BuildVocabulary(log domain.Log, corrected string) Vocabulary {
	v := Vocabulary{}
	for _, turn := range log {
		for _, group := range turn.Expansion.Search {
			for _, term := range group {
				v.add(term.Stripped())
			}
		}
	}
	if latest, ok := log.Latest(); ok {
		for _, term := range latest.Expansion.Highlight {
			v.add(term.Stripped())
		}
		v.add(domain.StripStopwords(latest.Query))
	}
	v.add(domain.StripStopwords(corrected))
	return v
}

func (v Vocabulary) add(text string) {
	for _, w := range words(text) {
		v[w] = struct{}{}
	}
}

// Grounded reports whether any word of span is in the vocabulary.
func (v Vocabulary) Grounded(span string) bool {
	for _, w := range words(span) {
		if _, ok := v[w]; ok {
			return true
		}
	}
	return false
}

// words splits on anything that is not a letter or digit and lower-cases.
func words(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// CleanSnippets drops the <em> markup around spans with no vocabulary word, so the
// engine's stemmed or fuzzy matches do not highlight words nobody searched for.
func CleanSnippets(fragments []string, vocab Vocabulary) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = emSpan.ReplaceAllStringFunc(f, func(m string) string {
			inner := emSpan.FindStringSubmatch(m)[1]
			if vocab.Grounded(inner) {
				return m
			}
			return inner
		})
	}
	return out
}

// RenderSnippet escapes a cleaned fragment and re-renders its <em> spans as highlight marks.
func RenderSnippet(fragment string) template.HTML {
	var b strings.Builder
	last := 0
	for _, loc := range emSpan.FindAllStringSubmatchIndex(fragment, -1) {
		b.WriteString(template.HTMLEscapeString(fragment[last:loc[0]]))
		b.WriteString(`<mark class="highlight">`)
		b.WriteString(template.HTMLEscapeString(fragment[loc[2]:loc[3]]))
		b.WriteString(`</mark>`)
		last = loc[1]
	}
	b.WriteString(template.HTMLEscapeString(fragment[last:]))
	return template.HTML(b.String()) //nolint:gosec // every fragment byte is escaped above
}
