package expand

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/kailas-cloud/casequery/internal/domain"
)

// ParseExpansion turns a generator response into an Expansion. The response must
// be a JSON object with exactly two keys:
//
//	{"search": [["phrase", ...], ...], "highlight": ["phrase" | ["phrase", priority], ...]}
//
// Markdown code fences, comments and trailing commas are tolerated; any other
// deviation fails with domain.ErrMalformedResponse.
func ParseExpansion(resp string) (domain.Expansion, error) {
	data := jsonc.ToJSON([]byte(stripFences(resp)))
	if err := rejectDuplicateKeys(data); err != nil {
		return domain.Expansion{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return domain.Expansion{}, malformed("decode: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Expansion{}, malformed("trailing data after object")
	}
	if doc == nil {
		return domain.Expansion{}, malformed("expected object, got null")
	}

	for key := range doc {
		if key != "search" && key != "highlight" {
			return domain.Expansion{}, malformed("unexpected key %q", key)
		}
	}

	search, err := parseSearch(doc["search"])
	if err != nil {
		return domain.Expansion{}, err
	}
	highlight, err := parseHighlight(doc["highlight"])
	if err != nil {
		return domain.Expansion{}, err
	}
	return domain.NewExpansion(search, highlight), nil
}

// rejectDuplicateKeys fails when the top-level object repeats a key, which a decode
// into a map would silently resolve to the last value. Syntax errors are left to the
// full decode.
func rejectDuplicateKeys(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		if seen[key] {
			return malformed("duplicate key %q", key)
		}
		seen[key] = true
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
	}
	return nil
}

func parseSearch(v any) ([][]string, error) {
	groups, ok := v.([]any)
	if !ok {
		return nil, malformed("search: expected array, got %s", typeName(v))
	}
	if len(groups) == 0 {
		return nil, malformed("search: no groups")
	}

	out := make([][]string, len(groups))
	for i, g := range groups {
		phrases, ok := g.([]any)
		if !ok {
			return nil, malformed("search[%d]: expected array, got %s", i, typeName(g))
		}
		if len(phrases) == 0 {
			return nil, malformed("search[%d]: empty group", i)
		}
		group := make([]string, len(phrases))
		for j, p := range phrases {
			s, ok := p.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, malformed("search[%d][%d]: expected non-blank string, got %s", i, j, typeName(p))
			}
			group[j] = s
		}
		out[i] = group
	}
	return out, nil
}

func parseHighlight(v any) ([]domain.Term, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, malformed("highlight: expected array, got %s", typeName(v))
	}

	out := make([]domain.Term, len(items))
	for i, item := range items {
		switch it := item.(type) {
		case string:
			out[i] = domain.NewTerm(it)
		case []any:
			term, err := parsePriorityPair(it)
			if err != nil {
				return nil, malformed("highlight[%d]: %v", i, err)
			}
			out[i] = term
		default:
			return nil, malformed("highlight[%d]: expected string or [string, int], got %s", i, typeName(item))
		}
	}
	return out, nil
}

func parsePriorityPair(pair []any) (domain.Term, error) {
	if len(pair) != 2 {
		return domain.Term{}, fmt.Errorf("expected [string, int] pair, got %d elements", len(pair))
	}
	text, ok := pair[0].(string)
	if !ok {
		return domain.Term{}, fmt.Errorf("pair text: expected string, got %s", typeName(pair[0]))
	}
	num, ok := pair[1].(json.Number)
	if !ok {
		return domain.Term{}, fmt.Errorf("pair priority: expected integer, got %s", typeName(pair[1]))
	}
	priority, err := num.Int64()
	if err != nil {
		return domain.Term{}, fmt.Errorf("pair priority: expected integer, got %s", num)
	}
	return domain.NewPriorityTerm(text, int(priority)), nil
}

// stripFences removes a surrounding ``` or ```json markdown fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedResponse, fmt.Sprintf(format, args...))
}
