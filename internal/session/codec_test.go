package session

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/casequery/internal/domain"
)

func sampleLog() domain.Log {
	return domain.Log{
		{
			Query: "denial of sanction",
			Expansion: domain.Expansion{
				Search: []domain.TermGroup{
					{domain.NewTerm("denial of sanction"), domain.NewTerm("refusal of sanction")},
					{domain.NewTerm("prosecution")},
				},
				Highlight: []domain.Term{
					domain.NewPriorityTerm("sanction", 1),
					domain.NewPriorityTerm("prosecution", 2),
				},
			},
		},
		{
			Query: "क़ानून of the land",
			Expansion: domain.Expansion{
				Search:    []domain.TermGroup{{domain.ReconstructTerm("of the bail", "stale stripped", 0)}},
				Highlight: nil,
			},
		},
	}
}

func assertLogEqual(t *testing.T, got, want domain.Log) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Query != w.Query {
			t.Errorf("turn %d query = %q, want %q", i, g.Query, w.Query)
		}
		if (g.Expansion.Search == nil) != (w.Expansion.Search == nil) {
			t.Errorf("turn %d search nil-ness differs", i)
		}
		if len(g.Expansion.Search) != len(w.Expansion.Search) {
			t.Fatalf("turn %d groups = %d, want %d", i, len(g.Expansion.Search), len(w.Expansion.Search))
		}
		for j := range w.Expansion.Search {
			assertTermsEqual(t, g.Expansion.Search[j], w.Expansion.Search[j])
		}
		if (g.Expansion.Highlight == nil) != (w.Expansion.Highlight == nil) {
			t.Errorf("turn %d highlight nil-ness differs", i)
		}
		assertTermsEqual(t, g.Expansion.Highlight, w.Expansion.Highlight)
	}
}

func assertTermsEqual(t *testing.T, got, want []domain.Term) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("terms = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	logs := map[string]domain.Log{
		"empty":  {},
		"sample": sampleLog(),
		"empty group": {
			{Query: "x", Expansion: domain.Expansion{Search: []domain.TermGroup{{}, nil}, Highlight: []domain.Term{}}},
		},
		"no expansion": {{Query: ""}},
		"invalid utf-8": {
			{Query: "bail \xff plea", Expansion: domain.FallbackExpansion("bail \xff plea")},
		},
	}
	for name, log := range logs {
		t.Run(name, func(t *testing.T) {
			token, err := Encode(log)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if strings.ContainsAny(token, "+/=") {
				t.Errorf("token is not URL-safe: %q", token)
			}
			got, err := Decode(token)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			assertLogEqual(t, got, log)
		})
	}
}

func TestRoundTrip_PreservesStaleStripped(t *testing.T) {
	token, err := Encode(sampleLog())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s := got[1].Expansion.Search[0][0].Stripped(); s != "stale stripped" {
		t.Errorf("stripped = %q, want stored value", s)
	}
	if p := got[0].Expansion.Highlight[1].Priority(); p != 2 {
		t.Errorf("priority = %d, want 2", p)
	}
}

func TestDecode_EmptyToken(t *testing.T) {
	for _, token := range []string{"", "   "} {
		log, err := Decode(token)
		if err != nil {
			t.Fatalf("Decode(%q): %v", token, err)
		}
		if log == nil || len(log) != 0 {
			t.Errorf("Decode(%q) = %#v, want empty log", token, log)
		}
	}
}

func TestDecode_Legacy(t *testing.T) {
	raw := `{"resp":[["denial of sanction",{"search":[[{"text":"denial of sanction","no_stop":"denial sanction"}],[{"text":"prosecution","no_stop":"prosecution"}]],"highlight":[{"text":"sanction","no_stop":"sanction"}]}]]}`
	token := base64.URLEncoding.EncodeToString([]byte(raw))

	log, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(log) != 1 || log[0].Query != "denial of sanction" {
		t.Fatalf("log = %+v", log)
	}
	if len(log[0].Expansion.Search) != 2 {
		t.Fatalf("groups = %d", len(log[0].Expansion.Search))
	}
	if s := log[0].Expansion.Search[0][0].Stripped(); s != "denial sanction" {
		t.Errorf("stripped = %q", s)
	}
	if h := log[0].Expansion.Highlight; len(h) != 1 || h[0].Text() != "sanction" {
		t.Errorf("highlight = %+v", h)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tokens := map[string]string{
		"not base64":      "!!!",
		"unknown payload": base64.RawURLEncoding.EncodeToString([]byte("hello")),
		"bad zstd":        base64.RawURLEncoding.EncodeToString([]byte{0x28, 0xB5, 0x2F, 0xFD, 0x00}),
		"bad legacy json": base64.RawURLEncoding.EncodeToString([]byte(`{"resp":`)),
		"legacy no resp":  base64.RawURLEncoding.EncodeToString([]byte(`{}`)),
		"legacy bad pair": base64.RawURLEncoding.EncodeToString([]byte(`{"resp":[["only query"]]}`)),
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(token)
			if !errors.Is(err, domain.ErrDecode) {
				t.Errorf("err = %v, want ErrDecode", err)
			}
		})
	}
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	raw, err := encMode.Marshal(payload{Version: 99})
	if err != nil {
		t.Fatal(err)
	}
	token := base64.RawURLEncoding.EncodeToString(zstdEncoder.EncodeAll(raw, nil))

	_, err = Decode(token)
	var de *domain.DecodeError
	if !errors.As(err, &de) || de.Stage != "version" {
		t.Errorf("err = %v, want version DecodeError", err)
	}
}
