package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/kailas-cloud/casequery/internal/config"
	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/session"
	queryuc "github.com/kailas-cloud/casequery/internal/usecase/query"
)

func TestQueryParams_DefaultsMatchBuilder(t *testing.T) {
	var cfg config.Config
	cfg.ApplyDefaults()

	got := queryParams(cfg.Query)
	if err := got.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	want := queryuc.DefaultParams()
	if got != want {
		t.Errorf("config defaults drifted from builder defaults:\n got %+v\nwant %+v", got, want)
	}
}

func TestSessionDecodeCommand(t *testing.T) {
	log := domain.Log{}.Append(domain.Turn{
		Query:     "denial of sanction",
		Expansion: domain.NewExpansion([][]string{{"denial of sanction"}}, []domain.Term{domain.NewPriorityTerm("sanction", 1)}),
	})
	token, err := session.Encode(log)
	if err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"session", "decode", token})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var turns []turnView
	if err := json.Unmarshal(out.Bytes(), &turns); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(turns) != 1 || turns[0].Query != "denial of sanction" {
		t.Fatalf("turns = %+v", turns)
	}
	if s := turns[0].Search[0][0]; s.Stripped != "denial sanction" {
		t.Errorf("search term = %+v", s)
	}
	if h := turns[0].Highlight[0]; h.Text != "sanction" || h.Priority != 1 {
		t.Errorf("highlight = %+v", h)
	}
}

func TestSessionDecodeCommand_BadToken(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"session", "decode", "!!not-a-token!!"})
	if err := root.Execute(); err == nil {
		t.Error("expected error")
	}
}
