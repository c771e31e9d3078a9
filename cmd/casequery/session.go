package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect session tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "decode TOKEN",
		Short: "Print the turns carried by a session token as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := session.Decode(args[0])
			if err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), logView(log))
		},
	})
	return cmd
}

type termView struct {
	Text     string `json:"text"`
	Stripped string `json:"stripped"`
	Priority int    `json:"priority,omitempty"`
}

type turnView struct {
	Query     string       `json:"query"`
	Search    [][]termView `json:"search"`
	Highlight []termView   `json:"highlight"`
}

func logView(log domain.Log) []turnView {
	out := make([]turnView, len(log))
	for i, turn := range log {
		v := turnView{Query: turn.Query, Search: make([][]termView, len(turn.Expansion.Search))}
		for j, group := range turn.Expansion.Search {
			v.Search[j] = termsView(group)
		}
		v.Highlight = termsView(turn.Expansion.Highlight)
		out[i] = v
	}
	return out
}

func termsView(terms []domain.Term) []termView {
	out := make([]termView, len(terms))
	for i, t := range terms {
		out[i] = termView{Text: t.Text(), Stripped: t.Stripped(), Priority: t.Priority()}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
