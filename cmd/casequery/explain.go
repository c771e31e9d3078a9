package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/casequery/internal/engine/elastic"
	"github.com/kailas-cloud/casequery/internal/session"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

type explainOutput struct {
	Queries  []string     `json:"queries"`
	Degraded bool         `json:"degraded"`
	Session  string       `json:"session"`
	Turns    []turnView   `json:"turns"`
	Body     elastic.Body `json:"body"`
}

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var (
		token    string
		noExpand bool
	)
	cmd := &cobra.Command{
		Use:   "explain QUERY...",
		Short: "Print the Elasticsearch body a search turn would send, without searching",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			plan, err := a.search.Explain(cmd.Context(), searchuc.Request{
				Query:   strings.Join(args, " "),
				Session: token,
			}, !noExpand)
			if err != nil {
				return fmt.Errorf("explain: %w", err)
			}

			body, err := elastic.Render(plan.Query)
			if err != nil {
				return fmt.Errorf("render query: %w", err)
			}
			next, err := session.Encode(plan.Log)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), explainOutput{
				Queries:  plan.Log.Queries(),
				Degraded: plan.Degraded,
				Session:  next,
				Turns:    logView(plan.Log),
				Body:     body,
			})
		},
	}
	cmd.Flags().StringVar(&token, "session", "", "session token of the earlier turns")
	cmd.Flags().BoolVar(&noExpand, "no-expand", false, "skip the generator and search the query verbatim")
	return cmd
}
