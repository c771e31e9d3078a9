// Package casequery embeds conversational search over court judgments in a Go
// program, without running the HTTP server.
//
// A session accumulates turns: every new query narrows the previous results.
// The session travels as an opaque token the caller hands back on the next turn.
//
//	client, _ := casequery.New(ctx,
//	    casequery.WithBleve(""), // in-memory index
//	    casequery.WithGenerator(myLLM, systemPrompt, fixPrompt),
//	)
//	defer client.Close()
//	_ = client.Index(ctx, docs)
//
//	page, _ := client.Search(ctx, "denial of sanction", "")
//	page, _ = client.Search(ctx, "public servant", page.Session)
//
// Without a generator every query is searched verbatim and pages report Degraded.
package casequery
