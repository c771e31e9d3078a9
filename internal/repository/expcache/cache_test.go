package expcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/casequery/internal/domain"
)

func sampleExpansion() domain.Expansion {
	return domain.Expansion{
		Search: []domain.TermGroup{
			{domain.NewTerm("denial of sanction"), domain.ReconstructTerm("of the", "stale", 0)},
		},
		Highlight: []domain.Term{domain.NewPriorityTerm("sanction", 2)},
	}
}

func TestStoreThenLookup(t *testing.T) {
	c, ms, counter := newTestCache(t, "v1")
	ctx := context.Background()

	c.Store(ctx, "denial of sanction", sampleExpansion())

	exp, ok := c.Lookup(ctx, "denial of sanction")
	if !ok {
		t.Fatal("expected hit")
	}
	if got := exp.Search[0][1].Stripped(); got != "stale" {
		t.Errorf("stripped = %q, want stored value", got)
	}
	if got := exp.Highlight[0].Priority(); got != 2 {
		t.Errorf("priority = %d", got)
	}
	for key, ttl := range ms.ttls {
		if !strings.HasPrefix(key, "casequery:exp_cache:") || ttl != time.Hour {
			t.Errorf("stored %q with ttl %v", key, ttl)
		}
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v", got)
	}
}

func TestStoreThenLookup_InvalidUTF8(t *testing.T) {
	c, _, _ := newTestCache(t, "v1")
	ctx := context.Background()
	raw := "bail \xff plea"

	c.Store(ctx, raw, domain.FallbackExpansion(raw))

	exp, ok := c.Lookup(ctx, raw)
	if !ok {
		t.Fatal("expected hit for a query with invalid UTF-8")
	}
	if got := exp.Search[0][0].Text(); got != raw {
		t.Errorf("text = %q, want %q", got, raw)
	}
}

func TestLookup_Miss(t *testing.T) {
	c, _, counter := newTestCache(t, "v1")

	if _, ok := c.Lookup(context.Background(), "unknown"); ok {
		t.Fatal("expected miss")
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v", got)
	}
}

func TestLookup_VersionIsolatesEntries(t *testing.T) {
	c1, ms, _ := newTestCache(t, "v1")
	c1.Store(context.Background(), "bail", sampleExpansion())

	c2 := New(ms, "v2", time.Hour, nil, c1.logger)
	if _, ok := c2.Lookup(context.Background(), "bail"); ok {
		t.Error("entry leaked across prompt versions")
	}
}

func TestLookup_StoreErrorIsMiss(t *testing.T) {
	c, ms, _ := newTestCache(t, "v1")
	ms.getErr = errors.New("conn refused")

	if _, ok := c.Lookup(context.Background(), "bail"); ok {
		t.Error("expected miss on store error")
	}
}

func TestLookup_CorruptEntryIsMiss(t *testing.T) {
	c, ms, _ := newTestCache(t, "v1")
	ms.data[c.key("bail")] = []byte{0xff, 0x00}

	if _, ok := c.Lookup(context.Background(), "bail"); ok {
		t.Error("expected miss on corrupt entry")
	}
}

func TestStore_ErrorIsDropped(t *testing.T) {
	c, ms, _ := newTestCache(t, "v1")
	ms.setErr = errors.New("read only replica")

	c.Store(context.Background(), "bail", sampleExpansion())
	if len(ms.data) != 0 {
		t.Error("nothing should be stored")
	}
}
