package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterGenerationMetrics()
	os.Exit(m.Run())
}

// chatRequest mirrors the fields of the chat completion request the tests inspect.
type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatResponse(content string, prompt, completion int) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
}

func newTestGenerator(url string) *Generator {
	return NewGenerator(&Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "test-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})
}

func TestGenerator_Generate(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"search": [["bail"]], "highlight": []}`, 30, 12))
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.GenerationRequestsTotal.WithLabelValues("test", "test-model", "success"))

	gen, err := newTestGenerator(server.URL).Generate(context.Background(), "SYSTEM", "provide result for: 'bail'")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gen.Text != `{"search": [["bail"]], "highlight": []}` {
		t.Errorf("text = %q", gen.Text)
	}
	if gen.PromptTokens != 30 || gen.CompletionTokens != 12 || gen.TotalTokens != 42 {
		t.Errorf("usage = %+v", gen)
	}

	if got.Model != "test-model" || got.Temperature != DefaultTemperature {
		t.Errorf("request model=%q temperature=%v", got.Model, got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "provide result for: 'bail'" {
		t.Errorf("messages = %+v", got.Messages)
	}

	after := testutil.ToFloat64(metrics.GenerationRequestsTotal.WithLabelValues("test", "test-model", "success"))
	if after != before+1 {
		t.Errorf("success counter %v -> %v", before, after)
	}
}

func TestGenerator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "requests"}}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), "s", "u")
	if !errors.Is(err, domain.ErrGeneratorProviderError) {
		t.Fatalf("err = %v, want ErrGeneratorProviderError", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestGenerator_DetailError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "model not found"}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), "s", "u")
	if !errors.Is(err, domain.ErrGeneratorProviderError) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("err = %v, want detail", err)
	}
}

func TestGenerator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := chatResponse("", 5, 0)
		resp["choices"] = []map[string]any{}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), "s", "u")
	if !errors.Is(err, domain.ErrGeneratorProviderError) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerator_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("x", 1, 1))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestGenerator(server.URL).Generate(ctx, "s", "u")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestGenerator_RateLimiterHonorsContext(t *testing.T) {
	g := NewGenerator(&Config{Model: "m", RequestsPerSecond: 0.001, Burst: 1})
	g.limiter.Allow() // spend the only token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx, "s", "u"); err == nil || !strings.Contains(err.Error(), "rate limiter") {
		t.Fatalf("err = %v, want rate limiter error", err)
	}
}

func TestGenerator_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": []}`))
	}))
	defer server.Close()

	if err := newTestGenerator(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
