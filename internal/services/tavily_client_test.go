package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"conversa/internal/models"
)

func tavilyTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *TavilyClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, NewTavilyClient("test-key", server.URL, 5*time.Second)
}

func TestTavilySearchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	_, client := tavilyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		// First two calls fail with a server error, the third succeeds.
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"answer": "Reykjavik is the capital of Iceland.",
			"results": []map[string]string{
				{"title": "Iceland", "url": "https://www.bbc.com/iceland", "content": "Capital city facts."},
			},
		})
	})

	resp, err := client.Search(context.Background(), "capital of Iceland")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 requests (1 + 2 retries), got %d", got)
	}
	if resp.Answer != "Reykjavik is the capital of Iceland." {
		t.Errorf("Unexpected answer: %q", resp.Answer)
	}
	if len(resp.Sources) != 2 || !resp.Sources[0].IsSummary {
		t.Fatalf("Expected summary plus one source, got %d sources", len(resp.Sources))
	}
	if resp.Sources[1].Confidence != models.ConfidenceHigh {
		t.Errorf("Expected reputable domain scored HIGH, got %q", resp.Sources[1].Confidence)
	}
}

func TestTavilySearchExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	_, client := tavilyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), "capital of Iceland")
	if err == nil {
		t.Fatalf("Expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Expected attempt count in error, got %q", err.Error())
	}
}

func TestTavilySearchDoesNotRetryRateLimit(t *testing.T) {
	var calls atomic.Int32
	_, client := tavilyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), "capital of Iceland")
	if err == nil {
		t.Fatalf("Expected rate limit error")
	}
	if !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("Expected rate limit error, got %q", err.Error())
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 request for a rate-limited query, got %d", got)
	}
}

func TestTavilySearchRequiresAPIKey(t *testing.T) {
	client := NewTavilyClient("", "", time.Second)
	if _, err := client.Search(context.Background(), "anything"); err == nil {
		t.Fatalf("Expected error without an API key")
	}
}
