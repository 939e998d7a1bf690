package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAI_Review(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req openaiRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request: %+v", req)
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "[]"}},
			},
			Usage: openaiUsage{TotalTokens: 50},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	o := NewOpenAI(Settings{APIKey: "test-key", BaseURL: server.URL + "/v1", HTTPClient: server.Client()})

	resp, err := o.Review(context.Background(), ReviewRequest{
		SystemPrompt: "test",
		UserPrompt:   "test",
		MaxTokens:    10,
	})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if resp.Content != "[]" {
		t.Errorf("Content = %q, want %q", resp.Content, "[]")
	}
	if resp.TokensUsed != 50 {
		t.Errorf("TokensUsed = %d, want 50", resp.TokensUsed)
	}
}

func TestOpenAI_RateLimitRetried(t *testing.T) {
	withFastBackoff(t)
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(429)
			w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "[]"}}},
		})
	}))
	defer server.Close()

	o := NewOpenAI(Settings{APIKey: "k", BaseURL: server.URL, MaxRetries: 3, HTTPClient: server.Client()})
	resp, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "test"})
	if err != nil {
		t.Fatalf("Review error after retries: %v", err)
	}
	if resp.Content != "[]" {
		t.Errorf("Content = %q", resp.Content)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestOpenAI_NoRetriesByDefault(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(503)
		w.Write([]byte("unavailable"))
	}))
	defer server.Close()

	o := NewOpenAI(Settings{APIKey: "k", BaseURL: server.URL, HTTPClient: server.Client()})
	_, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "test"})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestOpenAI_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer server.Close()

	o := NewOpenAI(Settings{APIKey: "bad", BaseURL: server.URL, MaxRetries: 3, HTTPClient: server.Client()})
	_, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "test"})
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
}

func TestOpenAI_EmptyResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"role":"assistant","content":""}}]}`},
		{"not json", `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			o := NewOpenAI(Settings{APIKey: "k", BaseURL: server.URL, HTTPClient: server.Client()})
			if _, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "x"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenAIEndpoint(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", defaultOpenAIURL},
		{"http://localhost:8080/v1", "http://localhost:8080/v1/chat/completions"},
		{"http://localhost:8080/v1/", "http://localhost:8080/v1/chat/completions"},
		{"http://proxy/v1/chat/completions", "http://proxy/v1/chat/completions"},
	}
	for _, tt := range tests {
		if got := openAIEndpoint(tt.in); got != tt.want {
			t.Errorf("openAIEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func withFastBackoff(t *testing.T) {
	t.Helper()
	orig := backoffBase
	backoffBase = time.Millisecond
	t.Cleanup(func() { backoffBase = orig })
}
