package providers

import (
	"context"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "openai"},
		{"OpenAI", "openai"},
		{"anthropic", "anthropic"},
		{"gemini", "gemini"},
		{"google", "gemini"},
	}
	for _, tt := range tests {
		r, err := New(tt.provider, Settings{APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.provider, err)
		}
		if r.Name() != tt.want {
			t.Errorf("New(%q).Name() = %q, want %q", tt.provider, r.Name(), tt.want)
		}
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New("nonexistent", Settings{APIKey: "k"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNew_NoCredential(t *testing.T) {
	_, err := New("anthropic", Settings{})
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("err = %v, want ErrNoCredential", err)
	}
}

func TestCredentialEnv(t *testing.T) {
	if CredentialEnv("anthropic") != "ANTHROPIC_API_KEY" || CredentialEnv("gemini") != "GEMINI_API_KEY" || CredentialEnv("") != "OPENAI_API_KEY" {
		t.Error("unexpected credential env mapping")
	}
}

func TestIsAuthError(t *testing.T) {
	if IsAuthError(nil) {
		t.Error("nil should not be auth error")
	}
	if IsAuthError(&rateLimitError{}) {
		t.Error("rateLimitError should not be auth error")
	}
	if !IsAuthError(&authError{message: "test"}) {
		t.Error("authError should be auth error")
	}
}

func TestIsRetryable(t *testing.T) {
	if isRetryable(&authError{message: "test"}) {
		t.Error("authError should not be retryable")
	}
	if !isRetryable(&rateLimitError{}) {
		t.Error("rateLimitError should be retryable")
	}
	if !isRetryable(&serverError{statusCode: 500}) {
		t.Error("serverError should be retryable")
	}
	if isRetryable(context.Canceled) {
		t.Error("context.Canceled should not be retryable")
	}
}

func TestErrorMessages(t *testing.T) {
	if got := (&rateLimitError{}).Error(); got != "rate limited" {
		t.Errorf("rateLimitError.Error() = %q", got)
	}
	if got := (&serverError{statusCode: 500, body: "oops"}).Error(); got != "server error: oops" {
		t.Errorf("serverError.Error() = %q", got)
	}
	if got := (&authError{message: "bad key"}).Error(); got != "authentication error: bad key" {
		t.Errorf("authError.Error() = %q", got)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithBackoff(ctx, 3, func() error {
		return &rateLimitError{}
	})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestRetryWithBackoff_NonRetryable(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), 3, func() error {
		attempts++
		return &authError{message: "bad"}
	})
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for auth error, got %d", attempts)
	}
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	withFastBackoff(t)
	attempts := 0
	err := retryWithBackoff(context.Background(), 2, func() error {
		attempts++
		return &serverError{statusCode: 502, body: "bad gateway"}
	})
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if err == nil {
		t.Error("expected final error")
	}
}
