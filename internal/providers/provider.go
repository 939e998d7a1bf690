package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoCredential is returned by New when Settings.APIKey is empty.
var ErrNoCredential = errors.New("no API credential configured")

// defaultMaxTokens caps the response when the request leaves it unset.
const defaultMaxTokens = 4096

// ReviewRequest contains the data sent to an LLM for review.
type ReviewRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// ReviewResponse contains the raw response from an LLM.
type ReviewResponse struct {
	Content    string
	TokensUsed int
}

// Reviewer is the provider abstraction interface.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error)
	Name() string
}

// Settings configures a provider instance.
type Settings struct {
	Model      string
	APIKey     string
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (s Settings) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Names lists the accepted provider names.
var Names = []string{"openai", "anthropic", "gemini"}

// New creates a provider by name.
func New(provider string, s Settings) (Reviewer, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	switch name {
	case "openai", "anthropic", "gemini", "google":
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	if s.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNoCredential)
	}
	switch name {
	case "anthropic":
		return NewAnthropic(s), nil
	case "gemini", "google":
		return NewGemini(context.Background(), s)
	default:
		return NewOpenAI(s), nil
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return "claude-3-5-haiku-latest"
	case "gemini", "google":
		return "gemini-2.0-flash"
	default:
		return "gpt-4o-mini"
	}
}

// CredentialEnv names the environment variable holding the provider's key.
func CredentialEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini", "google":
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
