package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Gemini implements the Reviewer interface on top of the genai SDK.
type Gemini struct {
	client     *genai.Client
	model      string
	maxRetries int
}

// NewGemini creates a new Gemini provider.
func NewGemini(ctx context.Context, s Settings) (*Gemini, error) {
	model := s.Model
	if model == "" {
		model = DefaultModel("gemini")
	}
	cfg := &genai.ClientConfig{
		APIKey:     s.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.client(),
	}
	if s.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{client: client, model: model, maxRetries: s.MaxRetries}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}

	var resp ReviewResponse
	err := retryWithBackoff(ctx, g.maxRetries, func() error {
		result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			return classifyGenAIError(err)
		}
		if len(result.Candidates) == 0 {
			return errors.New("no candidates in response")
		}
		text := result.Text()
		if text == "" {
			return errors.New("empty text content in API response")
		}
		resp = ReviewResponse{Content: text}
		if result.UsageMetadata != nil {
			resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
		}
		return nil
	})
	return resp, err
}

// classifyGenAIError maps SDK API errors onto the package's retry and auth
// error types.
func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return fmt.Errorf("generating content: %w", err)
		}
		apiErr = *apiErrPtr
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return &rateLimitError{}
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return &authError{message: apiErr.Message}
	case apiErr.Code == http.StatusBadRequest && apiErr.Status == "INVALID_ARGUMENT" && isKeyError(apiErr.Message):
		return &authError{message: apiErr.Message}
	case apiErr.Code >= 500:
		return &serverError{statusCode: apiErr.Code, body: apiErr.Message}
	default:
		return fmt.Errorf("API error (status %d): %s", apiErr.Code, apiErr.Message)
	}
}

// isKeyError recognizes Gemini's 400 response for an invalid API key.
func isKeyError(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "api key not valid") || strings.Contains(msg, "api_key_invalid")
}
