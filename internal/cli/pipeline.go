package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/aicr/internal/analyzers"
	"github.com/dshills/aicr/internal/cache"
	"github.com/dshills/aicr/internal/config"
	"github.com/dshills/aicr/internal/providers"
	"github.com/dshills/aicr/internal/review"
)

// usageError marks configuration mistakes that map to ExitUsageError.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// newReviewer is swapped out in tests.
var newReviewer = buildReviewer

// buildReviewer assembles the analyzers selected by cfg. The language model
// analyzer is registered even without a credential so the report records it
// as skipped.
func buildReviewer(cfg config.Config, repoRoot string, noLLM bool) (*review.Reviewer, error) {
	tools, err := analyzers.FileAnalyzers(cfg.Analyzers.Enabled, analyzers.Options{
		Timeout:  cfg.AnalyzerTimeout(),
		Logger:   logger,
		RepoRoot: repoRoot,
	}, cfg.Analyzers.RadonMinRank)
	if err != nil {
		return nil, &usageError{err}
	}

	opts := []review.Option{
		review.WithRepoRoot(repoRoot),
		review.WithFileAnalyzers(tools...),
		review.WithParallel(cfg.Analyzers.Parallel),
		review.WithLogger(logger),
	}

	if analyzers.Enabled(cfg.Analyzers.Enabled, analyzers.LLMName) && !noLLM {
		llm, err := buildLLM(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, review.WithDiffAnalyzers(llm))
	}
	return review.NewReviewer(opts...), nil
}

func buildLLM(cfg config.Config) (*analyzers.LLM, error) {
	var provider providers.Reviewer
	if cfg.LLM.APIKey != "" {
		p, err := providers.New(cfg.LLM.Provider, providers.Settings{
			Model:      cfg.LLM.Model,
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			MaxRetries: cfg.LLM.MaxRetries,
			Timeout:    cfg.LLMTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s provider: %w", cfg.LLM.Provider, err)
		}
		provider = p
	} else {
		logger.Debug("no model credential configured",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("env", providers.CredentialEnv(cfg.LLM.Provider)))
	}

	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		logger.Warn("response cache unavailable", zap.Error(err))
		c = nil
	}

	return analyzers.NewLLM(analyzers.LLMOptions{
		Provider:       provider,
		Model:          cfg.LLM.Model,
		Timeout:        cfg.LLMTimeout(),
		MaxPromptChars: cfg.LLM.MaxPromptChars,
		MaxTokens:      cfg.LLM.MaxTokens,
		RedactSecrets:  cfg.Privacy.RedactSecrets,
		RedactPaths:    cfg.Privacy.RedactPaths,
		Cache:          c,
		Logger:         logger,
	}), nil
}
