package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/aicr/internal/github"
	"github.com/dshills/aicr/internal/server"
)

var (
	flagServeAddr    string
	flagServeWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review HTTP service",
	Long: "Serve POST /v1/review for raw diffs and POST /v1/webhooks/github for pull request events. " +
		"Webhook reviews need GITHUB_TOKEN and AICR_WEBHOOK_SECRET.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		if flagServeAddr != "" {
			cfg.Server.Addr = flagServeAddr
		}

		root := flagRepoRoot
		if root == "" {
			if root, err = os.Getwd(); err != nil {
				fail(cmd, ExitRuntimeError, err)
				return nil
			}
		}

		reviewer, err := newReviewer(cfg, root, flagNoLLM)
		if err != nil {
			var ue *usageError
			if errors.As(err, &ue) {
				fail(cmd, ExitUsageError, err)
			} else {
				fail(cmd, ExitRuntimeError, err)
			}
			return nil
		}

		// Left as a nil interface when no token is configured so the
		// webhook endpoint reports itself unavailable.
		var prClient server.PRClient
		if cfg.GitHub.Token != "" {
			c, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIURL)
			if err != nil {
				fail(cmd, ExitAuthError, err)
				return nil
			}
			prClient = c
			if cfg.Server.WebhookSecret == "" {
				logger.Warn("AICR_WEBHOOK_SECRET not set; webhook deliveries will be rejected")
			}
		} else {
			logger.Warn("GITHUB_TOKEN not set; webhook reviews disabled")
		}

		srv := server.New(server.Config{
			Addr:          cfg.Server.Addr,
			GinMode:       cfg.Server.GinMode,
			WebhookSecret: cfg.Server.WebhookSecret,
			ReviewTimeout: time.Duration(cfg.Server.ReviewTimeoutSeconds) * time.Second,
			Exclude:       cfg.Exclude,
			Workers:       flagServeWorkers,
		}, reviewer, prClient, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			if err != nil {
				fail(cmd, ExitRuntimeError, err)
			}
			return nil
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown", zap.Error(err))
			fail(cmd, ExitRuntimeError, fmt.Errorf("shutting down: %w", err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().IntVar(&flagServeWorkers, "workers", 2, "Concurrent webhook reviews")
	serveCmd.Flags().StringVar(&flagRepoRoot, "repo-root", "", "Directory changed paths are resolved against (default: cwd)")
	serveCmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai, anthropic, gemini)")
	serveCmd.Flags().StringVar(&flagModel, "model", "", "LLM model")
	serveCmd.Flags().StringVar(&flagAnalyzers, "analyzers", "", "Comma-separated analyzers to enable")
	serveCmd.Flags().BoolVar(&flagNoLLM, "no-llm", false, "Skip the language model analyzer")
}
