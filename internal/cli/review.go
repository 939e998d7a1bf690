package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/aicr/internal/config"
	"github.com/dshills/aicr/internal/gitctx"
	"github.com/dshills/aicr/internal/output"
	"github.com/dshills/aicr/internal/review"
)

// Shared review flags
var (
	flagRepoRoot      string
	flagExclude       string
	flagContextLines  int
	flagProvider      string
	flagModel         string
	flagAnalyzers     string
	flagFormat        string
	flagOut           string
	flagMarkdown      string
	flagGitHubSummary bool
	flagFailOn        string
	flagNoLLM         bool
	flagNoRedact      bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagRepoRoot, "repo-root", "", "Directory changed paths are resolved against (default: git top-level or cwd)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Additional exclude globs (comma-separated)")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai, anthropic, gemini)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagAnalyzers, "analyzers", "", "Analyzers to run (comma-separated: pylint,bandit,radon,gosec,llm)")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, pretty, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagMarkdown, "markdown", "", "Also write a Markdown report to this path")
	cmd.Flags().BoolVar(&flagGitHubSummary, "github-summary", false, "Append the Markdown report to $GITHUB_STEP_SUMMARY")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Exit 1 when a finding reaches this severity (none, low, medium, high)")
	cmd.Flags().BoolVar(&flagNoLLM, "no-llm", false, "Skip the language model analyzer")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["llm.provider"] = flagProvider
	}
	if flagModel != "" {
		m["llm.model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagAnalyzers != "" {
		m["analyzers.enabled"] = flagAnalyzers
	}
	return m
}

func buildDiffOpts(cfg config.Config, dir string) gitctx.Options {
	opts := gitctx.Options{
		Dir:          dir,
		ContextLines: flagContextLines,
		Exclude:      cfg.Exclude,
	}
	if flagExclude != "" {
		opts.Exclude = append(append([]string(nil), cfg.Exclude...), config.SplitList(flagExclude)...)
	}
	return opts
}

// repoRoot returns --repo-root, else the enclosing git top-level, else "".
func repoRoot(ctx context.Context) string {
	if flagRepoRoot != "" {
		return flagRepoRoot
	}
	root, err := gitctx.RepoRoot(ctx, "")
	if err != nil {
		return ""
	}
	return root
}

// fail records the exit code for err and prints it.
func fail(cmd *cobra.Command, code int, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	exitCode = code
}

// runReview reviews d and writes every requested output. It returns nil
// when the review could not be completed; exitCode is set accordingly.
func runReview(cmd *cobra.Command, d gitctx.DiffResult, cfg config.Config, root string) *review.Report {
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: secret redaction is disabled")
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

	logger.Debug("reviewing diff",
		zap.String("mode", d.Mode),
		zap.Int("files", len(d.Files)),
		zap.Int("bytes", len(d.Diff)))

	report, err := reviewer.Review(cmd.Context(), d.Diff)
	if err != nil {
		// Includes *diff.MalformedDiffError.
		fail(cmd, ExitRuntimeError, err)
		return nil
	}
	report.Inputs.Mode = d.Mode
	report.Inputs.Range = d.Range
	if d.Repo.Root != "" {
		report.Repo = review.RepoInfo{Root: d.Repo.Root, Head: d.Repo.Head, Branch: d.Repo.Branch}
	}

	if err := writeOutputs(cmd, report, cfg); err != nil {
		fail(cmd, ExitRuntimeError, err)
		return nil
	}

	if report.ShouldFail(review.Severity(cfg.FailOn)) {
		exitCode = ExitFindings
	}
	return report
}

func writeOutputs(cmd *cobra.Command, report *review.Report, cfg config.Config) error {
	if flagOut != "" {
		if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
			return err
		}
	} else {
		w, err := output.GetWriter(cfg.Format)
		if err != nil {
			return err
		}
		if err := w.Write(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}

	if flagMarkdown != "" {
		if err := output.WriteReport(report, "markdown", flagMarkdown); err != nil {
			return fmt.Errorf("writing markdown report: %w", err)
		}
	}

	if flagGitHubSummary {
		if cfg.JobSummaryPath == "" {
			logger.Warn("--github-summary set but GITHUB_STEP_SUMMARY is empty")
		} else if err := output.WriteJobSummary(cfg.JobSummaryPath, report); err != nil {
			return err
		}
	}
	return nil
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review code changes",
	Long:  "Review a unified diff. Use subcommands to choose where the diff comes from.",
}

var reviewDiffFileCmd = &cobra.Command{
	Use:   "diff-file <path>",
	Short: "Review a unified diff file (\"-\" reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		d, err := gitctx.FromFile(args[0], buildDiffOpts(cfg, "").Exclude)
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}
		runReview(cmd, d, cfg, repoRoot(cmd.Context()))
		return nil
	},
}

var (
	flagBase      string
	flagHead      string
	flagMergeBase bool
)

var reviewGitCmd = &cobra.Command{
	Use:   "git",
	Short: "Review the diff between two revisions (--base required)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagBase == "" {
			return errors.New("--base is required")
		}
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		root := repoRoot(cmd.Context())
		d, err := gitctx.Range(cmd.Context(), flagBase, flagHead, flagMergeBase, buildDiffOpts(cfg, root))
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}
		runReview(cmd, d, cfg, root)
		return nil
	},
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		root := repoRoot(cmd.Context())
		d, err := gitctx.Staged(cmd.Context(), buildDiffOpts(cfg, root))
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}
		runReview(cmd, d, cfg, root)
		return nil
	},
}

var reviewUnstagedCmd = &cobra.Command{
	Use:   "unstaged",
	Short: "Review unstaged changes (working tree vs index)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		root := repoRoot(cmd.Context())
		d, err := gitctx.Unstaged(cmd.Context(), buildDiffOpts(cfg, root))
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}
		runReview(cmd, d, cfg, root)
		return nil
	},
}

func parsePRNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid PR number %q", s)
	}
	return n, nil
}

func init() {
	for _, cmd := range []*cobra.Command{
		reviewDiffFileCmd,
		reviewGitCmd,
		reviewPRCmd,
		reviewStagedCmd,
		reviewUnstagedCmd,
	} {
		addReviewFlags(cmd)
		reviewCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{reviewGitCmd, reviewStagedCmd, reviewUnstagedCmd} {
		cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	}

	reviewGitCmd.Flags().StringVar(&flagBase, "base", "", "Base revision")
	reviewGitCmd.Flags().StringVar(&flagHead, "head", "HEAD", "Head revision")
	reviewGitCmd.Flags().BoolVar(&flagMergeBase, "merge-base", false, "Diff against the merge base of base and head (base...head)")

}
