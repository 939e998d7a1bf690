package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/aicr/internal/github"
	"github.com/dshills/aicr/internal/gitctx"
	"github.com/dshills/aicr/internal/output"
	"github.com/dshills/aicr/internal/review"
)

var (
	flagPRRepo     string
	flagPRNumber   string
	flagPRComment  bool
	flagPostReview bool
)

var reviewPRCmd = &cobra.Command{
	Use:   "pr",
	Short: "Review a GitHub pull request",
	Long: "Fetch a pull request diff from GitHub and review it. --comment posts the Markdown " +
		"report as a PR comment; --post-review posts findings as inline review comments.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPRNumber == "" {
			return fmt.Errorf("--pr is required")
		}
		prNumber, err := parsePRNumber(flagPRNumber)
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}

		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var owner, repo string
		if flagPRRepo != "" {
			owner, repo, err = github.ParseRepoFullName(flagPRRepo)
			if err != nil {
				fail(cmd, ExitUsageError, err)
				return nil
			}
		} else {
			owner, repo, err = github.DetectRepo(ctx, flagRepoRoot)
			if err != nil {
				fail(cmd, ExitUsageError, fmt.Errorf("%w (use --repo owner/name)", err))
				return nil
			}
		}

		client, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIURL)
		if err != nil {
			fail(cmd, ExitAuthError, err)
			return nil
		}

		logger.Info("fetching pull request", zap.String("repo", owner+"/"+repo), zap.Int("pr", prNumber))
		text, err := client.GetPRDiff(ctx, owner, repo, prNumber)
		if err != nil {
			if github.IsAuthError(err) {
				fail(cmd, ExitAuthError, err)
			} else {
				fail(cmd, ExitRuntimeError, err)
			}
			return nil
		}

		d := gitctx.FromText(text, "pr", fmt.Sprintf("%s/%s#%d", owner, repo, prNumber), buildDiffOpts(cfg, "").Exclude)
		report := runReview(cmd, d, cfg, repoRoot(ctx))
		if report == nil {
			return nil
		}

		if err := publish(cmd, client, owner, repo, prNumber, report, d.Files); err != nil {
			if github.IsAuthError(err) {
				fail(cmd, ExitAuthError, err)
			} else {
				fail(cmd, ExitRuntimeError, err)
			}
		}
		return nil
	},
}

// prPublisher is the part of the GitHub client used to publish results.
type prPublisher interface {
	PostComment(ctx context.Context, owner, repo string, prNumber int, body string) error
	PostReview(ctx context.Context, owner, repo string, prNumber int, rev github.ReviewRequest) error
}

func publish(cmd *cobra.Command, client prPublisher, owner, repo string, prNumber int, report *review.Report, files []string) error {
	ctx := cmd.Context()
	if flagPRComment {
		var buf bytes.Buffer
		if err := (&output.MarkdownWriter{}).Write(&buf, report); err != nil {
			return err
		}
		if err := client.PostComment(ctx, owner, repo, prNumber, buf.String()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Comment posted to PR #%d.\n", prNumber)
	}

	if flagPostReview {
		inDiff := make(map[string]bool, len(files))
		for _, f := range files {
			inDiff[f] = true
		}
		rev := github.BuildReview(report, inDiff)
		if err := client.PostReview(ctx, owner, repo, prNumber, rev); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Review posted to PR #%d (%d inline comments).\n", prNumber, len(rev.Comments))
	}
	return nil
}

func init() {
	reviewPRCmd.Flags().StringVar(&flagPRRepo, "repo", "", "Repository as owner/name (default: parsed from the origin remote)")
	reviewPRCmd.Flags().StringVar(&flagPRNumber, "pr", "", "Pull request number")
	reviewPRCmd.Flags().BoolVar(&flagPRComment, "comment", false, "Post the Markdown report as a PR comment")
	reviewPRCmd.Flags().BoolVar(&flagPostReview, "post-review", false, "Post findings as inline review comments")
}
