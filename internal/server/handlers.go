package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dshills/aicr/internal/diff"
	"github.com/dshills/aicr/internal/github"
	"github.com/dshills/aicr/internal/gitctx"
	"github.com/dshills/aicr/internal/output"
	"github.com/dshills/aicr/internal/review"
)

const maxDiffBytes = 10 << 20

type reviewRequest struct {
	Diff string `json:"diff"`
}

type reviewResponse struct {
	Report *review.Report `json:"report"`
	Failed *bool          `json:"failed,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReview(c *gin.Context) {
	failOn := strings.ToLower(c.Query("fail_on"))
	if failOn != "" && failOn != "none" && !review.ValidSeverity(failOn) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid fail_on %q (want low, medium, high or none)", failOn)})
		return
	}

	text, err := readDiff(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text = gitctx.FilterExcluded(text, s.cfg.Exclude)

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ReviewTimeout)
	defer cancel()

	report, err := s.reviewer.Review(ctx, text)
	if err != nil {
		if errors.Is(err, diff.ErrMalformedDiff) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("review failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "review failed"})
		return
	}
	report.Inputs.Mode = "api"

	if c.Query("format") == "markdown" {
		var buf bytes.Buffer
		if err := (&output.MarkdownWriter{}).Write(&buf, report); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
		return
	}

	resp := reviewResponse{Report: report}
	if failOn != "" {
		failed := report.ShouldFail(review.Severity(failOn))
		resp.Failed = &failed
	}
	c.JSON(http.StatusOK, resp)
}

// readDiff accepts either a JSON {"diff": ...} body or the raw diff text.
func readDiff(c *gin.Context) (string, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDiffBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if len(body) > maxDiffBytes {
		return "", fmt.Errorf("diff exceeds %d bytes", maxDiffBytes)
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req reviewRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		return req.Diff, nil
	}
	return string(body), nil
}

func (s *Server) handleGitHubWebhook(c *gin.Context) {
	if s.github == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "GitHub token not configured"})
		return
	}
	if s.cfg.WebhookSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook secret not configured"})
		return
	}

	ref, err := github.ParseWebhook(c.Request, s.cfg.WebhookSecret)
	if err != nil {
		if errors.Is(err, github.ErrIgnoredEvent) {
			c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	select {
	case s.jobs <- *ref:
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "review queue full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":    "queued",
		"repo":      ref.Owner + "/" + ref.Repo,
		"pr_number": ref.Number,
	})
}

func (s *Server) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ref := <-s.jobs:
			if err := s.reviewPullRequest(ctx, ref); err != nil {
				s.logger.Error("pull request review failed",
					zap.String("repo", ref.Owner+"/"+ref.Repo),
					zap.Int("pr", ref.Number),
					zap.Error(err))
			}
		}
	}
}

func (s *Server) reviewPullRequest(ctx context.Context, ref github.PullRequestRef) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReviewTimeout)
	defer cancel()

	text, err := s.github.GetPRDiff(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return err
	}
	report, err := s.reviewer.Review(ctx, gitctx.FilterExcluded(text, s.cfg.Exclude))
	if err != nil {
		return err
	}
	report.Inputs.Mode = "pr"
	report.Inputs.Range = fmt.Sprintf("%s/%s#%d", ref.Owner, ref.Repo, ref.Number)
	report.Repo.Head = ref.HeadSHA

	var buf bytes.Buffer
	if err := (&output.MarkdownWriter{}).Write(&buf, report); err != nil {
		return err
	}
	if err := s.github.PostComment(ctx, ref.Owner, ref.Repo, ref.Number, buf.String()); err != nil {
		return err
	}
	s.logger.Info("posted review",
		zap.String("repo", ref.Owner+"/"+ref.Repo),
		zap.Int("pr", ref.Number),
		zap.Int("findings", len(report.Findings)))
	return nil
}
