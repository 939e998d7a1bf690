package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/aicr/internal/review"
	gh "github.com/google/go-github/v82/github"
)

const defaultAPIURL = "https://api.github.com/"

// ErrNoToken is returned when no GitHub token is configured.
var ErrNoToken = errors.New("GITHUB_TOKEN is not set")

// AuthError reports a rejected or under-privileged token.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err is a missing or rejected token.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.Is(err, ErrNoToken) || errors.As(err, &ae)
}

// Client provides access to the GitHub REST API.
type Client struct {
	gh *gh.Client
}

// NewClient creates a client authenticated with token. An empty apiURL uses
// api.github.com; GitHub Enterprise users pass their /api/v3 URL.
func NewClient(token, apiURL string) (*Client, error) {
	return newClient(&http.Client{Timeout: 60 * time.Second}, token, apiURL)
}

func newClient(httpClient *http.Client, token, apiURL string) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	client := gh.NewClient(httpClient).WithAuthToken(token)
	if apiURL != "" && strings.TrimRight(apiURL, "/")+"/" != defaultAPIURL {
		u, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
		}
		client.BaseURL = u
	}
	return &Client{gh: client}, nil
}

// GetPRDiff fetches the unified diff of a pull request.
func (c *Client) GetPRDiff(ctx context.Context, owner, repo string, prNumber int) (string, error) {
	raw, _, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, prNumber, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		if status := statusOf(err); status == http.StatusNotFound {
			return "", fmt.Errorf("PR #%d not found in %s/%s", prNumber, owner, repo)
		}
		return "", classify(err, "fetching PR diff")
	}
	return raw, nil
}

// PostComment adds body as a conversation comment on the pull request.
func (c *Client) PostComment(ctx context.Context, owner, repo string, prNumber int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, prNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return classify(err, "posting PR comment")
	}
	return nil
}

// ReviewComment represents an inline comment on a PR review.
type ReviewComment struct {
	Path string
	Line int
	Body string
}

// ReviewRequest represents a PR review to post.
type ReviewRequest struct {
	Body     string
	Event    string
	Comments []ReviewComment
}

// PostReview posts a pull request review with inline comments.
func (c *Client) PostReview(ctx context.Context, owner, repo string, prNumber int, rev ReviewRequest) error {
	req := &gh.PullRequestReviewRequest{
		Body:  gh.Ptr(rev.Body),
		Event: gh.Ptr(rev.Event),
	}
	for _, cm := range rev.Comments {
		req.Comments = append(req.Comments, &gh.DraftReviewComment{
			Path: gh.Ptr(cm.Path),
			Line: gh.Ptr(cm.Line),
			Side: gh.Ptr("RIGHT"),
			Body: gh.Ptr(cm.Body),
		})
	}
	_, _, err := c.gh.PullRequests.CreateReview(ctx, owner, repo, prNumber, req)
	if err != nil {
		if statusOf(err) == http.StatusUnprocessableEntity {
			return fmt.Errorf("GitHub rejected review (422): %w", err)
		}
		return classify(err, "posting review")
	}
	return nil
}

func statusOf(err error) int {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	return 0
}

func classify(err error, action string) error {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{StatusCode: er.Response.StatusCode, Message: er.Message}
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

// BuildReview converts report findings into a review request. Findings
// located in a file of the PR diff become inline comments; the rest are
// listed in the summary body.
func BuildReview(report *review.Report, diffFiles map[string]bool) ReviewRequest {
	var bodyComments []string
	var comments []ReviewComment

	for _, f := range report.Findings {
		loc := f.Location
		if loc == nil || loc.Path == "" || !diffFiles[loc.Path] || loc.StartLine == 0 {
			bodyComments = append(bodyComments, formatFindingBody(f))
			continue
		}
		line := loc.EndLine
		if line < loc.StartLine {
			line = loc.StartLine
		}
		comments = append(comments, ReviewComment{
			Path: loc.Path,
			Line: line,
			Body: formatInlineComment(f),
		})
	}

	s := report.Summary()
	var sb strings.Builder
	sb.WriteString("## AI Code Review\n\n")
	sb.WriteString("| Severity | Count |\n|----------|-------|\n")
	fmt.Fprintf(&sb, "| High | %d |\n", s.BySeverity[review.SeverityHigh])
	fmt.Fprintf(&sb, "| Medium | %d |\n", s.BySeverity[review.SeverityMedium])
	fmt.Fprintf(&sb, "| Low | %d |\n\n", s.BySeverity[review.SeverityLow])

	if len(bodyComments) > 0 {
		sb.WriteString("### General Findings\n\n")
		for _, c := range bodyComments {
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}

	return ReviewRequest{
		Body:     sb.String(),
		Event:    "COMMENT",
		Comments: comments,
	}
}

func formatInlineComment(f review.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** (%s, %s, %s)\n\n", f.Title, f.Severity, f.Category, f.Source)
	sb.WriteString(f.Description)
	if f.Suggestion != "" {
		fmt.Fprintf(&sb, "\n\n**Suggestion:** %s", f.Suggestion)
	}
	return sb.String()
}

func formatFindingBody(f review.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- **%s** (%s, %s)", f.Title, f.Severity, f.Category)
	if loc := f.Location.String(); loc != "" {
		fmt.Fprintf(&sb, " `%s`", loc)
	}
	if f.Description != "" {
		sb.WriteString(": " + f.Description)
	}
	if f.Suggestion != "" {
		fmt.Fprintf(&sb, " *Suggestion: %s*", f.Suggestion)
	}
	return sb.String()
}

// ParseRepoFullName splits "owner/repo" into parts.
func ParseRepoFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repo name %q (want owner/name)", fullName)
	}
	return owner, repo, nil
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/\s]+)`)
)

// DetectRepo parses owner/repo from the origin remote of the repository in dir.
func DetectRepo(ctx context.Context, dir string) (owner, repo string, err error) {
	args := []string{"remote", "get-url", "origin"}
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(remote, ".git")
	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}
