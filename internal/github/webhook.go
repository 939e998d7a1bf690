package github

import (
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v82/github"
)

// ErrIgnoredEvent marks a valid delivery that does not request a review.
var ErrIgnoredEvent = errors.New("event ignored")

// PullRequestRef identifies the pull request a webhook delivery refers to.
type PullRequestRef struct {
	Owner   string
	Repo    string
	Number  int
	Action  string
	HeadSHA string
}

// reviewActions are the pull_request actions that trigger a review.
var reviewActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// ParseWebhook validates the X-Hub-Signature-256 of r against secret and
// returns the pull request to review. Pings and other events yield
// ErrIgnoredEvent. An empty secret skips signature validation.
func ParseWebhook(r *http.Request, secret string) (*PullRequestRef, error) {
	eventType := gh.WebHookType(r)
	if eventType == "" {
		return nil, errors.New("missing X-GitHub-Event header")
	}

	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	payload, err := gh.ValidatePayload(r, key)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook payload or signature: %w", err)
	}

	event, err := gh.ParseWebHook(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("unsupported webhook event %q: %w", eventType, err)
	}

	pr, ok := event.(*gh.PullRequestEvent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, eventType)
	}
	if !reviewActions[pr.GetAction()] {
		return nil, fmt.Errorf("%w: pull_request %s", ErrIgnoredEvent, pr.GetAction())
	}
	return &PullRequestRef{
		Owner:   pr.GetRepo().GetOwner().GetLogin(),
		Repo:    pr.GetRepo().GetName(),
		Number:  pr.GetNumber(),
		Action:  pr.GetAction(),
		HeadSHA: pr.GetPullRequest().GetHead().GetSHA(),
	}, nil
}
