package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const prPayload = `{"action":"%s","number":5,"pull_request":{"number":5,"head":{"sha":"abc123"}},"repository":{"name":"aicr","owner":{"login":"dshills"}}}`

func webhookRequest(event, body, secret string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/v1/webhooks/github", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-GitHub-Event", event)
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(body))
		r.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}
	return r
}

func prBody(action string) string {
	return strings.Replace(prPayload, "%s", action, 1)
}

func TestParseWebhook_PullRequest(t *testing.T) {
	ref, err := ParseWebhook(webhookRequest("pull_request", prBody("opened"), "s3cret"), "s3cret")
	if err != nil {
		t.Fatalf("ParseWebhook error: %v", err)
	}
	want := PullRequestRef{Owner: "dshills", Repo: "aicr", Number: 5, Action: "opened", HeadSHA: "abc123"}
	if *ref != want {
		t.Errorf("ref = %+v, want %+v", *ref, want)
	}
}

func TestParseWebhook_BadSignature(t *testing.T) {
	_, err := ParseWebhook(webhookRequest("pull_request", prBody("opened"), "wrong"), "s3cret")
	if err == nil || errors.Is(err, ErrIgnoredEvent) {
		t.Fatalf("err = %v, want signature failure", err)
	}
}

func TestParseWebhook_Ignored(t *testing.T) {
	tests := []struct {
		name  string
		event string
		body  string
	}{
		{"closed action", "pull_request", prBody("closed")},
		{"ping", "ping", `{"zen":"hi","hook_id":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWebhook(webhookRequest(tt.event, tt.body, ""), "")
			if !errors.Is(err, ErrIgnoredEvent) {
				t.Errorf("err = %v, want ErrIgnoredEvent", err)
			}
		})
	}
}

func TestParseWebhook_MissingEvent(t *testing.T) {
	_, err := ParseWebhook(webhookRequest("", prBody("opened"), ""), "")
	if err == nil {
		t.Fatal("expected error without X-GitHub-Event")
	}
}
