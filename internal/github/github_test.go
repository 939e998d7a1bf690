package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dshills/aicr/internal/review"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := newClient(server.Client(), "test-token", server.URL)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	return c
}

func TestNewClient_NoToken(t *testing.T) {
	_, err := NewClient("", "")
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	if !IsAuthError(err) {
		t.Error("missing token should count as an auth error")
	}
}

func TestGetPRDiff(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); !strings.Contains(got, "diff") {
			t.Errorf("Accept = %q, want a diff media type", got)
		}
		if r.URL.Path != "/repos/owner/repo/pulls/42" {
			t.Errorf("Path = %q", r.URL.Path)
		}
		w.Write([]byte("diff --git a/a.py b/a.py\n"))
	})

	diff, err := c.GetPRDiff(context.Background(), "owner", "repo", 42)
	if err != nil {
		t.Fatalf("GetPRDiff error: %v", err)
	}
	if diff != "diff --git a/a.py b/a.py\n" {
		t.Errorf("diff = %q", diff)
	}
}

func TestGetPRDiff_404(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	})

	_, err := c.GetPRDiff(context.Background(), "owner", "repo", 99)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if got := err.Error(); got != "PR #99 not found in owner/repo" {
		t.Errorf("error = %q", got)
	}
}

func TestGetPRDiff_401(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	})

	_, err := c.GetPRDiff(context.Background(), "owner", "repo", 1)
	if !IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "Bad credentials") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestPostComment(t *testing.T) {
	var body map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/owner/repo/issues/7/comments" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	})

	if err := c.PostComment(context.Background(), "owner", "repo", 7, "# AI Code Review Report"); err != nil {
		t.Fatalf("PostComment error: %v", err)
	}
	if body["body"] != "# AI Code Review Report" {
		t.Errorf("body = %v", body)
	}
}

func TestPostReview(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/owner/repo/pulls/42/reviews" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var rev struct {
			Event    string `json:"event"`
			Comments []struct {
				Path string `json:"path"`
				Line int    `json:"line"`
				Side string `json:"side"`
			} `json:"comments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&rev); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if rev.Event != "COMMENT" {
			t.Errorf("Event = %q, want COMMENT", rev.Event)
		}
		if len(rev.Comments) != 1 || rev.Comments[0].Line != 10 || rev.Comments[0].Side != "RIGHT" {
			t.Errorf("Comments = %+v", rev.Comments)
		}
		w.Write([]byte(`{"id":1}`))
	})

	err := c.PostReview(context.Background(), "owner", "repo", 42, ReviewRequest{
		Body:     "summary",
		Event:    "COMMENT",
		Comments: []ReviewComment{{Path: "a.py", Line: 10, Body: "issue here"}},
	})
	if err != nil {
		t.Fatalf("PostReview error: %v", err)
	}
}

func TestPostReview_422(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Validation Failed"}`))
	})

	err := c.PostReview(context.Background(), "owner", "repo", 42, ReviewRequest{Event: "COMMENT"})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("err = %v, want 422 rejection", err)
	}
	if IsAuthError(err) {
		t.Error("422 is not an auth error")
	}
}

func TestBuildReview(t *testing.T) {
	report := &review.Report{Findings: []review.Finding{
		{
			Severity:    review.SeverityHigh,
			Category:    review.CategorySecurity,
			Title:       "Use of exec detected",
			Description: "exec on user input",
			Suggestion:  "Avoid exec",
			Location:    &review.Location{Path: "a.py", StartLine: 10, EndLine: 12},
			Source:      "bandit",
		},
		{
			Severity: review.SeverityLow,
			Category: review.CategoryStyle,
			Title:    "Missing docstring",
			Location: &review.Location{Path: "other.py", StartLine: 1},
			Source:   "pylint",
		},
		{
			Severity: review.SeverityMedium,
			Category: review.CategoryBug,
			Title:    "General concern",
			Source:   "llm",
		},
	}}

	rev := BuildReview(report, map[string]bool{"a.py": true})
	if rev.Event != "COMMENT" {
		t.Errorf("Event = %q, want COMMENT", rev.Event)
	}
	if len(rev.Comments) != 1 {
		t.Fatalf("Comments count = %d, want 1", len(rev.Comments))
	}
	if rev.Comments[0].Path != "a.py" || rev.Comments[0].Line != 12 {
		t.Errorf("comment = %+v", rev.Comments[0])
	}
	if !strings.Contains(rev.Comments[0].Body, "Avoid exec") {
		t.Errorf("inline body = %q", rev.Comments[0].Body)
	}
	for _, want := range []string{"| High | 1 |", "| Medium | 1 |", "| Low | 1 |", "Missing docstring", "`other.py:1`", "General concern"} {
		if !strings.Contains(rev.Body, want) {
			t.Errorf("body missing %q:\n%s", want, rev.Body)
		}
	}
}

func TestParseRepoFullName(t *testing.T) {
	owner, repo, err := ParseRepoFullName("dshills/aicr")
	if err != nil || owner != "dshills" || repo != "aicr" {
		t.Errorf("got %q %q %v", owner, repo, err)
	}
	for _, bad := range []string{"", "aicr", "/aicr", "dshills/", "a/b/c"} {
		if _, _, err := ParseRepoFullName(bad); err == nil {
			t.Errorf("ParseRepoFullName(%q) should fail", bad)
		}
	}
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "HTTPS", url: "https://github.com/dshills/aicr.git", wantOwner: "dshills", wantRepo: "aicr"},
		{name: "HTTPS no .git", url: "https://github.com/dshills/aicr", wantOwner: "dshills", wantRepo: "aicr"},
		{name: "SSH", url: "git@github.com:dshills/aicr.git", wantOwner: "dshills", wantRepo: "aicr"},
		{name: "dotted repo", url: "git@github.com:dshills/aicr.go.git", wantOwner: "dshills", wantRepo: "aicr.go"},
		{name: "invalid", url: "not-a-url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRemoteURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("got %s/%s, want %s/%s", owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}
