// Package server exposes the review pipeline over HTTP with gin.
//
// Routes:
//
//	GET  /healthz              liveness check
//	POST /v1/review            review a diff sent as the raw body or {"diff": "..."}
//	POST /v1/webhooks/github   review pull requests on opened/synchronize/reopened
//
// Webhook reviews run on a small worker pool after the delivery has been
// acknowledged; the Markdown report is posted back as a PR comment.
package server
