// Package github talks to the GitHub REST API through go-github: it fetches
// pull request diffs, posts the rendered report as a comment or as a review
// with inline comments, and validates incoming webhook deliveries.
package github
