// Aicr reviews unified diffs with static analyzers and a language model.
//
// It runs pylint, bandit, radon and gosec over the files a diff touches,
// asks the configured model for a review of the diff itself, and prints the
// merged findings with deterministic exit codes suitable for CI gating.
//
// Usage:
//
//	aicr review diff-file change.diff          # review a diff file ("-" for stdin)
//	aicr review git --base origin/main         # review a revision range
//	aicr review staged                         # review staged changes
//	aicr review pr --repo owner/name --pr 42   # review a GitHub pull request
//	aicr serve                                 # run the HTTP review service
package main
