// Package github observes the GitHub Actions job queue.
//
// The Client polls the Actions API for queued and in-progress workflow
// runs of the configured repository and condenses them into an immutable
// Snapshot the demand planner consumes. All failures are reported as
// TransientError: the reconciliation loop keeps the previous snapshot for
// the cycle and tries again on the next one.
package github
