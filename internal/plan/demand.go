package plan

import "ghascaler/internal/github"

// GlobalBounds clamps the demand planner output.
type GlobalBounds struct {
	Min int
	Max int
}

// PlanDemand computes the desired global runner count from a queue
// snapshot: one runner per queued job, clamped to the global bounds.
// Running jobs already occupy runners the fleet tracker accounts for as
// Busy, so they do not add to demand. Clamping absorbs out-of-range
// inputs; this function never fails.
func PlanDemand(snapshot github.Snapshot, bounds GlobalBounds) int {
	desired := snapshot.QueuedCount
	if desired < bounds.Min {
		desired = bounds.Min
	}
	if desired > bounds.Max {
		desired = bounds.Max
	}
	return desired
}
