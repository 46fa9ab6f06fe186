package github

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is a point-in-time view of the job queue. It is an immutable
// value, replaced wholesale each cycle and never partially updated.
type Snapshot struct {
	// QueuedCount is the number of workflow runs waiting for a runner.
	QueuedCount int `json:"queued_count"`

	// RunningCount is the number of workflow runs currently executing.
	RunningCount int `json:"running_count"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// Source produces queue snapshots. The reconciliation loop depends on
// this interface rather than the concrete API client so tests can inject
// canned queue states.
type Source interface {
	// GetQueueSnapshot fetches the current queue state. It fails with a
	// *TransientError when the queue source is unreachable; callers treat
	// that as "no update this cycle" and keep their prior snapshot.
	GetQueueSnapshot(ctx context.Context) (Snapshot, error)
}

// TransientError marks a queue-source failure that the next cycle may not
// see again (network, rate limit, auth hiccup). It is never fatal.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient queue source failure: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }
