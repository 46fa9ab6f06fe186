package plan

import (
	"testing"
	"time"

	"ghascaler/internal/github"
)

func TestPlanDemand(t *testing.T) {
	bounds := GlobalBounds{Min: 1, Max: 10}

	tests := []struct {
		name   string
		queued int
		want   int
	}{
		{"zero queued clamps to min", 0, 1},
		{"within bounds", 5, 5},
		{"at max", 10, 10},
		{"above max clamps", 250, 10},
		{"negative input clamps to min", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := github.Snapshot{QueuedCount: tt.queued, Timestamp: time.Now()}
			if got := PlanDemand(snap, bounds); got != tt.want {
				t.Errorf("PlanDemand(%d) = %d, want %d", tt.queued, got, tt.want)
			}
		})
	}
}

func TestPlanDemand_RunningJobsDoNotAddDemand(t *testing.T) {
	snap := github.Snapshot{QueuedCount: 2, RunningCount: 40}
	if got := PlanDemand(snap, GlobalBounds{Min: 0, Max: 10}); got != 2 {
		t.Errorf("expected running jobs to be ignored, got %d", got)
	}
}
