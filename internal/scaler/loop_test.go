package scaler

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ghascaler/internal/config"
	"ghascaler/internal/executor"
	"ghascaler/internal/fleet"
	"ghascaler/internal/github"
	"ghascaler/internal/plan"
	"ghascaler/internal/provision"
	"ghascaler/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForTests()
	os.Exit(m.Run())
}

// fakeSource returns scripted queue snapshots, one per call, repeating
// the last entry once the script runs out.
type fakeSource struct {
	mu      sync.Mutex
	results []sourceResult
	calls   int
}

type sourceResult struct {
	snap github.Snapshot
	err  error
}

func (f *fakeSource) GetQueueSnapshot(ctx context.Context) (github.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	r := f.results[i]
	return r.snap, r.err
}

// idleRemote reports machines reachable and empty, and creates and
// destroys runners without error.
type idleRemote struct{}

func (idleRemote) CreateRunner(ctx context.Context, m fleet.MachineInfo, runnerID string) error {
	return nil
}

func (idleRemote) DestroyRunner(ctx context.Context, m fleet.MachineInfo, runnerID string) error {
	return nil
}

func (idleRemote) Probe(ctx context.Context, m fleet.MachineInfo) fleet.ProbeResult {
	return fleet.ProbeResult{Reachable: true}
}

func testScaler(t *testing.T, source github.Source) (*Scaler, *fleet.Tracker) {
	t.Helper()
	min, max := 0, 4
	timeout := "1m"
	tracker := fleet.NewTracker([]config.MachineConfig{{
		ID:      "machine-1",
		SSH:     &config.SSHConfig{Host: "machine-1.example.com", Port: 22, Username: "deploy", Password: "x"},
		Runners: &config.RunnerBounds{Min: &min, Max: &max, IdleTimeout: &timeout},
	}}, 3)

	metrics := NewMetrics(prometheus.NewRegistry())
	exec := executor.New(tracker, idleRemote{}, provision.Disabled{}, metrics, executor.Config{
		ActionTimeout:  time.Second,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	cfg := config.ScalerConfig{
		Interval:         "1h", // cycles are driven explicitly in tests
		GlobalMinRunners: 0,
		GlobalMaxRunners: 10,
		MaxActionRetries: 3,
	}
	return New(cfg, source, tracker, exec, metrics, plan.Policy{}), tracker
}

func activeRunners(tracker *fleet.Tracker, machineID string) int {
	for _, m := range tracker.Snapshot().Machines {
		if m.ID == machineID {
			return m.ActiveRunners()
		}
	}
	return -1
}

func TestRunCycle_ScalesUpToQueue(t *testing.T) {
	source := &fakeSource{results: []sourceResult{
		{snap: github.Snapshot{QueuedCount: 3, Timestamp: time.Now()}},
	}}
	sc, tracker := testScaler(t, source)

	sc.runCycle(context.Background())

	if got := activeRunners(tracker, "machine-1"); got != 3 {
		t.Errorf("expected 3 runners after cycle, got %d", got)
	}

	status := sc.Status()
	if status.State != StateIdle {
		t.Errorf("expected Idle after cycle, got %s", status.State)
	}
	if status.LastOutcome != OutcomeCompleted {
		t.Errorf("expected completed outcome, got %s", status.LastOutcome)
	}
	if status.Desired != 3 {
		t.Errorf("expected desired 3, got %d", status.Desired)
	}
}

func TestRunCycle_ScalesBackDown(t *testing.T) {
	source := &fakeSource{results: []sourceResult{
		{snap: github.Snapshot{QueuedCount: 3, Timestamp: time.Now()}},
		{snap: github.Snapshot{QueuedCount: 1, Timestamp: time.Now()}},
	}}
	sc, tracker := testScaler(t, source)

	sc.runCycle(context.Background())
	sc.runCycle(context.Background())

	if got := activeRunners(tracker, "machine-1"); got != 1 {
		t.Errorf("expected 1 runner after scale-down, got %d", got)
	}
}

func TestRunCycle_KeepsStaleQueueOnTransientError(t *testing.T) {
	source := &fakeSource{results: []sourceResult{
		{snap: github.Snapshot{QueuedCount: 2, Timestamp: time.Now()}},
		{err: &github.TransientError{}},
	}}
	sc, tracker := testScaler(t, source)

	sc.runCycle(context.Background())
	sc.runCycle(context.Background())

	// The second cycle plans against the stale snapshot instead of
	// collapsing the fleet to zero.
	if got := activeRunners(tracker, "machine-1"); got != 2 {
		t.Errorf("expected stale demand to hold 2 runners, got %d", got)
	}
	if got := sc.Status().LastOutcome; got != OutcomeDegraded {
		t.Errorf("expected degraded outcome, got %s", got)
	}
}

func TestRunCycle_SkipsPlanningWithoutAnySnapshot(t *testing.T) {
	source := &fakeSource{results: []sourceResult{
		{err: &github.TransientError{}},
	}}
	sc, tracker := testScaler(t, source)

	sc.runCycle(context.Background())

	if got := activeRunners(tracker, "machine-1"); got != 0 {
		t.Errorf("expected no actions without a queue snapshot, got %d runners", got)
	}
	if got := sc.Status().LastOutcome; got != OutcomeSkipped {
		t.Errorf("expected skipped outcome, got %s", got)
	}

	// Probing still ran: the machine moved out of Unprovisioned.
	m := tracker.Snapshot().Machines[0]
	if m.State != fleet.MachineReady {
		t.Errorf("expected machine probed Ready, got %s", m.State)
	}
}

func TestTrigger_Coalesces(t *testing.T) {
	sc, _ := testScaler(t, &fakeSource{results: []sourceResult{{}}})

	// Many triggers while no cycle is draining the channel collapse into
	// a single pending request.
	for i := 0; i < 5; i++ {
		sc.Trigger()
	}
	if got := len(sc.trigger); got != 1 {
		t.Errorf("expected 1 pending trigger, got %d", got)
	}
}

func TestRun_TriggerCausesCycle(t *testing.T) {
	source := &fakeSource{results: []sourceResult{
		{snap: github.Snapshot{QueuedCount: 1, Timestamp: time.Now()}},
	}}
	sc, tracker := testScaler(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sc.Run(ctx)
		close(done)
	}()

	sc.Trigger()

	deadline := time.After(2 * time.Second)
	for activeRunners(tracker, "machine-1") != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for triggered cycle")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
