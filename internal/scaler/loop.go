package scaler

import (
	"context"
	"sync"
	"time"

	"ghascaler/internal/config"
	"ghascaler/internal/executor"
	"ghascaler/internal/fleet"
	"ghascaler/internal/github"
	"ghascaler/internal/plan"
	"ghascaler/pkg/logging"
)

// Cycle outcomes as reported in metrics and status.
const (
	// OutcomeCompleted is a full cycle with a fresh queue snapshot.
	OutcomeCompleted = "completed"

	// OutcomeDegraded is a full cycle planned against the previous queue
	// snapshot because the queue observation failed.
	OutcomeDegraded = "degraded"

	// OutcomeSkipped means planning was skipped entirely: the queue has
	// never been observed, so there is no demand figure to plan against.
	// Probing still ran.
	OutcomeSkipped = "skipped"
)

// State of the loop as reported in status.
const (
	StateIdle        = "Idle"
	StateReconciling = "Reconciling"
)

// Status is a point-in-time view of the loop for the HTTP API.
type Status struct {
	State       string          `json:"state"`
	LastCycle   time.Time       `json:"last_cycle,omitzero"`
	LastOutcome string          `json:"last_outcome,omitempty"`
	Queue       github.Snapshot `json:"queue"`
	Desired     int             `json:"desired_runners"`
}

// Scaler owns the reconciliation loop.
type Scaler struct {
	cfg     config.ScalerConfig
	source  github.Source
	tracker *fleet.Tracker
	exec    *executor.Executor
	metrics *Metrics
	policy  plan.Policy

	// trigger carries at most one pending reconcile request. A request
	// arriving mid-cycle parks here and produces exactly one follow-up
	// cycle; further requests while one is parked are dropped.
	trigger chan struct{}

	mu          sync.Mutex
	state       string
	lastCycle   time.Time
	lastOutcome string
	lastQueue   github.Snapshot
	haveQueue   bool
	lastDesired int
}

// New assembles a Scaler from its collaborators.
func New(cfg config.ScalerConfig, source github.Source, tracker *fleet.Tracker, exec *executor.Executor, metrics *Metrics, policy plan.Policy) *Scaler {
	return &Scaler{
		cfg:     cfg,
		source:  source,
		tracker: tracker,
		exec:    exec,
		metrics: metrics,
		policy:  policy,
		trigger: make(chan struct{}, 1),
		state:   StateIdle,
	}
}

// Trigger requests an immediate reconciliation cycle. Non-blocking and
// safe from any goroutine; requests raised while a cycle (and a pending
// request) already exist are coalesced.
func (s *Scaler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes the loop until ctx is cancelled. The first cycle runs
// immediately so a fresh process converges without waiting a full
// interval.
func (s *Scaler) Run(ctx context.Context) error {
	interval := s.cfg.IntervalDuration()
	logging.Info("Scaler", "Reconciliation loop started (interval %s)", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Info("Scaler", "Reconciliation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.trigger:
			s.runCycle(ctx)
		}
	}
}

// Status returns the loop's current state for the HTTP API.
func (s *Scaler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		LastCycle:   s.lastCycle,
		LastOutcome: s.lastOutcome,
		Queue:       s.lastQueue,
		Desired:     s.lastDesired,
	}
}

// runCycle executes one observe → plan → execute pass. It never fails:
// degraded inputs narrow the cycle's scope instead of aborting it.
func (s *Scaler) runCycle(ctx context.Context) {
	start := time.Now()
	s.setState(StateReconciling)

	snap := s.tracker.Snapshot()
	s.exec.ProbeAll(ctx, snap)
	snap = s.tracker.Snapshot()

	outcome := OutcomeCompleted
	queue, err := s.source.GetQueueSnapshot(ctx)
	if err != nil {
		s.mu.Lock()
		stale, ok := s.lastQueue, s.haveQueue
		s.mu.Unlock()
		if !ok {
			logging.Warn("Scaler", "Queue observation failed with no prior snapshot, skipping planning: %v", err)
			s.finishCycle(OutcomeSkipped, start)
			return
		}
		logging.Warn("Scaler", "Queue observation failed, planning against snapshot from %s: %v",
			stale.Timestamp.Format(time.RFC3339), err)
		queue = stale
		outcome = OutcomeDegraded
	}

	bounds := plan.GlobalBounds{Min: s.cfg.GlobalMinRunners, Max: s.cfg.GlobalMaxRunners}
	desired := plan.PlanDemand(queue, bounds)
	s.metrics.ObserveDemand(queue.QueuedCount, desired)

	p := plan.PlanPlacement(desired, snap, s.policy, time.Now())
	s.tracker.RecordTargets(p.Targets)
	if !p.IsEmpty() {
		logging.Info("Scaler", "Cycle planned %d actions (desired %d, queued %d)",
			len(p.Actions), desired, queue.QueuedCount)
	} else {
		logging.Debug("Scaler", "Cycle planned no actions (desired %d, queued %d)", desired, queue.QueuedCount)
	}
	s.exec.Execute(ctx, p, snap)

	s.mu.Lock()
	s.lastQueue = queue
	s.haveQueue = true
	s.lastDesired = desired
	s.mu.Unlock()

	s.finishCycle(outcome, start)
}

func (s *Scaler) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scaler) finishCycle(outcome string, start time.Time) {
	s.metrics.ObserveFleet(s.tracker.Snapshot())
	s.metrics.ObserveCycle(outcome, time.Since(start).Seconds())

	s.mu.Lock()
	s.state = StateIdle
	s.lastCycle = time.Now()
	s.lastOutcome = outcome
	s.mu.Unlock()
}
