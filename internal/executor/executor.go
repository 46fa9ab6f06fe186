package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghascaler/internal/config"
	"ghascaler/internal/fleet"
	"ghascaler/internal/plan"
	"ghascaler/internal/provision"
	"ghascaler/internal/sshexec"
	"ghascaler/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Remote executes runner operations against one machine. Implemented by
// sshexec.Client; tests substitute a fake.
type Remote interface {
	CreateRunner(ctx context.Context, m fleet.MachineInfo, runnerID string) error
	DestroyRunner(ctx context.Context, m fleet.MachineInfo, runnerID string) error
	Probe(ctx context.Context, m fleet.MachineInfo) fleet.ProbeResult
}

// ActionObserver receives a notification per finished action. The scaler
// metrics implement it; a nil observer is valid.
type ActionObserver interface {
	ObserveAction(kind plan.ActionKind, success bool)
}

// Config holds the executor policy knobs.
type Config struct {
	// ActionTimeout bounds one remote attempt.
	ActionTimeout time.Duration

	// MaxRetries is the in-cycle attempt budget per runner action.
	MaxRetries int

	// InitialBackoff and MaxBackoff shape the delay between attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// ProvisionTemplate is passed through, uninterpreted, to the
	// provisioning provider.
	ProvisionTemplate map[string]any

	// ProvisionedBounds are the runner bounds applied to machines that
	// join the fleet through provisioning.
	ProvisionedBounds config.RunnerBounds
}

// Executor applies plans and feeds outcomes back to the fleet tracker.
type Executor struct {
	tracker  *fleet.Tracker
	remote   Remote
	provider provision.Provider
	observer ActionObserver
	cfg      Config
}

// New creates an Executor. observer may be nil.
func New(tracker *fleet.Tracker, remote Remote, provider provision.Provider, observer ActionObserver, cfg Config) *Executor {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = config.DefaultActionTimeout
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = config.DefaultMaxActionRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = config.DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = config.DefaultMaxBackoff
	}
	return &Executor{
		tracker:  tracker,
		remote:   remote,
		provider: provider,
		observer: observer,
		cfg:      cfg,
	}
}

// Execute applies one plan. Partitions run concurrently per machine;
// Execute returns once every partition has finished. It never returns an
// error; failures become fleet state transitions.
func (e *Executor) Execute(ctx context.Context, p plan.Plan, snap fleet.Snapshot) {
	if p.IsEmpty() {
		return
	}

	machines := make(map[string]fleet.MachineInfo, len(snap.Machines))
	for _, m := range snap.Machines {
		machines[m.ID] = m
	}

	partitions := make(map[string][]plan.Action)
	var provisions []plan.Action
	for _, a := range p.Actions {
		if a.Kind == plan.KindProvisionMachine {
			provisions = append(provisions, a)
			continue
		}
		partitions[a.MachineID] = append(partitions[a.MachineID], a)
	}

	var g errgroup.Group
	for machineID, actions := range partitions {
		m, ok := machines[machineID]
		if !ok {
			logging.Warn("Executor", "Plan targets unknown machine %s, skipping %d actions", machineID, len(actions))
			continue
		}
		g.Go(func() error {
			e.executeMachineBatch(ctx, m, actions)
			return nil
		})
	}
	for range provisions {
		g.Go(func() error {
			e.executeProvision(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// executeMachineBatch runs one machine's actions in plan order. A
// connection-level failure aborts the remainder of the batch, since every
// later action would hit the same dead machine.
func (e *Executor) executeMachineBatch(ctx context.Context, m fleet.MachineInfo, actions []plan.Action) {
	for _, a := range actions {
		var err error
		switch a.Kind {
		case plan.KindCreateRunner:
			err = e.executeCreate(ctx, m, a.RunnerID)
		case plan.KindDestroyRunner:
			err = e.executeDestroy(ctx, m, a.RunnerID)
		case plan.KindDecommissionMachine:
			err = e.executeDecommission(ctx, m)
		default:
			logging.Warn("Executor", "Unknown action kind %s for machine %s", a.Kind, m.ID)
			continue
		}
		e.observe(a.Kind, err == nil)

		var connErr *sshexec.ConnectionError
		if errors.As(err, &connErr) {
			e.tracker.RecordMachineUnreachable(m.ID, err)
			logging.Warn("Executor", "Machine %s unreachable, abandoning %s batch", m.ID, a.Kind)
			return
		}
	}
}

// executeCreate drives one CreateRunner action through its retry budget.
// Each attempt is recorded individually so the runner's attempt counter
// and Errored/Failed transitions stay accurate.
func (e *Executor) executeCreate(ctx context.Context, m fleet.MachineInfo, runnerID string) error {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := e.tracker.BeginCreate(m.ID, runnerID); err != nil {
			logging.Warn("Executor", "Skipping create of %s: %v", runnerID, err)
			return nil
		}

		lastErr = e.withTimeout(ctx, func(actionCtx context.Context) error {
			return e.remote.CreateRunner(actionCtx, m, runnerID)
		})
		e.tracker.RecordCreateOutcome(m.ID, runnerID, lastErr)
		if lastErr == nil {
			return nil
		}
		if attempt < e.cfg.MaxRetries && !e.sleepBackoff(ctx, attempt) {
			return lastErr
		}
	}
	return lastErr
}

// executeDestroy drives one DestroyRunner action through its retry
// budget.
func (e *Executor) executeDestroy(ctx context.Context, m fleet.MachineInfo, runnerID string) error {
	if err := e.tracker.BeginDestroy(m.ID, runnerID); err != nil {
		logging.Warn("Executor", "Skipping destroy of %s: %v", runnerID, err)
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		lastErr = e.withTimeout(ctx, func(actionCtx context.Context) error {
			return e.remote.DestroyRunner(actionCtx, m, runnerID)
		})
		if lastErr == nil {
			e.tracker.RecordDestroyOutcome(m.ID, runnerID, nil)
			return nil
		}
		if attempt < e.cfg.MaxRetries && !e.sleepBackoff(ctx, attempt) {
			break
		}
	}
	e.tracker.RecordDestroyOutcome(m.ID, runnerID, lastErr)
	return lastErr
}

// executeProvision asks the provider for a new machine. Provisioning is
// not retried in-cycle: a failure surfaces next cycle when the planner
// still sees the shortfall and emits the action again.
func (e *Executor) executeProvision(ctx context.Context) {
	var desc provision.Descriptor
	err := e.withTimeout(ctx, func(actionCtx context.Context) error {
		var provErr error
		desc, provErr = e.provider.Provision(actionCtx, e.cfg.ProvisionTemplate)
		return provErr
	})
	e.observe(plan.KindProvisionMachine, err == nil)
	if err != nil {
		e.tracker.RecordProvisionOutcome(fleet.MachineSeed{}, err)
		return
	}

	id := desc.MachineID
	if id == "" {
		id = fmt.Sprintf("machine-dyn-%s", uuid.NewString()[:8])
	}
	e.tracker.RecordProvisionOutcome(fleet.MachineSeed{
		ID:          id,
		SSH:         desc.SSH,
		MinRunners:  e.cfg.ProvisionedBounds.MinRunners(),
		MaxRunners:  e.cfg.ProvisionedBounds.MaxRunners(),
		IdleTimeout: e.cfg.ProvisionedBounds.IdleTimeoutDuration(),
	}, nil)
}

// executeDecommission returns a drained-empty machine to the provider.
// Like provisioning, a failure is retried on a later cycle, not in-cycle.
func (e *Executor) executeDecommission(ctx context.Context, m fleet.MachineInfo) error {
	if err := e.tracker.BeginDecommission(m.ID); err != nil {
		logging.Warn("Executor", "Skipping decommission of %s: %v", m.ID, err)
		return nil
	}
	err := e.withTimeout(ctx, func(actionCtx context.Context) error {
		return e.provider.Decommission(actionCtx, m.ID)
	})
	e.tracker.RecordDecommissionOutcome(m.ID, err)
	return err
}

// ProbeAll refreshes reachability and runner presence for every machine
// that can usefully be probed, concurrently across machines.
func (e *Executor) ProbeAll(ctx context.Context, snap fleet.Snapshot) {
	var g errgroup.Group
	for _, m := range snap.Machines {
		switch m.State {
		case fleet.MachineUnprovisioned:
			// Static machines awaiting their first probe; dynamic
			// machines never sit in this state with an SSH endpoint.
			if m.SSH.Host == "" {
				continue
			}
		case fleet.MachineReady, fleet.MachineDraining, fleet.MachineUnreachable:
		default:
			continue
		}
		g.Go(func() error {
			result := e.probeOne(ctx, m)
			e.tracker.RecordProbe(m.ID, result)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Executor) probeOne(ctx context.Context, m fleet.MachineInfo) fleet.ProbeResult {
	var result fleet.ProbeResult
	_ = e.withTimeout(ctx, func(actionCtx context.Context) error {
		result = e.remote.Probe(actionCtx, m)
		return nil
	})
	return result
}

// withTimeout runs fn under the per-action timeout.
func (e *Executor) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	actionCtx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()
	return fn(actionCtx)
}

// sleepBackoff waits out the exponential backoff for the given attempt.
// Returns false if the context was cancelled while waiting.
func (e *Executor) sleepBackoff(ctx context.Context, attempt int) bool {
	backoff := e.cfg.InitialBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > e.cfg.MaxBackoff {
		backoff = e.cfg.MaxBackoff
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) observe(kind plan.ActionKind, success bool) {
	if e.observer != nil {
		e.observer.ObserveAction(kind, success)
	}
}
