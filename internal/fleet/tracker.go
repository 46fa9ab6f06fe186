package fleet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ghascaler/internal/config"
	"ghascaler/pkg/logging"
)

// Tracker maintains the last-known state of every machine and runner.
type Tracker struct {
	mu sync.Mutex

	machines          map[string]*machine
	maxCreateAttempts int
}

// NewTracker seeds a tracker from the statically configured machines.
// Static machines start in Unprovisioned and move to Ready on their first
// successful probe; until then the placement planner ignores them.
func NewTracker(machines []config.MachineConfig, maxCreateAttempts int) *Tracker {
	if maxCreateAttempts < 1 {
		maxCreateAttempts = config.DefaultMaxActionRetries
	}
	t := &Tracker{
		machines:          make(map[string]*machine, len(machines)),
		maxCreateAttempts: maxCreateAttempts,
	}
	for _, mc := range machines {
		t.machines[mc.ID] = &machine{
			id:          mc.ID,
			ssh:         *mc.SSH,
			minRunners:  mc.Runners.MinRunners(),
			maxRunners:  mc.Runners.MaxRunners(),
			idleTimeout: mc.Runners.IdleTimeoutDuration(),
			state:       MachineUnprovisioned,
			runners:     make(map[string]*runner),
		}
	}
	return t
}

// MachineSeed describes a machine entry created from a successful
// provisioning action.
type MachineSeed struct {
	ID          string
	SSH         config.SSHConfig
	MinRunners  int
	MaxRunners  int
	IdleTimeout time.Duration
}

// RecordProbe applies a probe result for one machine.
//
// A successful probe confirms reachability and reconciles the runner
// records against the containers actually found: unknown containers whose
// name parses to this machine's id scheme are adopted (restart recovery),
// and Idle/Busy runners that vanished are marked Destroyed.
func (t *Tracker) RecordProbe(machineID string, result ProbeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.machines[machineID]
	if !ok {
		logging.Warn("Fleet", "Probe result for unknown machine %s dropped", machineID)
		return
	}
	m.lastProbe = time.Now()

	if !result.Reachable {
		if result.Err != nil {
			m.lastError = result.Err.Error()
		}
		switch m.state {
		case MachineReady, MachineDraining:
			logging.Warn("Fleet", "Machine %s became unreachable: %s", machineID, m.lastError)
			m.state = MachineUnreachable
		}
		return
	}

	m.lastError = ""
	switch m.state {
	case MachineUnprovisioned, MachineUnreachable:
		logging.Info("Fleet", "Machine %s is ready", machineID)
		m.state = MachineReady
	}

	running := make(map[string]bool, len(result.RunningRunnerIDs))
	for _, id := range result.RunningRunnerIDs {
		running[id] = true
		if _, known := m.runners[id]; known {
			continue
		}
		owner, slot, ok := ParseRunnerID(id)
		if !ok || owner != machineID {
			logging.Warn("Fleet", "Ignoring foreign container %s on machine %s", id, machineID)
			continue
		}
		logging.Info("Fleet", "Adopting runner %s found on machine %s", id, machineID)
		m.runners[id] = &runner{
			id:        id,
			machineID: machineID,
			slot:      slot,
			state:     RunnerIdle,
			idleSince: time.Now(),
		}
		if slot >= m.nextSlot {
			m.nextSlot = slot + 1
		}
	}

	for id, r := range m.runners {
		if running[id] {
			continue
		}
		if r.state == RunnerIdle || r.state == RunnerBusy {
			logging.Warn("Fleet", "Runner %s vanished from machine %s", id, machineID)
			r.state = RunnerDestroyed
		}
	}
}

// BeginCreate transitions a runner to Creating, registering the record on
// first sight. The runner id must parse to the owning machine's id.
func (t *Tracker) BeginCreate(machineID, runnerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mustMachine(machineID)
	r, ok := m.runners[runnerID]
	if !ok {
		owner, slot, parsed := ParseRunnerID(runnerID)
		if !parsed || owner != machineID {
			return fmt.Errorf("runner id %s does not belong to machine %s", runnerID, machineID)
		}
		r = &runner{id: runnerID, machineID: machineID, slot: slot, state: RunnerRequested}
		m.runners[runnerID] = r
		if slot >= m.nextSlot {
			m.nextSlot = slot + 1
		}
	}

	switch r.state {
	case RunnerRequested, RunnerErrored:
		r.state = RunnerCreating
		return nil
	case RunnerCreating:
		return nil
	default:
		return fmt.Errorf("runner %s is %s, cannot create", runnerID, r.state)
	}
}

// RecordCreateOutcome records the result of one create attempt. Failures
// count against the attempt budget; the runner becomes Failed once the
// budget is exhausted and is then left for an operator to reset.
func (t *Tracker) RecordCreateOutcome(machineID, runnerID string, outcomeErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mustMachine(machineID)
	r, ok := m.runners[runnerID]
	if !ok {
		logging.Warn("Fleet", "Create outcome for unknown runner %s dropped", runnerID)
		return
	}

	if outcomeErr == nil {
		r.state = RunnerIdle
		r.idleSince = time.Now()
		r.attempts = 0
		r.lastError = ""
		logging.Info("Fleet", "Runner %s is idle on machine %s", runnerID, machineID)
		return
	}

	r.attempts++
	r.lastError = outcomeErr.Error()
	if r.attempts >= t.maxCreateAttempts {
		r.state = RunnerFailed
		logging.Error("Fleet", outcomeErr, "Runner %s permanently failed after %d attempts", runnerID, r.attempts)
	} else {
		r.state = RunnerErrored
		logging.Warn("Fleet", "Runner %s create attempt %d failed: %v", runnerID, r.attempts, outcomeErr)
	}
}

// BeginDestroy transitions a runner to Stopping. Busy runners are never
// planned for destruction; rejecting them here keeps the invariant even
// against a stale plan.
func (t *Tracker) BeginDestroy(machineID, runnerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mustMachine(machineID)
	r, ok := m.runners[runnerID]
	if !ok {
		return fmt.Errorf("unknown runner %s", runnerID)
	}
	switch r.state {
	case RunnerIdle, RunnerStopping:
		r.state = RunnerStopping
		return nil
	default:
		return fmt.Errorf("runner %s is %s, cannot destroy", runnerID, r.state)
	}
}

// RecordDestroyOutcome records the result of a destroy attempt. A failed
// destroy reverts the runner to Idle; machine-level consequences
// (Unreachable) are recorded separately by the executor.
func (t *Tracker) RecordDestroyOutcome(machineID, runnerID string, outcomeErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mustMachine(machineID)
	r, ok := m.runners[runnerID]
	if !ok {
		logging.Warn("Fleet", "Destroy outcome for unknown runner %s dropped", runnerID)
		return
	}

	if outcomeErr == nil {
		r.state = RunnerDestroyed
		logging.Info("Fleet", "Runner %s destroyed on machine %s", runnerID, machineID)
		return
	}
	r.lastError = outcomeErr.Error()
	if r.state == RunnerStopping {
		r.state = RunnerIdle
	}
	logging.Warn("Fleet", "Destroy of runner %s failed: %v", runnerID, outcomeErr)
}

// RecordMachineUnreachable marks a machine Unreachable after remote
// operations against it kept failing.
func (t *Tracker) RecordMachineUnreachable(machineID string, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.machines[machineID]
	if !ok {
		return
	}
	if cause != nil {
		m.lastError = cause.Error()
	}
	switch m.state {
	case MachineReady, MachineDraining:
		logging.Warn("Fleet", "Machine %s marked unreachable: %v", machineID, cause)
		m.state = MachineUnreachable
	}
}

// BeginDecommission transitions a machine to Decommissioning. A machine
// still holding active runners must not be decommissioned.
func (t *Tracker) BeginDecommission(machineID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.machines[machineID]
	if !ok {
		return fmt.Errorf("unknown machine %s", machineID)
	}
	if !m.dynamic {
		return fmt.Errorf("machine %s is statically configured, cannot decommission", machineID)
	}
	for _, r := range m.runners {
		if r.state.Active() {
			return fmt.Errorf("machine %s still has active runner %s", machineID, r.id)
		}
	}
	m.state = MachineDecommissioning
	return nil
}

// RecordDecommissionOutcome finalizes or rolls back a decommission. On
// failure the machine returns to Ready and the action is retried on a
// later cycle.
func (t *Tracker) RecordDecommissionOutcome(machineID string, outcomeErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.machines[machineID]
	if !ok {
		return
	}
	if outcomeErr == nil {
		m.state = MachineTerminated
		for _, r := range m.runners {
			if !r.state.Terminal() {
				r.state = RunnerDestroyed
			}
		}
		logging.Info("Fleet", "Machine %s terminated", machineID)
		return
	}
	m.lastError = outcomeErr.Error()
	m.state = MachineReady
	logging.Warn("Fleet", "Decommission of machine %s failed: %v", machineID, outcomeErr)
}

// RecordProvisionOutcome registers a machine entry for a successful
// provisioning action. Failed provisioning leaves no record; the planner
// simply emits another ProvisionMachine on a later cycle.
func (t *Tracker) RecordProvisionOutcome(seed MachineSeed, outcomeErr error) {
	if outcomeErr != nil {
		logging.Warn("Fleet", "Provisioning failed: %v", outcomeErr)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.machines[seed.ID]; exists {
		logging.Warn("Fleet", "Provisioned machine %s already tracked", seed.ID)
		return
	}
	t.machines[seed.ID] = &machine{
		id:          seed.ID,
		ssh:         seed.SSH,
		minRunners:  seed.MinRunners,
		maxRunners:  seed.MaxRunners,
		idleTimeout: seed.IdleTimeout,
		dynamic:     true,
		state:       MachineReady,
		runners:     make(map[string]*runner),
	}
	logging.Info("Fleet", "Provisioned machine %s joined the fleet", seed.ID)
}

// RecordTargets feeds the per-machine targets of the latest placement
// back into the tracker. A machine sitting at target zero with no active
// runners accumulates idle time; any target above zero resets the clock.
func (t *Tracker) RecordTargets(targets map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for id, m := range t.machines {
		target := targets[id]
		if target == 0 && m.activeRunners() == 0 {
			if m.idleSince.IsZero() {
				m.idleSince = now
			}
		} else {
			m.idleSince = time.Time{}
		}
	}
}

// SetRunnerBusy flips a runner between Idle and Busy. Driven by webhook
// job events; unknown runners are ignored (the job may have landed on a
// runner outside this fleet).
func (t *Tracker) SetRunnerBusy(runnerID string, busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	machineID, _, ok := ParseRunnerID(runnerID)
	if !ok {
		return
	}
	m, ok := t.machines[machineID]
	if !ok {
		return
	}
	r, ok := m.runners[runnerID]
	if !ok {
		return
	}

	if busy && r.state == RunnerIdle {
		r.state = RunnerBusy
		r.idleSince = time.Time{}
	} else if !busy && r.state == RunnerBusy {
		r.state = RunnerIdle
		r.idleSince = time.Now()
	}
}

// DrainMachine toggles a machine between Ready and Draining. Draining
// machines keep their runners but receive no new ones.
func (t *Tracker) DrainMachine(machineID string, drain bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.machines[machineID]
	if !ok {
		return fmt.Errorf("unknown machine %s", machineID)
	}
	if drain {
		if m.state != MachineReady {
			return fmt.Errorf("machine %s is %s, cannot drain", machineID, m.state)
		}
		m.state = MachineDraining
	} else {
		if m.state != MachineDraining {
			return fmt.Errorf("machine %s is %s, not draining", machineID, m.state)
		}
		m.state = MachineReady
	}
	return nil
}

// ResetRunner retires a permanently failed runner record. Slots are
// never reused, so resetting only clears the failed entry from status
// once an operator has looked at it.
func (t *Tracker) ResetRunner(runnerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	machineID, _, ok := ParseRunnerID(runnerID)
	if !ok {
		return fmt.Errorf("malformed runner id %s", runnerID)
	}
	m, found := t.machines[machineID]
	if !found {
		return fmt.Errorf("unknown machine %s", machineID)
	}
	r, found := m.runners[runnerID]
	if !found {
		return fmt.Errorf("unknown runner %s", runnerID)
	}
	if r.state != RunnerFailed {
		return fmt.Errorf("runner %s is %s, only Failed runners can be reset", runnerID, r.state)
	}
	r.state = RunnerDestroyed
	r.lastError = ""
	logging.Info("Fleet", "Runner %s reset by operator", runnerID)
	return nil
}

// Snapshot returns a consistent, deep-copied view of the fleet.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Machines: make([]MachineInfo, 0, len(t.machines)),
		Taken:    time.Now(),
	}
	for _, m := range t.machines {
		info := MachineInfo{
			ID:          m.id,
			SSH:         m.ssh,
			MinRunners:  m.minRunners,
			MaxRunners:  m.maxRunners,
			IdleTimeout: m.idleTimeout,
			Dynamic:     m.dynamic,
			State:       m.state,
			LastProbe:   m.lastProbe,
			LastError:   m.lastError,
			IdleSince:   m.idleSince,
			NextSlot:    m.nextSlot,
			Runners:     make([]RunnerInfo, 0, len(m.runners)),
		}
		for _, r := range m.runners {
			info.Runners = append(info.Runners, RunnerInfo{
				ID:        r.id,
				MachineID: r.machineID,
				Slot:      r.slot,
				State:     r.state,
				IdleSince: r.idleSince,
				Attempts:  r.attempts,
				LastError: r.lastError,
			})
		}
		sort.Slice(info.Runners, func(i, j int) bool {
			return info.Runners[i].ID < info.Runners[j].ID
		})
		snap.Machines = append(snap.Machines, info)
	}
	sort.Slice(snap.Machines, func(i, j int) bool {
		return snap.Machines[i].ID < snap.Machines[j].ID
	})
	return snap
}

// activeRunners counts capacity-occupying runners; callers hold t.mu.
func (m *machine) activeRunners() int {
	n := 0
	for _, r := range m.runners {
		if r.state.Active() {
			n++
		}
	}
	return n
}

// mustMachine looks up a machine that an in-flight action references.
// A runner action targeting a machine the tracker does not know about is
// an internal invariant violation, not a recoverable condition.
func (t *Tracker) mustMachine(machineID string) *machine {
	m, ok := t.machines[machineID]
	if !ok {
		panic(fmt.Sprintf("fleet: action references nonexistent machine %s", machineID))
	}
	return m
}
