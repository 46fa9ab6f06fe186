package fleet

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"ghascaler/internal/config"
)

// MachineState is the lifecycle state of a machine.
type MachineState string

const (
	// MachineUnprovisioned is the initial state: a dynamic machine before
	// provisioning, or a static machine before its first successful probe.
	MachineUnprovisioned MachineState = "Unprovisioned"

	// MachineProvisioning means a provisioning action is in flight. The
	// provider contract hands back the machine id only on completion, so
	// a machine provisioned within a cycle is first recorded as Ready;
	// the state is kept for providers that report machines before they
	// accept connections.
	MachineProvisioning MachineState = "Provisioning"

	// MachineReady means the machine is reachable and accepts runners.
	MachineReady MachineState = "Ready"

	// MachineDraining means the machine accepts no new runners while its
	// existing ones finish.
	MachineDraining MachineState = "Draining"

	// MachineDecommissioning means a decommission action is in flight.
	MachineDecommissioning MachineState = "Decommissioning"

	// MachineTerminated is the final state of a dynamic machine.
	MachineTerminated MachineState = "Terminated"

	// MachineUnreachable marks a machine whose probe or action failed; a
	// later successful probe returns it to Ready.
	MachineUnreachable MachineState = "Unreachable"
)

// RunnerState is the lifecycle state of a runner container.
type RunnerState string

const (
	// RunnerRequested means the runner appears in a plan but no create
	// attempt has started yet.
	RunnerRequested RunnerState = "Requested"

	// RunnerCreating means a create action is in flight.
	RunnerCreating RunnerState = "Creating"

	// RunnerIdle means the container is up and waiting for a job.
	RunnerIdle RunnerState = "Idle"

	// RunnerBusy means the runner is executing a job. Busy runners are
	// never destroyed.
	RunnerBusy RunnerState = "Busy"

	// RunnerStopping means a destroy action is in flight.
	RunnerStopping RunnerState = "Stopping"

	// RunnerDestroyed is the terminal state of a destroyed runner.
	RunnerDestroyed RunnerState = "Destroyed"

	// RunnerErrored means the last create attempt failed; creation is
	// retried up to the configured attempt budget.
	RunnerErrored RunnerState = "Errored"

	// RunnerFailed means the attempt budget is exhausted. The runner is
	// excluded from placement counts, stays visible until an operator
	// resets it, and its slot is never reused.
	RunnerFailed RunnerState = "Failed"
)

// Terminal reports whether the runner state is terminal. Failed is not
// terminal in the lifecycle sense but no longer participates in placement
// either; it is handled separately everywhere it matters.
func (s RunnerState) Terminal() bool {
	return s == RunnerDestroyed
}

// Active reports whether the runner occupies capacity on its machine.
// Failed runners do not: no container backs them, so placement may create
// replacements in fresh slots while the failed record stays visible until
// an operator resets it.
func (s RunnerState) Active() bool {
	switch s {
	case RunnerRequested, RunnerCreating, RunnerIdle, RunnerBusy, RunnerStopping, RunnerErrored:
		return true
	default:
		return false
	}
}

// ProbeResult is the outcome of probing one machine.
type ProbeResult struct {
	Reachable bool

	// RunningRunnerIDs lists the runner containers found on the machine.
	RunningRunnerIDs []string

	// Err carries the probe failure when Reachable is false.
	Err error
}

// Machine is the tracker-internal machine record.
type machine struct {
	id          string
	ssh         config.SSHConfig
	minRunners  int
	maxRunners  int
	idleTimeout time.Duration
	dynamic     bool

	state     MachineState
	lastProbe time.Time
	lastError string

	// idleSince is set while the machine has target zero and no active
	// runners; it feeds the decommissioning grace period.
	idleSince time.Time

	// nextSlot is the monotonic slot index for runner id generation.
	// Slots are never reused.
	nextSlot int

	runners map[string]*runner
}

// runner is the tracker-internal runner record.
type runner struct {
	id        string
	machineID string
	slot      int
	state     RunnerState
	idleSince time.Time
	attempts  int
	lastError string
}

// Snapshot is a read-only, deep-copied view of the fleet, consistent at
// the moment it was taken.
type Snapshot struct {
	// Machines is sorted by machine id.
	Machines []MachineInfo

	// Taken is when the snapshot was produced.
	Taken time.Time
}

// MachineInfo is the snapshot view of one machine.
type MachineInfo struct {
	ID          string
	SSH         config.SSHConfig
	MinRunners  int
	MaxRunners  int
	IdleTimeout time.Duration
	Dynamic     bool
	State       MachineState
	LastProbe   time.Time
	LastError   string
	IdleSince   time.Time
	NextSlot    int

	// Runners is sorted by runner id.
	Runners []RunnerInfo
}

// ActiveRunners counts the runners occupying capacity on this machine.
func (m MachineInfo) ActiveRunners() int {
	n := 0
	for _, r := range m.Runners {
		if r.State.Active() {
			n++
		}
	}
	return n
}

// Eligible reports whether the machine may receive new runners.
func (m MachineInfo) Eligible() bool {
	return m.State == MachineReady
}

// RunnerInfo is the snapshot view of one runner.
type RunnerInfo struct {
	ID        string
	MachineID string
	Slot      int
	State     RunnerState
	IdleSince time.Time
	Attempts  int
	LastError string
}

// RunnerID derives the deterministic runner id for a machine and slot.
func RunnerID(machineID string, slot int) string {
	return fmt.Sprintf("%s-runner-%d", machineID, slot)
}

var runnerIDPattern = regexp.MustCompile(`^(.+)-runner-(\d+)$`)

// ParseRunnerID splits a runner id back into machine id and slot. It is
// the inverse of RunnerID and is used to re-adopt containers found on a
// machine after a restart.
func ParseRunnerID(id string) (machineID string, slot int, ok bool) {
	groups := runnerIDPattern.FindStringSubmatch(id)
	if groups == nil {
		return "", 0, false
	}
	slot, err := strconv.Atoi(groups[2])
	if err != nil {
		return "", 0, false
	}
	return groups[1], slot, true
}
