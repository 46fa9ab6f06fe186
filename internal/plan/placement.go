package plan

import (
	"sort"
	"time"

	"ghascaler/internal/fleet"
)

// Policy holds the placement knobs that are not per-machine.
type Policy struct {
	// ProvisioningEnabled allows the planner to request new machines when
	// eligible capacity cannot cover the desired count.
	ProvisioningEnabled bool
}

// PlanPlacement distributes the desired global runner count across the
// fleet and emits the actions that close the gap between target and
// current state. Deterministic single pass; now is passed in so the
// decommission grace comparison is reproducible in tests.
//
// Allocation: every eligible machine's minimum is satisfied first (the
// per-machine minimum takes priority over the global figure), then the
// remaining desired capacity fills machines in ascending id order up to
// their maximums. A shortfall against the global desired count is
// accepted silently unless provisioning is enabled, in which case one
// ProvisionMachine action is emitted.
func PlanPlacement(desired int, snap fleet.Snapshot, policy Policy, now time.Time) Plan {
	p := Plan{
		Targets: make(map[string]int, len(snap.Machines)),
		Desired: desired,
	}

	// Pass 1: per-machine targets. Snapshot machines are sorted by id, so
	// iteration order is the ascending-id allocation order.
	remaining := desired
	for _, m := range snap.Machines {
		if !m.Eligible() {
			p.Targets[m.ID] = 0
			continue
		}
		p.Targets[m.ID] = m.MinRunners
		remaining -= m.MinRunners
	}
	if remaining < 0 {
		remaining = 0
	}
	for _, m := range snap.Machines {
		if remaining == 0 {
			break
		}
		if !m.Eligible() {
			continue
		}
		headroom := m.MaxRunners - p.Targets[m.ID]
		if headroom <= 0 {
			continue
		}
		if headroom > remaining {
			headroom = remaining
		}
		p.Targets[m.ID] += headroom
		remaining -= headroom
	}

	// Pass 2: per-machine create/destroy actions. Draining machines get
	// their idle surplus removed too; unreachable and in-flight machines
	// are left alone entirely.
	for _, m := range snap.Machines {
		switch m.State {
		case fleet.MachineReady, fleet.MachineDraining:
		default:
			continue
		}

		target := p.Targets[m.ID]
		current := m.ActiveRunners()

		switch {
		case current > target:
			p.Actions = append(p.Actions, destroyActions(m, current-target)...)
		case current < target:
			p.Actions = append(p.Actions, createActions(m, target-current)...)
		}
	}

	// Pass 3: provisioning covers whatever eligible capacity could not.
	if remaining > 0 && policy.ProvisioningEnabled {
		p.Actions = append(p.Actions, Action{Kind: KindProvisionMachine})
	}

	// Pass 4: dynamic machines idle beyond their grace period go back to
	// the provider.
	for _, m := range snap.Machines {
		if !m.Dynamic || m.State != fleet.MachineReady {
			continue
		}
		if p.Targets[m.ID] != 0 || m.ActiveRunners() != 0 {
			continue
		}
		if m.IdleSince.IsZero() || now.Sub(m.IdleSince) < m.IdleTimeout {
			continue
		}
		p.Actions = append(p.Actions, Action{Kind: KindDecommissionMachine, MachineID: m.ID})
	}

	return p
}

// destroyActions picks surplus runners to remove: idle-longest-first,
// ties broken by lower runner id. Only Idle runners are candidates; a
// machine whose surplus is all Busy stays above target until jobs finish.
func destroyActions(m fleet.MachineInfo, surplus int) []Action {
	var idle []fleet.RunnerInfo
	for _, r := range m.Runners {
		if r.State == fleet.RunnerIdle {
			idle = append(idle, r)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		if !idle[i].IdleSince.Equal(idle[j].IdleSince) {
			return idle[i].IdleSince.Before(idle[j].IdleSince)
		}
		return idle[i].ID < idle[j].ID
	})

	if surplus > len(idle) {
		surplus = len(idle)
	}
	actions := make([]Action, 0, surplus)
	for _, r := range idle[:surplus] {
		actions = append(actions, Action{
			Kind:      KindDestroyRunner,
			MachineID: m.ID,
			RunnerID:  r.ID,
		})
	}
	return actions
}

// createActions emits deficit creates with fresh deterministic runner
// ids, continuing the machine's monotonic slot sequence.
func createActions(m fleet.MachineInfo, deficit int) []Action {
	actions := make([]Action, 0, deficit)
	for i := 0; i < deficit; i++ {
		actions = append(actions, Action{
			Kind:      KindCreateRunner,
			MachineID: m.ID,
			RunnerID:  fleet.RunnerID(m.ID, m.NextSlot+i),
		})
	}
	return actions
}
