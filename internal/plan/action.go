package plan

import "fmt"

// ActionKind tags the variant of an Action.
type ActionKind string

const (
	// KindCreateRunner creates a runner container on a machine.
	KindCreateRunner ActionKind = "CreateRunner"

	// KindDestroyRunner removes a runner container from a machine.
	KindDestroyRunner ActionKind = "DestroyRunner"

	// KindProvisionMachine requests a new machine from the provisioning
	// provider.
	KindProvisionMachine ActionKind = "ProvisionMachine"

	// KindDecommissionMachine returns a dynamic machine to the provider.
	KindDecommissionMachine ActionKind = "DecommissionMachine"
)

// Action is one step of a reconciliation plan. Each kind carries only the
// target ids it needs: runner actions name both machine and runner,
// machine actions name the machine, and provisioning names nothing (the
// machine does not exist yet).
type Action struct {
	Kind      ActionKind
	MachineID string
	RunnerID  string
}

// String renders the action for logs.
func (a Action) String() string {
	switch a.Kind {
	case KindCreateRunner, KindDestroyRunner:
		return fmt.Sprintf("%s(%s)", a.Kind, a.RunnerID)
	case KindDecommissionMachine:
		return fmt.Sprintf("%s(%s)", a.Kind, a.MachineID)
	default:
		return string(a.Kind)
	}
}

// Plan is the ordered action sequence produced by one placement pass. It
// is a transient value, consumed entirely within the cycle that produced
// it and never persisted.
type Plan struct {
	// Actions is ordered: per-machine runner actions in ascending machine
	// id order, then provisioning, then decommissions. The executor
	// partitions by machine and preserves order within each partition.
	Actions []Action

	// Targets is the per-machine runner target the actions steer toward.
	// Fed back to the fleet tracker for idle accounting.
	Targets map[string]int

	// Desired is the global desired runner count the plan was built for.
	Desired int
}

// IsEmpty reports whether the plan contains no actions.
func (p Plan) IsEmpty() bool {
	return len(p.Actions) == 0
}
