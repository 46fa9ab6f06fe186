// Package provision defines the cloud-side machine provisioning
// collaborator.
//
// The reconciliation core only ever talks to the Provider interface; the
// concrete cloud API (and its protocol) is the provider's concern. The
// shipped Disabled implementation rejects every request, which is the
// correct behavior when the configuration leaves dynamic provisioning
// off; the placement planner will not emit provisioning actions either,
// so Disabled is a backstop, not a code path.
package provision

import (
	"context"
	"fmt"

	"ghascaler/internal/config"
)

// Descriptor is the connection information a successful provisioning
// action returns. It seeds the new machine's entry in the fleet tracker.
type Descriptor struct {
	// MachineID is the provider-assigned unique machine id.
	MachineID string

	// SSH is how the new machine is reached.
	SSH config.SSHConfig
}

// Provider provisions and decommissions machines.
type Provider interface {
	// Provision requests a new machine built from the opaque template.
	// It fails with a *ProvisioningError.
	Provision(ctx context.Context, template map[string]any) (Descriptor, error)

	// Decommission returns the machine identified by machineID to the
	// provider. It fails with a *ProvisioningError; the machine keeps its
	// prior state and the action is retried on a later cycle.
	Decommission(ctx context.Context, machineID string) error
}

// ProvisioningError indicates a cloud API failure.
type ProvisioningError struct {
	Op    string
	Cause error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s failed: %v", e.Op, e.Cause)
}

func (e *ProvisioningError) Unwrap() error { return e.Cause }

// Disabled is the Provider used when dynamic provisioning is not
// configured.
type Disabled struct{}

// Provision always fails.
func (Disabled) Provision(ctx context.Context, template map[string]any) (Descriptor, error) {
	return Descriptor{}, &ProvisioningError{
		Op:    "provision",
		Cause: fmt.Errorf("dynamic provisioning is disabled"),
	}
}

// Decommission always fails.
func (Disabled) Decommission(ctx context.Context, machineID string) error {
	return &ProvisioningError{
		Op:    "decommission",
		Cause: fmt.Errorf("dynamic provisioning is disabled"),
	}
}
