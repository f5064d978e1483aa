package ops

import (
	"context"
	"fmt"

	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/transaction"
	"github.com/paddock-sh/paddock/internal/vm"
)

// BuildPipeline creates the hypervisor-side artifacts of a VM: its
// volume, root filesystem and domain definition. Steps that succeed
// register compensators on tx.
type BuildPipeline interface {
	Provision(ctx context.Context, v *vm.VM, tx *transaction.Transaction) error
}

// BuildDeps carries the collaborators Build needs beyond the VM
// itself.
type BuildDeps struct {
	// Candidates lists the hypervisors a new VM may be placed on.
	// Only consulted when the VM has no hypervisor assigned yet.
	Candidates func(ctx context.Context) ([]hypervisor.Capability, error)
	Policy     hypervisor.SelectionPolicy
	Pipeline   BuildPipeline
}

// Build provisions a VM from scratch and starts it. If the inventory
// does not pin the VM to a hypervisor one is selected by the policy.
// On failure everything created on the hypervisor is rolled back.
// Reserved VMs are not built; rebuilding them is allowed.
func (m *Manager) Build(ctx context.Context, v *vm.VM, deps BuildDeps) (Result, error) {
	if err := checkReserved(v, false); err != nil {
		return Result{}, err
	}

	return m.build(ctx, v, deps)
}

func (m *Manager) build(ctx context.Context, v *vm.VM, deps BuildDeps) (Result, error) {
	if v.Hypervisor() == nil {
		hv, err := m.place(ctx, v, deps)
		if err != nil {
			return Result{}, err
		}
		v.SetHypervisor(hv)
	} else {
		defined, err := v.Defined(ctx)
		if err != nil {
			return Result{}, err
		}
		if defined {
			return Result{}, invalidStatef("%s is already defined on %s, use rebuild", v.FQDN(), v.Hypervisor().FQDN())
		}
		g, err := v.Guest()
		if err != nil {
			return Result{}, err
		}
		if err := v.Hypervisor().CheckVM(ctx, g); err != nil {
			return Result{}, err
		}
	}

	tx := transaction.New(m.Log)

	if err := deps.Pipeline.Provision(ctx, v, tx); err != nil {
		tx.Rollback(ctx)
		return Result{}, fmt.Errorf("provisioning %s: %w", v.FQDN(), err)
	}

	v.Record().Set(inventory.AttrHypervisor, v.Hypervisor().FQDN())
	if v.Record().GetString(inventory.AttrState) != inventory.StateOnlineReserved {
		v.Record().Set(inventory.AttrState, inventory.StateOnline)
	}
	if err := v.Record().Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return Result{}, err
	}

	// The VM exists and the inventory knows about it; from here on a
	// failure leaves the VM in place instead of undoing the build.
	tx.Commit()

	if err := v.Start(ctx); err != nil {
		return Result{}, fmt.Errorf("%s is built but does not start: %w", v.FQDN(), err)
	}

	return applied("%s built on %s", v.FQDN(), v.Hypervisor().FQDN()), nil
}

// Rebuild tears a VM down and builds it again on the same hypervisor.
// The disk contents are lost; the inventory entry survives.
func (m *Manager) Rebuild(ctx context.Context, v *vm.VM, force bool, deps BuildDeps) (Result, error) {
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if running {
		if !force {
			return Result{}, invalidStatef("%s is running, refusing to rebuild without force", v.FQDN())
		}
		if err := v.Stop(ctx, true); err != nil {
			return Result{}, err
		}
	}

	g, err := v.Guest()
	if err != nil {
		return Result{}, err
	}
	if err := v.Hypervisor().DeleteVM(ctx, g, false); err != nil {
		return Result{}, err
	}

	return m.build(ctx, v, deps)
}

func (m *Manager) place(ctx context.Context, v *vm.VM, deps BuildDeps) (hypervisor.Capability, error) {
	if deps.Candidates == nil || deps.Policy == nil {
		return nil, fmt.Errorf("%s has no hypervisor assigned and no placement policy is available", v.FQDN())
	}

	g, err := v.Guest()
	if err != nil {
		return nil, err
	}

	hvs, err := deps.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]hypervisor.Candidate, len(hvs))
	for i, hv := range hvs {
		candidates[i] = hv
	}

	chosen, err := deps.Policy.Select(ctx, g, candidates)
	if err != nil {
		return nil, err
	}

	hv, ok := chosen.(hypervisor.Capability)
	if !ok {
		return nil, fmt.Errorf("selected candidate %s is not a usable hypervisor", chosen.FQDN())
	}
	m.Log.Info().Str("vm", v.FQDN()).Str("hypervisor", hv.FQDN()).Msg("hypervisor selected")

	return hv, nil
}
