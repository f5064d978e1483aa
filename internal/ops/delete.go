package ops

import (
	"context"

	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/vm"
)

// Delete decommissions a VM: the domain is undefined, its storage
// removed, and the inventory entry deleted. With retire set the
// inventory entry is kept and moved to the retired state instead.
// A running VM is only torn down when force is set; force also allows
// removing the inventory entry of a VM that has no hypervisor or no
// domain.
func (m *Manager) Delete(ctx context.Context, v *vm.VM, force, retire bool) (Result, error) {
	defined, err := m.CheckDefined(ctx, v, !force)
	if err != nil {
		return Result{}, err
	}

	if defined {
		running, err := v.Running(ctx)
		if err != nil {
			return Result{}, err
		}
		if running {
			if !force {
				return Result{}, invalidStatef("%s is running, refusing to delete without force", v.FQDN())
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
	}

	if retire {
		v.Record().Set(inventory.AttrState, inventory.StateRetired)
		if err := v.Record().Commit(ctx); err != nil {
			return Result{}, err
		}
		return applied("%s retired", v.FQDN()), nil
	}

	if err := v.Record().Delete(ctx); err != nil {
		return Result{}, err
	}

	return applied("%s deleted", v.FQDN()), nil
}
