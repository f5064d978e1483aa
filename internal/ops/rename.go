package ops

import (
	"context"

	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/transaction"
	"github.com/paddock-sh/paddock/internal/vm"
)

// Rename changes the FQDN of a stopped VM on the hypervisor and in the
// inventory. The guest itself keeps its old hostname until it is
// rebuilt, so callers should treat this as a bookkeeping rename.
func (m *Manager) Rename(ctx context.Context, v *vm.VM, newFQDN string) (Result, error) {
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	if newFQDN == v.FQDN() {
		return noop("%s already has that name", v.FQDN()), nil
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if running {
		return Result{}, invalidStatef("%s is running, rename requires a stopped VM", v.FQDN())
	}

	g, err := v.Guest()
	if err != nil {
		return Result{}, err
	}

	oldFQDN := v.FQDN()
	tx := transaction.New(m.Log)

	if err := v.Hypervisor().RenameVM(ctx, g, newFQDN); err != nil {
		return Result{}, err
	}
	tx.OnRollback("rename domain back", func(ctx context.Context) error {
		v.Record().Set(inventory.AttrHostname, oldFQDN)
		renamed := g
		renamed.FQDN = newFQDN
		return v.Hypervisor().RenameVM(ctx, renamed, oldFQDN)
	})

	v.Record().Set(inventory.AttrHostname, newFQDN)
	if err := v.Record().Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return Result{}, err
	}
	tx.Commit()

	return applied("%s renamed to %s", oldFQDN, newFQDN), nil
}
