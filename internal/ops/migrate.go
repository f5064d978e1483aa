package ops

import (
	"context"
	"fmt"

	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/transaction"
	"github.com/paddock-sh/paddock/internal/vm"
)

// MigrateDeps carries the placement collaborators Migrate needs when
// no explicit target is given.
type MigrateDeps struct {
	// Target, when non-nil, is the destination hypervisor. Otherwise
	// one is selected from Candidates by Policy.
	Target     hypervisor.Capability
	Candidates func(ctx context.Context) ([]hypervisor.Capability, error)
	Policy     hypervisor.SelectionPolicy

	// IgnoreReserved lifts the protection of online_reserved VMs.
	IgnoreReserved bool
}

// Migrate moves a VM to another hypervisor. Local storage permits
// offline migration only, so a running VM is stopped for the copy and
// started again on the target. While the move is in flight the
// inventory entry is tagged maintenance. The source volume is removed
// once the inventory points at the new host.
func (m *Manager) Migrate(ctx context.Context, v *vm.VM, deps MigrateDeps) (Result, error) {
	if err := checkReserved(v, deps.IgnoreReserved); err != nil {
		return Result{}, err
	}
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	g, err := v.Guest()
	if err != nil {
		return Result{}, err
	}
	source := v.Hypervisor()

	target := deps.Target
	if target == nil {
		buildDeps := BuildDeps{Candidates: deps.Candidates, Policy: deps.Policy}
		target, err = m.place(ctx, v, buildDeps)
		if err != nil {
			return Result{}, err
		}
	}
	if target.FQDN() == source.FQDN() {
		return noop("%s is already on %s", v.FQDN(), source.FQDN()), nil
	}

	// Migrating a VM whose inventory sizing is stale would rebuild it
	// differently on the target.
	if err := m.checkInSync(ctx, v, g); err != nil {
		return Result{}, err
	}

	wasRunning, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}

	tx := transaction.New(m.Log)

	prevState := v.Record().GetString(inventory.AttrState)
	v.Record().Set(inventory.AttrState, inventory.StateMaintenance)
	if err := v.Record().Commit(ctx); err != nil {
		return Result{}, err
	}
	tx.OnRollback("restore inventory state", func(ctx context.Context) error {
		v.Record().Set(inventory.AttrState, prevState)
		return v.Record().Commit(ctx)
	})

	if wasRunning {
		if err := v.Stop(ctx, false); err != nil {
			tx.Rollback(ctx)
			return Result{}, err
		}
	}

	if err := source.MigrateVM(ctx, g, target, true, tx); err != nil {
		tx.Rollback(ctx)
		if wasRunning {
			if startErr := v.Start(ctx); startErr != nil {
				m.Log.Error().Err(startErr).Str("vm", v.FQDN()).Msg("cannot restart on source after failed migration")
			}
		}
		return Result{}, err
	}

	v.Record().Set(inventory.AttrHypervisor, target.FQDN())
	v.Record().Set(inventory.AttrState, prevState)
	if err := v.Record().Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return Result{}, err
	}
	tx.Commit()

	v.SetHypervisor(target)

	if wasRunning {
		if err := v.Start(ctx); err != nil {
			return Result{}, err
		}
	}

	// The definition is gone from the source, only the volume and the
	// seed image are left. Their removal is best effort; the VM is
	// healthy on the target either way.
	if err := source.DeleteVM(ctx, g, false); err != nil {
		m.Log.Warn().Err(err).
			Str("vm", v.FQDN()).
			Str("hypervisor", source.FQDN()).
			Msg("cannot clean up source storage")
	}

	return applied("%s migrated from %s to %s", v.FQDN(), source.FQDN(), target.FQDN()), nil
}

// checkInSync fails when the hypervisor disagrees with the inventory
// about the VM's sizing.
func (m *Manager) checkInSync(ctx context.Context, v *vm.VM, g hypervisor.Guest) error {
	actual, err := v.Hypervisor().VMSyncFromHypervisor(ctx, g)
	if err != nil {
		return err
	}

	for attr, value := range actual {
		current, err := v.Record().GetInt(attr)
		if err != nil {
			return err
		}
		if current != value {
			return fmt.Errorf("%s of %s is %d on %s but %d in the inventory, run sync first",
				attr, v.FQDN(), value, v.Hypervisor().FQDN(), current)
		}
	}

	return nil
}
