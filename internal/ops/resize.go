package ops

import (
	"context"
	"fmt"

	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/units"
	"github.com/paddock-sh/paddock/internal/vm"
)

// VCPUSet changes the vCPU count. Decreases only work offline; with
// offline requested the VM is stopped around the change and started
// again.
func (m *Manager) VCPUSet(ctx context.Context, v *vm.VM, count int, offline, ignoreReserved bool) (Result, error) {
	if err := checkReserved(v, ignoreReserved); err != nil {
		return Result{}, err
	}
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	current, err := v.Record().GetInt(inventory.AttrNumCPU)
	if err != nil {
		return Result{}, err
	}
	if int64(count) == current {
		return noop("%s already has %d vCPUs", v.FQDN(), count), nil
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if int64(count) < current && !(offline || !running) {
		return Result{}, invalidStatef("decreasing vCPUs of %s requires --offline", v.FQDN())
	}
	if offline && !running {
		m.Log.Info().Str("vm", v.FQDN()).Msg("already stopped, skipping shutdown")
		offline = false
	}

	g, err := v.Guest()
	if err != nil {
		return Result{}, err
	}

	if offline {
		if err := v.Stop(ctx, false); err != nil {
			return Result{}, err
		}
	}

	if err := v.Hypervisor().SetNumCPU(ctx, g, count); err != nil {
		return Result{}, err
	}
	if err := m.verifySized(ctx, v, inventory.AttrNumCPU, int64(count)); err != nil {
		return Result{}, err
	}

	v.Record().Set(inventory.AttrNumCPU, count)
	if err := v.Record().Commit(ctx); err != nil {
		return Result{}, err
	}

	if offline {
		if err := v.Start(ctx); err != nil {
			return Result{}, err
		}
	}

	return applied("%s now has %d vCPUs", v.FQDN(), count), nil
}

// MemSet changes the memory size. sizeSpec may be absolute ("8G") or
// relative ("+1024"); bare numbers are MiB. Shrinking is only possible
// while the VM is powered off.
func (m *Manager) MemSet(ctx context.Context, v *vm.VM, sizeSpec string, offline, ignoreReserved bool) (Result, error) {
	if err := checkReserved(v, ignoreReserved); err != nil {
		return Result{}, err
	}
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	current, err := v.Record().GetInt(inventory.AttrMemory)
	if err != nil {
		return Result{}, err
	}
	target, err := units.Resolve(sizeSpec, current, units.MiB)
	if err != nil {
		return Result{}, err
	}

	if target == current {
		return noop("%s already has %d MiB memory", v.FQDN(), target), nil
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if target < current && !(offline || !running) {
		return Result{}, invalidStatef("decreasing memory of %s requires --offline", v.FQDN())
	}
	if offline && !running {
		m.Log.Info().Str("vm", v.FQDN()).Msg("already stopped, skipping shutdown")
		offline = false
	}

	// A growing VM must still fit on its host.
	if target > current {
		free, err := v.Hypervisor().FreeMemoryMiB(ctx)
		if err != nil {
			return Result{}, err
		}
		if target-current > free {
			return Result{}, fmt.Errorf("%s cannot grow by %d MiB, %s has only %d MiB free",
				v.FQDN(), target-current, v.Hypervisor().FQDN(), free)
		}
	}

	g, err := v.Guest()
	if err != nil {
		return Result{}, err
	}

	if offline {
		if err := v.Stop(ctx, false); err != nil {
			return Result{}, err
		}
	}

	if err := v.Hypervisor().SetMemory(ctx, g, target); err != nil {
		return Result{}, err
	}
	if err := m.verifySized(ctx, v, inventory.AttrMemory, target); err != nil {
		return Result{}, err
	}

	v.Record().Set(inventory.AttrMemory, target)
	if err := v.Record().Commit(ctx); err != nil {
		return Result{}, err
	}

	if offline {
		if err := v.Start(ctx); err != nil {
			return Result{}, err
		}
	}

	return applied("%s now has %d MiB memory", v.FQDN(), target), nil
}

// DiskSet grows the root disk. sizeSpec may be absolute or relative;
// bare numbers are GiB. Shrinking is rejected.
func (m *Manager) DiskSet(ctx context.Context, v *vm.VM, sizeSpec string, ignoreReserved bool) (Result, error) {
	if err := checkReserved(v, ignoreReserved); err != nil {
		return Result{}, err
	}
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	current, err := v.Record().GetInt(inventory.AttrDiskSizeGiB)
	if err != nil {
		return Result{}, err
	}
	target, err := units.Resolve(sizeSpec, current, units.GiB)
	if err != nil {
		return Result{}, err
	}

	if target == current {
		return noop("disk of %s is already %d GiB", v.FQDN(), target), nil
	}
	if target < current {
		return Result{}, invalidStatef("shrinking the disk of %s is not possible", v.FQDN())
	}

	g, err := v.Guest()
	if err != nil {
		return Result{}, err
	}

	if err := v.Hypervisor().SetDiskSize(ctx, g, target); err != nil {
		return Result{}, err
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if running {
		if err := v.GrowRootFilesystem(ctx); err != nil {
			return Result{}, err
		}
	}

	v.Record().Set(inventory.AttrDiskSizeGiB, target)
	if err := v.Record().Commit(ctx); err != nil {
		return Result{}, err
	}

	return applied("disk of %s is now %d GiB", v.FQDN(), target), nil
}

// verifySized reads back the attribute from the hypervisor after a
// sizing change; a mismatch means the change did not take.
func (m *Manager) verifySized(ctx context.Context, v *vm.VM, attr string, want int64) error {
	g, err := v.Guest()
	if err != nil {
		return err
	}

	actual, err := v.Hypervisor().VMSyncFromHypervisor(ctx, g)
	if err != nil {
		return err
	}
	if got, ok := actual[attr]; ok && got != want {
		return fmt.Errorf("%s of %s is %d after setting %d", attr, v.FQDN(), got, want)
	}

	return nil
}
