package ops

import (
	"context"

	"github.com/paddock-sh/paddock/internal/vm"
)

// Start powers a VM on. Starting a running VM is a no-op. Reserved
// VMs are not started.
func (m *Manager) Start(ctx context.Context, v *vm.VM) (Result, error) {
	if err := checkReserved(v, false); err != nil {
		return Result{}, err
	}
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if running {
		return noop("%s is already running", v.FQDN()), nil
	}

	if err := v.Start(ctx); err != nil {
		return Result{}, err
	}

	return applied("%s started", v.FQDN()), nil
}

// Stop powers a VM off, gracefully unless force is set. Stopping a
// stopped VM is a no-op. Reserved VMs are not stopped.
func (m *Manager) Stop(ctx context.Context, v *vm.VM, force bool) (Result, error) {
	if err := checkReserved(v, false); err != nil {
		return Result{}, err
	}
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if !running {
		return noop("%s is already stopped", v.FQDN()), nil
	}

	if err := v.Stop(ctx, force); err != nil {
		return Result{}, err
	}

	return applied("%s stopped", v.FQDN()), nil
}

// Restart stops and starts a running VM. Unless noRedefine is set the
// domain definition is refreshed in between, picking up definition
// changes that only apply on the next boot. Restarting a stopped VM is
// an error, not an implicit start.
func (m *Manager) Restart(ctx context.Context, v *vm.VM, force, noRedefine bool) (Result, error) {
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	running, err := v.Running(ctx)
	if err != nil {
		return Result{}, err
	}
	if !running {
		return Result{}, invalidStatef("%s is not running", v.FQDN())
	}

	if err := v.Stop(ctx, force); err != nil {
		return Result{}, err
	}

	if !noRedefine {
		g, err := v.Guest()
		if err != nil {
			return Result{}, err
		}
		if err := v.Hypervisor().RedefineVM(ctx, g); err != nil {
			return Result{}, err
		}
	}

	if err := v.Start(ctx); err != nil {
		return Result{}, err
	}

	return applied("%s restarted", v.FQDN()), nil
}
