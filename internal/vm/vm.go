// Package vm models one managed virtual machine: its inventory
// record, the hypervisor it lives on and a command session into the
// guest itself.
package vm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/remote"
)

const (
	// gracePeriod is how long a guest gets to comply with an ACPI
	// shutdown before the plug is pulled.
	gracePeriod = 2 * time.Minute

	// bootTimeout is how long a starting guest gets to come up.
	bootTimeout = 5 * time.Minute
)

// guestSession is the slice of remote.Session used inside the guest.
type guestSession interface {
	Run(ctx context.Context, command string, opts ...remote.RunOption) (remote.Result, error)
	Meminfo(ctx context.Context) (map[string]int64, error)
}

// VM is one virtual machine under management.
type VM struct {
	record  *inventory.Record
	hv      hypervisor.Capability
	session guestSession
	log     zerolog.Logger
}

// New ties a VM to its inventory record, its hypervisor and a session
// into the guest. hv may be nil for VMs that are not placed yet.
func New(rec *inventory.Record, hv hypervisor.Capability, session guestSession, log zerolog.Logger) *VM {
	return &VM{
		record:  rec,
		hv:      hv,
		session: session,
		log:     log.With().Str("vm", rec.Hostname()).Logger(),
	}
}

func (v *VM) FQDN() string {
	return v.record.Hostname()
}

func (v *VM) Record() *inventory.Record {
	return v.record
}

// Hypervisor returns the host this VM is placed on, nil if unplaced.
func (v *VM) Hypervisor() hypervisor.Capability {
	return v.hv
}

// SetHypervisor repoints the VM after placement or migration.
func (v *VM) SetHypervisor(hv hypervisor.Capability) {
	v.hv = hv
}

// Guest derives the hypervisor-facing view from the inventory record.
func (v *VM) Guest() (hypervisor.Guest, error) {
	return hypervisor.GuestFromRecord(v.record)
}

func (v *VM) requireHypervisor() error {
	if v.hv == nil {
		return fmt.Errorf("%s has no hypervisor assigned", v.FQDN())
	}

	return nil
}

// Defined reports whether the domain exists on the assigned
// hypervisor.
func (v *VM) Defined(ctx context.Context) (bool, error) {
	if err := v.requireHypervisor(); err != nil {
		return false, err
	}
	g, err := v.Guest()
	if err != nil {
		return false, err
	}

	return v.hv.VMDefined(ctx, g)
}

// Running reports whether the domain is powered on.
func (v *VM) Running(ctx context.Context) (bool, error) {
	if err := v.requireHypervisor(); err != nil {
		return false, err
	}
	g, err := v.Guest()
	if err != nil {
		return false, err
	}

	return v.hv.VMRunning(ctx, g)
}

// Start powers the domain on and waits until it reports running.
func (v *VM) Start(ctx context.Context) error {
	if err := v.requireHypervisor(); err != nil {
		return err
	}
	g, err := v.Guest()
	if err != nil {
		return err
	}

	if err := v.hv.StartVM(ctx, g); err != nil {
		return err
	}

	return v.awaitPower(ctx, true, bootTimeout)
}

// Stop shuts the domain down gracefully, escalating to a forced stop
// when the guest does not comply within the grace period.
func (v *VM) Stop(ctx context.Context, force bool) error {
	if err := v.requireHypervisor(); err != nil {
		return err
	}
	g, err := v.Guest()
	if err != nil {
		return err
	}

	if !force {
		if err := v.hv.StopVMGraceful(ctx, g); err != nil {
			return err
		}
		if err := v.awaitPower(ctx, false, gracePeriod); err == nil {
			return nil
		}
		v.log.Warn().Msg("graceful shutdown timed out, forcing")
	}

	if err := v.hv.StopVMForce(ctx, g); err != nil {
		return err
	}

	return v.awaitPower(ctx, false, gracePeriod)
}

// awaitPower polls the domain state until it matches want.
func (v *VM) awaitPower(ctx context.Context, want bool, timeout time.Duration) error {
	g, err := v.Guest()
	if err != nil {
		return err
	}

	check := func() (struct{}, error) {
		running, err := v.hv.VMRunning(ctx, g)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if running != want {
			return struct{}{}, fmt.Errorf("%s is not yet in the requested power state", v.FQDN())
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, check,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		return fmt.Errorf("waiting for power state of %s: %w", v.FQDN(), err)
	}

	return nil
}

// AwaitReachable waits until commands can be run inside the guest.
func (v *VM) AwaitReachable(ctx context.Context, timeout time.Duration) error {
	check := func() (struct{}, error) {
		_, err := v.session.Run(ctx, "true", remote.Silent(), remote.NoSudo())
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, check,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		return fmt.Errorf("waiting for %s to become reachable: %w", v.FQDN(), err)
	}

	return nil
}

// GrowRootFilesystem extends the guest root filesystem into freshly
// grown disk space.
func (v *VM) GrowRootFilesystem(ctx context.Context) error {
	_, err := v.session.Run(ctx, "xfs_growfs /")
	return err
}

// MemoryFreeMiB reports the guest's available memory.
func (v *VM) MemoryFreeMiB(ctx context.Context) (int64, error) {
	info, err := v.session.Meminfo(ctx)
	if err != nil {
		return 0, err
	}

	availableKiB, ok := info["MemAvailable"]
	if !ok {
		return 0, fmt.Errorf("no MemAvailable in meminfo of %s", v.FQDN())
	}

	return availableKiB >> 10, nil
}

// DiskUsage reports used and total GiB of the guest root filesystem.
func (v *VM) DiskUsage(ctx context.Context) (usedGiB, totalGiB int64, err error) {
	res, err := v.session.Run(ctx, "df -B1 --output=used,size /", remote.Silent())
	if err != nil {
		return 0, 0, err
	}

	lines := strings.Split(strings.TrimSpace(res.Output), "\n")
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("unexpected df output on %s: %q", v.FQDN(), res.Output)
	}

	used, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse df output on %s: %w", v.FQDN(), err)
	}
	total, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse df output on %s: %w", v.FQDN(), err)
	}

	return used >> 30, total >> 30, nil
}
