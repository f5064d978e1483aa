package hypervisor

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/paddock-sh/paddock/internal/naming"
)

// StartVM powers on the defined domain for g.
func (h *Hypervisor) StartVM(_ context.Context, g Guest) error {
	conn, err := h.connect()
	if err != nil {
		return err
	}

	dom, defined, err := h.lookupDomain(g)
	if err != nil {
		return err
	}
	if !defined {
		return fmt.Errorf("cannot start %s: not defined on %s", g.FQDN, h.FQDN())
	}

	h.log.Info().Str("vm", g.FQDN).Msg("starting domain")
	if err := conn.DomainCreate(dom); err != nil {
		return fmt.Errorf("start %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	return nil
}

// StopVMGraceful sends an ACPI shutdown request. The domain may take a
// while to comply; callers poll VMRunning.
func (h *Hypervisor) StopVMGraceful(_ context.Context, g Guest) error {
	conn, err := h.connect()
	if err != nil {
		return err
	}

	dom, defined, err := h.lookupDomain(g)
	if err != nil {
		return err
	}
	if !defined {
		return fmt.Errorf("cannot shut down %s: not defined on %s", g.FQDN, h.FQDN())
	}

	h.log.Info().Str("vm", g.FQDN).Msg("requesting graceful shutdown")
	if err := conn.DomainShutdown(dom); err != nil {
		return fmt.Errorf("shut down %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	return nil
}

// StopVMForce pulls the virtual power cord.
func (h *Hypervisor) StopVMForce(_ context.Context, g Guest) error {
	conn, err := h.connect()
	if err != nil {
		return err
	}

	dom, defined, err := h.lookupDomain(g)
	if err != nil {
		return err
	}
	if !defined {
		return fmt.Errorf("cannot destroy %s: not defined on %s", g.FQDN, h.FQDN())
	}

	h.log.Warn().Str("vm", g.FQDN).Msg("force stopping domain")
	if err := conn.DomainDestroy(dom); err != nil {
		return fmt.Errorf("destroy %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	return nil
}

// DefineVM writes the domain definition for g, including the seed ISO
// if one is present on the host.
func (h *Hypervisor) DefineVM(ctx context.Context, g Guest) error {
	conn, err := h.connect()
	if err != nil {
		return err
	}

	withSeed, err := h.seedImageExists(ctx, g)
	if err != nil {
		return err
	}

	xml, err := h.generateDomainXML(g, withSeed)
	if err != nil {
		return err
	}

	h.log.Info().Str("vm", g.FQDN).Msg("defining domain")
	if _, err := conn.DomainDefineXML(xml); err != nil {
		return fmt.Errorf("define %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	return nil
}

func (h *Hypervisor) seedImageExists(ctx context.Context, g Guest) (bool, error) {
	res, err := h.session.Run(ctx, "test -e "+naming.SeedImagePath(g.FQDN), silentTolerant()...)
	if err != nil {
		return false, err
	}

	return res.ExitStatus == 0, nil
}

// UndefineVM removes the domain definition but leaves storage alone.
func (h *Hypervisor) UndefineVM(_ context.Context, g Guest) error {
	conn, err := h.connect()
	if err != nil {
		return err
	}

	dom, defined, err := h.lookupDomain(g)
	if err != nil {
		return err
	}
	if !defined {
		return nil
	}

	h.log.Info().Str("vm", g.FQDN).Msg("undefining domain")
	if err := conn.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
		return fmt.Errorf("undefine %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	return nil
}

// DeleteVM undefines the domain and, unless keepStorage is set,
// removes its root volume and seed image.
func (h *Hypervisor) DeleteVM(ctx context.Context, g Guest, keepStorage bool) error {
	if err := h.UndefineVM(ctx, g); err != nil {
		return err
	}

	if keepStorage {
		return nil
	}

	if err := h.RemoveVolume(ctx, g.FQDN); err != nil {
		return err
	}
	if err := h.removeSeedImage(ctx, g); err != nil {
		return err
	}

	return nil
}

func (h *Hypervisor) removeSeedImage(ctx context.Context, g Guest) error {
	_, err := h.session.Run(ctx, "rm -f "+naming.SeedImagePath(g.FQDN))
	return err
}

// RedefineVM refreshes the domain definition from the current desired
// state, e.g. after offline sizing changes.
func (h *Hypervisor) RedefineVM(ctx context.Context, g Guest) error {
	if err := h.UndefineVM(ctx, g); err != nil {
		return err
	}

	return h.DefineVM(ctx, g)
}

// RenameVM moves the domain definition and the root volume to a new
// FQDN. The domain must be shut off.
func (h *Hypervisor) RenameVM(ctx context.Context, g Guest, newFQDN string) error {
	running, err := h.VMRunning(ctx, g)
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("cannot rename %s while it is running", g.FQDN)
	}

	if err := h.UndefineVM(ctx, g); err != nil {
		return err
	}
	if err := h.RenameVolume(ctx, g.FQDN, newFQDN); err != nil {
		return err
	}

	renamed := g
	renamed.FQDN = newFQDN

	return h.DefineVM(ctx, renamed)
}

// SetNumCPU changes the vCPU count. Running domains are changed live
// and in the persistent definition; shut-off domains are redefined.
func (h *Hypervisor) SetNumCPU(ctx context.Context, g Guest, count int) error {
	if count < 1 {
		return fmt.Errorf("vCPU count %d for %s is not positive", count, g.FQDN)
	}

	conn, err := h.connect()
	if err != nil {
		return err
	}

	running, err := h.VMRunning(ctx, g)
	if err != nil {
		return err
	}

	g.NumCPU = count
	if !running {
		return h.RedefineVM(ctx, g)
	}

	dom, _, err := h.lookupDomain(g)
	if err != nil {
		return err
	}

	h.log.Info().Str("vm", g.FQDN).Int("num_cpu", count).Msg("setting vCPU count")
	flags := uint32(libvirt.DomainVCPUMaximum | libvirt.DomainVCPUConfig)
	if err := conn.DomainSetVcpusFlags(dom, uint32(count), flags); err != nil {
		return fmt.Errorf("set maximum vCPUs of %s: %w", g.FQDN, err)
	}
	flags = uint32(libvirt.DomainVCPULive | libvirt.DomainVCPUConfig)
	if err := conn.DomainSetVcpusFlags(dom, uint32(count), flags); err != nil {
		return fmt.Errorf("set vCPUs of %s: %w", g.FQDN, err)
	}

	return nil
}

// SetMemory changes the memory size. Online only ballooning up within
// the configured maximum is possible; everything else goes through a
// redefine while shut off, which the lifecycle layer enforces.
func (h *Hypervisor) SetMemory(ctx context.Context, g Guest, memoryMiB int64) error {
	if memoryMiB < 1 {
		return fmt.Errorf("memory size %d MiB for %s is not positive", memoryMiB, g.FQDN)
	}

	conn, err := h.connect()
	if err != nil {
		return err
	}

	running, err := h.VMRunning(ctx, g)
	if err != nil {
		return err
	}

	g.MemoryMiB = memoryMiB
	if !running {
		return h.RedefineVM(ctx, g)
	}

	dom, _, err := h.lookupDomain(g)
	if err != nil {
		return err
	}

	h.log.Info().Str("vm", g.FQDN).Int64("memory_mib", memoryMiB).Msg("setting memory")
	memoryKiB := uint64(memoryMiB) << 10
	flags := uint32(libvirt.DomainMemMaximum | libvirt.DomainMemConfig)
	if err := conn.DomainSetMemoryFlags(dom, memoryKiB, flags); err != nil {
		return fmt.Errorf("set maximum memory of %s: %w", g.FQDN, err)
	}
	flags = uint32(libvirt.DomainMemLive | libvirt.DomainMemConfig)
	if err := conn.DomainSetMemoryFlags(dom, memoryKiB, flags); err != nil {
		return fmt.Errorf("set memory of %s: %w", g.FQDN, err)
	}

	return nil
}

// SetDiskSize grows the root volume to sizeGiB and, when the domain is
// running, propagates the new size to the virtual block device.
// Shrinking is refused; there is no safe generic way to shrink a
// filesystem underneath a guest.
func (h *Hypervisor) SetDiskSize(ctx context.Context, g Guest, sizeGiB int64) error {
	if sizeGiB <= g.DiskGiB {
		return fmt.Errorf("disk of %s can only grow (%d GiB requested, %d GiB present)",
			g.FQDN, sizeGiB, g.DiskGiB)
	}

	if err := h.ExtendVolume(ctx, g.FQDN, sizeGiB); err != nil {
		return err
	}

	running, err := h.VMRunning(ctx, g)
	if err != nil {
		return err
	}
	if !running {
		return nil
	}

	conn, err := h.connect()
	if err != nil {
		return err
	}
	dom, _, err := h.lookupDomain(g)
	if err != nil {
		return err
	}

	size := uint64(sizeGiB) << 30
	if err := conn.DomainBlockResize(dom, "vda", size, libvirt.DomainBlockResizeBytes); err != nil {
		return fmt.Errorf("block resize of %s: %w", g.FQDN, err)
	}

	return nil
}
