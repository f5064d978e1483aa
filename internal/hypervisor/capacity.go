package hypervisor

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/paddock-sh/paddock/internal/inventory"
)

// TotalMemoryMiB is the node memory available for VMs, after the host
// reservation.
func (h *Hypervisor) TotalMemoryMiB(_ context.Context) (int64, error) {
	conn, err := h.connect()
	if err != nil {
		return 0, err
	}

	_, memoryKiB, _, _, _, _, _, _, err := conn.NodeGetInfo()
	if err != nil {
		return 0, fmt.Errorf("node info of %s: %w", h.FQDN(), err)
	}

	return int64(memoryKiB>>10) - reservedMemoryMiB, nil
}

// FreeMemoryMiB is the memory still available for new VMs: total minus
// the reservation minus what running domains hold.
func (h *Hypervisor) FreeMemoryMiB(ctx context.Context) (int64, error) {
	total, err := h.TotalMemoryMiB(ctx)
	if err != nil {
		return 0, err
	}

	allocated, err := h.allocatedMemoryMiB()
	if err != nil {
		return 0, err
	}

	return total - allocated, nil
}

func (h *Hypervisor) allocatedMemoryMiB() (int64, error) {
	conn, err := h.connect()
	if err != nil {
		return 0, err
	}

	domains, _, err := conn.ConnectListAllDomains(-1, libvirt.ConnectListDomainsActive)
	if err != nil {
		return 0, fmt.Errorf("list domains on %s: %w", h.FQDN(), err)
	}

	var allocatedKiB uint64
	for _, dom := range domains {
		_, maxMem, _, _, _, err := conn.DomainGetInfo(dom)
		if err != nil {
			return 0, fmt.Errorf("domain info of %s on %s: %w", dom.Name, h.FQDN(), err)
		}
		allocatedKiB += maxMem
	}

	return int64(allocatedKiB >> 10), nil
}

// NumCPU is the host processor count.
func (h *Hypervisor) NumCPU(_ context.Context) (int, error) {
	conn, err := h.connect()
	if err != nil {
		return 0, err
	}

	_, _, cpus, _, _, _, _, _, err := conn.NodeGetInfo()
	if err != nil {
		return 0, fmt.Errorf("node info of %s: %w", h.FQDN(), err)
	}

	return int(cpus), nil
}

// CheckVM verifies that g can be placed on this host: acceptable host
// state, no name collision and enough CPU, memory and disk.
func (h *Hypervisor) CheckVM(ctx context.Context, g Guest) error {
	switch h.StateTag() {
	case inventory.StateOnline, inventory.StateOnlineReserved:
	default:
		return fmt.Errorf("hypervisor %s is %s, not accepting VMs", h.FQDN(), h.StateTag())
	}

	defined, err := h.VMDefined(ctx, g)
	if err != nil {
		return err
	}
	if defined {
		return fmt.Errorf("%s is already defined on %s", g.FQDN, h.FQDN())
	}

	cpus, err := h.NumCPU(ctx)
	if err != nil {
		return err
	}
	if g.NumCPU > cpus {
		return fmt.Errorf("%s wants %d vCPUs, %s has %d cores", g.FQDN, g.NumCPU, h.FQDN(), cpus)
	}

	freeMem, err := h.FreeMemoryMiB(ctx)
	if err != nil {
		return err
	}
	if g.MemoryMiB > freeMem {
		return fmt.Errorf("%s wants %d MiB memory, %s has %d MiB free",
			g.FQDN, g.MemoryMiB, h.FQDN(), freeMem)
	}

	freeDisk, err := h.FreeDiskGiB(ctx)
	if err != nil {
		return err
	}
	if g.DiskGiB > freeDisk {
		return fmt.Errorf("%s wants %d GiB disk, %s has %d GiB free",
			g.FQDN, g.DiskGiB, h.FQDN(), freeDisk)
	}

	return nil
}
