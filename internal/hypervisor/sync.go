package hypervisor

import (
	"context"
	"fmt"

	"github.com/paddock-sh/paddock/internal/inventory"
)

// VMSyncFromHypervisor reads the actual sizing of g's domain and
// storage, keyed by the inventory attribute names they correspond to.
func (h *Hypervisor) VMSyncFromHypervisor(ctx context.Context, g Guest) (map[string]int64, error) {
	conn, err := h.connect()
	if err != nil {
		return nil, err
	}

	dom, defined, err := h.lookupDomain(g)
	if err != nil {
		return nil, err
	}
	if !defined {
		return nil, fmt.Errorf("%s is not defined on %s", g.FQDN, h.FQDN())
	}

	_, maxMemKiB, _, nrVirtCPU, _, err := conn.DomainGetInfo(dom)
	if err != nil {
		return nil, fmt.Errorf("domain info of %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	diskGiB, err := h.VolumeSizeGiB(ctx, g.FQDN)
	if err != nil {
		return nil, err
	}

	return map[string]int64{
		inventory.AttrMemory:      int64(maxMemKiB >> 10),
		inventory.AttrNumCPU:      int64(nrVirtCPU),
		inventory.AttrDiskSizeGiB: diskGiB,
	}, nil
}
