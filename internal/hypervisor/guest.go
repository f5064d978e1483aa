// Package hypervisor models a KVM host: its libvirt domains, LVM
// storage and capacity. Operations take a Guest, the hypervisor-facing
// view of a VM's desired state.
package hypervisor

import (
	"fmt"

	"github.com/paddock-sh/paddock/internal/inventory"
)

// Guest is what a hypervisor needs to know about a VM to define, size
// and place it. It is derived from the VM's inventory record.
type Guest struct {
	FQDN        string
	IP          string // primary address, may carry a /prefix
	NumCPU      int
	MemoryMiB   int64
	DiskGiB     int64
	OS          string
	Environment string
	SSHPubKey   string
}

// GuestFromRecord derives the hypervisor-facing view from a VM
// inventory record. Missing sizing attributes are ConfigErrors so
// broken inventory data stops an operation before it touches a host.
func GuestFromRecord(rec *inventory.Record) (Guest, error) {
	numCPU, err := rec.GetInt(inventory.AttrNumCPU)
	if err != nil {
		return Guest{}, err
	}
	memory, err := rec.GetInt(inventory.AttrMemory)
	if err != nil {
		return Guest{}, err
	}
	disk, err := rec.GetInt(inventory.AttrDiskSizeGiB)
	if err != nil {
		return Guest{}, err
	}

	g := Guest{
		FQDN:        rec.Hostname(),
		IP:          rec.GetString(inventory.AttrInternIP),
		NumCPU:      int(numCPU),
		MemoryMiB:   memory,
		DiskGiB:     disk,
		OS:          rec.GetString(inventory.AttrOS),
		Environment: rec.GetString(inventory.AttrEnvironment),
		SSHPubKey:   rec.GetString(inventory.AttrSSHPubKey),
	}
	if g.FQDN == "" {
		return Guest{}, fmt.Errorf("inventory record has no hostname")
	}

	return g, nil
}
