package hypervisor

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/paddock-sh/paddock/internal/naming"
)

// generateDomainXML renders the libvirt definition for g on this host:
// a raw LVM-backed root disk, a bridge interface with the MAC derived
// from the VM's address, a serial console and the cloud-init seed ISO.
func (h *Hypervisor) generateDomainXML(g Guest, withSeed bool) (string, error) {
	mac, err := naming.MACFromIP(g.IP)
	if err != nil {
		return "", fmt.Errorf("domain XML for %s: %w", g.FQDN, err)
	}
	ifaceName, err := naming.InterfaceNameFromIP(g.IP)
	if err != nil {
		return "", fmt.Errorf("domain XML for %s: %w", g.FQDN, err)
	}

	domain := &libvirtxml.Domain{
		Type: "kvm",
		Name: g.FQDN,
		Memory: &libvirtxml.DomainMemory{
			Value: uint(g.MemoryMiB),
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     uint(g.NumCPU),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch: "x86_64",
				Type: "hvm",
			},
			BIOS: &libvirtxml.DomainBIOS{
				UseSerial: "yes",
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-model",
			Model: &libvirtxml.DomainCPUModel{
				Fallback: "allow",
			},
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
			Timer: []libvirtxml.DomainTimer{
				{Name: "rtc", TickPolicy: "catchup"},
				{Name: "pit", TickPolicy: "delay"},
				{Name: "hpet", Present: "no"},
			},
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "restart",
		Devices: &libvirtxml.DomainDeviceList{
			Disks: []libvirtxml.DomainDisk{
				{
					Device: "disk",
					Driver: &libvirtxml.DomainDiskDriver{
						Name:  "qemu",
						Type:  "raw",
						Cache: "none",
					},
					Source: &libvirtxml.DomainDiskSource{
						Block: &libvirtxml.DomainDiskSourceBlock{
							Dev: naming.DevicePath(h.VolumeGroup(), g.FQDN),
						},
					},
					Target: &libvirtxml.DomainDiskTarget{
						Dev: "vda",
						Bus: "virtio",
					},
					Boot: &libvirtxml.DomainDeviceBoot{
						Order: 1,
					},
				},
			},
			Interfaces: []libvirtxml.DomainInterface{
				{
					MAC: &libvirtxml.DomainInterfaceMAC{
						Address: mac,
					},
					Source: &libvirtxml.DomainInterfaceSource{
						Bridge: &libvirtxml.DomainInterfaceSourceBridge{
							Bridge: h.bridge(),
						},
					},
					Model: &libvirtxml.DomainInterfaceModel{
						Type: "virtio",
					},
					Target: &libvirtxml.DomainInterfaceTarget{
						Dev: ifaceName,
					},
				},
			},
			Serials: []libvirtxml.DomainSerial{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
					Target: &libvirtxml.DomainSerialTarget{
						Port: func() *uint { p := uint(0); return &p }(),
					},
				},
			},
			Consoles: []libvirtxml.DomainConsole{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
					Target: &libvirtxml.DomainConsoleTarget{
						Type: "serial",
						Port: func() *uint { p := uint(0); return &p }(),
					},
				},
			},
			MemBalloon: &libvirtxml.DomainMemBalloon{
				Model: "virtio",
			},
			RNGs: []libvirtxml.DomainRNG{
				{
					Model: "virtio",
					Backend: &libvirtxml.DomainRNGBackend{
						Random: &libvirtxml.DomainRNGBackendRandom{
							Device: "/dev/urandom",
						},
					},
				},
			},
		},
	}

	if withSeed {
		domain.Devices.Disks = append(domain.Devices.Disks, libvirtxml.DomainDisk{
			Device: "cdrom",
			Driver: &libvirtxml.DomainDiskDriver{
				Name: "qemu",
				Type: "raw",
			},
			Source: &libvirtxml.DomainDiskSource{
				File: &libvirtxml.DomainDiskSourceFile{
					File: naming.SeedImagePath(g.FQDN),
				},
			},
			Target: &libvirtxml.DomainDiskTarget{
				Dev: "sda",
				Bus: "sata",
			},
			ReadOnly: &libvirtxml.DomainDiskReadOnly{},
		})
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal domain XML for %s: %w", g.FQDN, err)
	}

	return xml, nil
}

// bridge returns the host bridge VM interfaces attach to.
func (h *Hypervisor) bridge() string {
	if b := h.record.GetString("bridge"); b != "" {
		return b
	}

	return "br0"
}
