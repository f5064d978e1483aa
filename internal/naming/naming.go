// Package naming holds the naming conventions that tie a VM's
// inventory identity to its on-hypervisor resources: MAC address, tap
// interface, logical volume and seed image locations.
package naming

import (
	"fmt"
	"net"
	"strings"
)

// ipv4 parses addr, which may carry a /prefix, into its 4-byte form.
func ipv4(addr string) (net.IP, error) {
	s := addr
	if strings.Contains(addr, "/") {
		ip, _, err := net.ParseCIDR(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}
		s = ip.String()
	}

	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid address %q", addr)
	}
	if ip = ip.To4(); ip == nil {
		return nil, fmt.Errorf("address %q is not IPv4", addr)
	}

	return ip, nil
}

// MACFromIP derives the deterministic MAC for a VM from its primary
// address, using the locally administered be:ef prefix. The same IP
// always maps to the same MAC, so rebuilds keep their DHCP leases and
// switch port security entries.
func MACFromIP(addr string) (string, error) {
	ip, err := ipv4(addr)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("be:ef:%02x:%02x:%02x:%02x", ip[0], ip[1], ip[2], ip[3]), nil
}

// InterfaceNameFromIP derives the host-side tap interface name from
// the VM's primary address, e.g. 10.55.22.22 becomes vm0a371616.
func InterfaceNameFromIP(addr string) (string, error) {
	ip, err := ipv4(addr)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("vm%02x%02x%02x%02x", ip[0], ip[1], ip[2], ip[3]), nil
}

// LogicalVolume returns the LVM volume name holding a VM's root disk.
// The domain name, the volume name and the inventory hostname are
// always the full FQDN.
func LogicalVolume(fqdn string) string {
	return fqdn
}

// DevicePath returns the block device path of a VM's root volume.
func DevicePath(volumeGroup, fqdn string) string {
	return fmt.Sprintf("/dev/%s/%s", volumeGroup, LogicalVolume(fqdn))
}

// SeedImagePath returns where a VM's cloud-init seed ISO lives on its
// hypervisor.
func SeedImagePath(fqdn string) string {
	return fmt.Sprintf("/var/lib/paddock/seed/%s.iso", fqdn)
}
