package hypervisor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/paddock-sh/paddock/internal/naming"
	"github.com/paddock-sh/paddock/internal/remote"
)

// Root volumes are LVM logical volumes in the host's volume group,
// one per VM, carrying an XFS filesystem.

func silentTolerant() []remote.RunOption {
	return []remote.RunOption{remote.Silent(), remote.TolerateExit()}
}

// VolumeExists checks for the root volume of fqdn.
func (h *Hypervisor) VolumeExists(ctx context.Context, fqdn string) (bool, error) {
	cmd := fmt.Sprintf("lvs --noheadings %s", naming.DevicePath(h.VolumeGroup(), fqdn))
	res, err := h.session.Run(ctx, cmd, silentTolerant()...)
	if err != nil {
		return false, err
	}

	return res.ExitStatus == 0, nil
}

// CreateVolume allocates the root volume for fqdn and puts a fresh
// filesystem on it.
func (h *Hypervisor) CreateVolume(ctx context.Context, fqdn string, sizeGiB int64) error {
	h.log.Info().Str("vm", fqdn).Int64("disk_size_gib", sizeGiB).Msg("creating root volume")

	cmd := fmt.Sprintf("lvcreate -y -L %dg -n %s %s", sizeGiB, naming.LogicalVolume(fqdn), h.VolumeGroup())
	if _, err := h.session.Run(ctx, cmd); err != nil {
		return err
	}

	mkfs := "mkfs.xfs -f " + naming.DevicePath(h.VolumeGroup(), fqdn)
	if _, err := h.session.Run(ctx, mkfs); err != nil {
		return err
	}

	return nil
}

// ExtendVolume grows the root volume of fqdn to sizeGiB and grows the
// filesystem with it.
func (h *Hypervisor) ExtendVolume(ctx context.Context, fqdn string, sizeGiB int64) error {
	dev := naming.DevicePath(h.VolumeGroup(), fqdn)
	cmd := fmt.Sprintf("lvresize -f -L %dg %s", sizeGiB, dev)
	if _, err := h.session.Run(ctx, cmd); err != nil {
		return err
	}

	return nil
}

// RemoveVolume drops the root volume of fqdn. A volume that is already
// gone is not an error; delete must be repeatable.
func (h *Hypervisor) RemoveVolume(ctx context.Context, fqdn string) error {
	exists, err := h.VolumeExists(ctx, fqdn)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	h.log.Info().Str("vm", fqdn).Msg("removing root volume")
	_, err = h.session.Run(ctx, "lvremove -f "+naming.DevicePath(h.VolumeGroup(), fqdn))

	return err
}

// RenameVolume moves the root volume to a new FQDN.
func (h *Hypervisor) RenameVolume(ctx context.Context, oldFQDN, newFQDN string) error {
	cmd := fmt.Sprintf("lvrename %s %s %s",
		h.VolumeGroup(), naming.LogicalVolume(oldFQDN), naming.LogicalVolume(newFQDN))
	_, err := h.session.Run(ctx, cmd)

	return err
}

// MountVolume makes the root volume of fqdn reachable on the host and
// returns the mount point. The caller must UmountVolume when done.
func (h *Hypervisor) MountVolume(ctx context.Context, fqdn string) (string, error) {
	res, err := h.session.Run(ctx, "mktemp -d /tmp/paddock-mnt.XXXXXX")
	if err != nil {
		return "", err
	}
	mnt := strings.TrimSpace(res.Output)

	cmd := fmt.Sprintf("mount %s %s", naming.DevicePath(h.VolumeGroup(), fqdn), mnt)
	if _, err := h.session.Run(ctx, cmd); err != nil {
		return "", err
	}

	return mnt, nil
}

// UmountVolume releases a mount made by MountVolume.
func (h *Hypervisor) UmountVolume(ctx context.Context, mountPoint string) error {
	if _, err := h.session.Run(ctx, "umount "+mountPoint); err != nil {
		return err
	}
	_, err := h.session.Run(ctx, "rmdir "+mountPoint)

	return err
}

// VolumeSizeGiB reads the current size of the root volume of fqdn.
func (h *Hypervisor) VolumeSizeGiB(ctx context.Context, fqdn string) (int64, error) {
	cmd := fmt.Sprintf("lvs --noheadings --nosuffix --units b -o lv_size %s",
		naming.DevicePath(h.VolumeGroup(), fqdn))
	res, err := h.session.Run(ctx, cmd, remote.Silent())
	if err != nil {
		return 0, err
	}

	bytes, err := strconv.ParseInt(strings.TrimSpace(res.Output), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse volume size %q of %s: %w", res.Output, fqdn, err)
	}

	return bytes >> 30, nil
}

// FreeDiskGiB returns the unallocated space in the volume group.
func (h *Hypervisor) FreeDiskGiB(ctx context.Context) (int64, error) {
	cmd := "vgs --noheadings --nosuffix --units b -o vg_free " + h.VolumeGroup()
	res, err := h.session.Run(ctx, cmd, remote.Silent())
	if err != nil {
		return 0, err
	}

	bytes, err := strconv.ParseInt(strings.TrimSpace(res.Output), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse free space %q on %s: %w", res.Output, h.FQDN(), err)
	}

	return bytes >> 30, nil
}

// TotalDiskGiB returns the size of the volume group.
func (h *Hypervisor) TotalDiskGiB(ctx context.Context) (int64, error) {
	cmd := "vgs --noheadings --nosuffix --units b -o vg_size " + h.VolumeGroup()
	res, err := h.session.Run(ctx, cmd, remote.Silent())
	if err != nil {
		return 0, err
	}

	bytes, err := strconv.ParseInt(strings.TrimSpace(res.Output), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse volume group size %q on %s: %w", res.Output, h.FQDN(), err)
	}

	return bytes >> 30, nil
}
