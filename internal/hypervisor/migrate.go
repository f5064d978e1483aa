package hypervisor

import (
	"context"
	"fmt"

	"github.com/paddock-sh/paddock/internal/naming"
	"github.com/paddock-sh/paddock/internal/transaction"
)

// Replicator copies a VM root volume between two hypervisors.
type Replicator interface {
	Replicate(ctx context.Context, g Guest, source, target *Hypervisor) error
}

// UseReplicator installs the disk copy mechanism used by migrations.
func (h *Hypervisor) UseReplicator(r Replicator) {
	h.replicator = r
}

// CheckMigration validates a migration of g from this host to target
// before anything is touched.
func (h *Hypervisor) CheckMigration(ctx context.Context, g Guest, target *Hypervisor) error {
	if target.FQDN() == h.FQDN() {
		return fmt.Errorf("%s is already on %s", g.FQDN, h.FQDN())
	}

	return target.CheckVM(ctx, g)
}

// MigrateVM moves g's definition and storage to target. The domain
// must already be shut off; each completed step registers its undo on
// tx so a failed migration leaves the VM on the source.
func (h *Hypervisor) MigrateVM(ctx context.Context, g Guest, targetCap Capability, offline bool, tx *transaction.Transaction) error {
	target, ok := targetCap.(*Hypervisor)
	if !ok {
		return fmt.Errorf("migration target %s is not a KVM hypervisor", targetCap.FQDN())
	}

	if !offline {
		return fmt.Errorf("%s runs on local storage, only offline migration is possible", g.FQDN)
	}

	if err := h.CheckMigration(ctx, g, target); err != nil {
		return err
	}
	running, err := h.VMRunning(ctx, g)
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("%s must be shut off before offline migration", g.FQDN)
	}

	h.log.Info().Str("vm", g.FQDN).Str("target", target.FQDN()).Msg("migrating VM")

	cmd := fmt.Sprintf("lvcreate -y -L %dg -n %s %s", g.DiskGiB, naming.LogicalVolume(g.FQDN), target.VolumeGroup())
	if _, err := target.session.Run(ctx, cmd); err != nil {
		return err
	}
	tx.OnRollback("remove target volume", func(ctx context.Context) error {
		return target.RemoveVolume(ctx, g.FQDN)
	})

	replicator := h.replicator
	if replicator == nil {
		replicator = sshStreamReplicator{}
	}
	if err := replicator.Replicate(ctx, g, h, target); err != nil {
		return fmt.Errorf("replicate disk of %s to %s: %w", g.FQDN, target.FQDN(), err)
	}

	if err := target.DefineVM(ctx, g); err != nil {
		return err
	}
	tx.OnRollback("undefine on target", func(ctx context.Context) error {
		return target.UndefineVM(ctx, g)
	})

	if err := h.UndefineVM(ctx, g); err != nil {
		return err
	}
	tx.OnRollback("redefine on source", func(ctx context.Context) error {
		return h.DefineVM(ctx, g)
	})

	return nil
}

// sshStreamReplicator streams the raw volume from source to target
// over host-to-host SSH. Hypervisors trust each other's host keys
// through the shared management key.
type sshStreamReplicator struct{}

func (sshStreamReplicator) Replicate(ctx context.Context, g Guest, source, target *Hypervisor) error {
	src := naming.DevicePath(source.VolumeGroup(), g.FQDN)
	dst := naming.DevicePath(target.VolumeGroup(), g.FQDN)

	cmd := fmt.Sprintf(
		"dd if=%s bs=4M | ssh -o BatchMode=yes -o StrictHostKeyChecking=no %s 'dd of=%s bs=4M'",
		src, target.FQDN(), dst)
	_, err := source.session.Run(ctx, cmd)

	return err
}
