// Package provision builds the hypervisor-side artifacts of a new VM:
// the root volume with the OS image unpacked into it, the cloud-init
// seed ISO and the domain definition.
package provision

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/paddock-sh/paddock/internal/cloudinit"
	"github.com/paddock-sh/paddock/internal/config"
	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/naming"
	"github.com/paddock-sh/paddock/internal/remote"
	"github.com/paddock-sh/paddock/internal/transaction"
	"github.com/paddock-sh/paddock/internal/vm"
)

// storageHost is what the pipeline needs from a hypervisor beyond the
// plain lifecycle interface. *hypervisor.Hypervisor satisfies it.
type storageHost interface {
	FQDN() string
	CreateVolume(ctx context.Context, fqdn string, sizeGiB int64) error
	RemoveVolume(ctx context.Context, fqdn string) error
	MountVolume(ctx context.Context, fqdn string) (string, error)
	UmountVolume(ctx context.Context, mountPoint string) error
}

// HostSession uploads files to and runs commands on a hypervisor.
// *remote.Session satisfies it.
type HostSession interface {
	Run(ctx context.Context, command string, opts ...remote.RunOption) (remote.Result, error)
	Upload(ctx context.Context, content []byte, path, mode string) error
}

// Pipeline provisions guests. Session maps a hypervisor FQDN to an
// open session on it, shared with whatever opened the hypervisor.
type Pipeline struct {
	Config  *config.Config
	Session func(host string) HostSession
	Log     zerolog.Logger
}

// Provision creates volume, root filesystem, seed image and domain for
// v on its hypervisor. Each completed step registers its undo on tx;
// nothing is started.
func (p *Pipeline) Provision(ctx context.Context, v *vm.VM, tx *transaction.Transaction) error {
	g, err := v.Guest()
	if err != nil {
		return err
	}

	host, ok := v.Hypervisor().(storageHost)
	if !ok {
		return fmt.Errorf("%s cannot provision storage", v.Hypervisor().FQDN())
	}
	session := p.Session(host.FQDN())

	p.Log.Info().Str("vm", g.FQDN).Str("hypervisor", host.FQDN()).Msg("creating root volume")
	if err := host.CreateVolume(ctx, g.FQDN, g.DiskGiB); err != nil {
		return err
	}
	tx.OnRollback("remove volume", func(ctx context.Context) error {
		return host.RemoveVolume(ctx, g.FQDN)
	})

	if err := p.installImage(ctx, g, host, session); err != nil {
		return err
	}

	if err := p.installSeedImage(ctx, g, session); err != nil {
		return err
	}
	tx.OnRollback("remove seed image", func(ctx context.Context) error {
		_, err := session.Run(ctx, fmt.Sprintf("rm -f %s", naming.SeedImagePath(g.FQDN)))
		return err
	})

	if err := v.Hypervisor().DefineVM(ctx, g); err != nil {
		return err
	}
	tx.OnRollback("undefine domain", func(ctx context.Context) error {
		return v.Hypervisor().UndefineVM(ctx, g)
	})

	return nil
}

// installImage unpacks the OS image tarball onto the mounted root
// volume. The volume is unmounted again whether the unpack worked or
// not.
func (p *Pipeline) installImage(ctx context.Context, g hypervisor.Guest, host storageHost, session HostSession) error {
	imageURL, err := p.Config.ImageURLFor(g.OS)
	if err != nil {
		return err
	}

	mountPoint, err := host.MountVolume(ctx, g.FQDN)
	if err != nil {
		return err
	}

	p.Log.Info().Str("vm", g.FQDN).Str("image", imageURL).Msg("unpacking OS image")
	cmd := fmt.Sprintf("curl -fsSL %s | tar -xpzf - -C %s", imageURL, mountPoint)
	_, unpackErr := session.Run(ctx, cmd)

	if err := host.UmountVolume(ctx, mountPoint); err != nil {
		if unpackErr == nil {
			return err
		}
		p.Log.Warn().Err(err).Str("vm", g.FQDN).Msg("cannot unmount root volume")
	}
	if unpackErr != nil {
		return fmt.Errorf("unpack image for %s: %w", g.FQDN, unpackErr)
	}

	return nil
}

func (p *Pipeline) installSeedImage(ctx context.Context, g hypervisor.Guest, session HostSession) error {
	spec, err := p.seedSpec(g)
	if err != nil {
		return err
	}

	iso, err := cloudinit.SeedISO(spec)
	if err != nil {
		return err
	}

	return session.Upload(ctx, iso, naming.SeedImagePath(g.FQDN), "0644")
}

// seedSpec assembles first-boot data for a guest. The gateway is the
// first usable address of the guest's network.
func (p *Pipeline) seedSpec(g hypervisor.Guest) (cloudinit.SeedSpec, error) {
	mac, err := naming.MACFromIP(g.IP)
	if err != nil {
		return cloudinit.SeedSpec{}, err
	}

	gateway, err := gatewayForCIDR(g.IP)
	if err != nil {
		return cloudinit.SeedSpec{}, err
	}

	keys := p.Config.Provision.SSHKeys
	if g.SSHPubKey != "" {
		keys = append(append([]string(nil), keys...), g.SSHPubKey)
	}

	return cloudinit.SeedSpec{
		FQDN:             g.FQDN,
		MACAddress:       mac,
		Address:          g.IP,
		Gateway:          gateway,
		DNSServers:       p.Config.Provision.DNSServers,
		SSHKeys:          keys,
		RootPasswordHash: p.Config.Provision.RootPasswordHash,
	}, nil
}

func gatewayForCIDR(addr string) (string, error) {
	_, network, err := net.ParseCIDR(addr)
	if err != nil {
		return "", fmt.Errorf("guest address %q is not in CIDR notation: %w", addr, err)
	}

	gw := network.IP.To4()
	if gw == nil {
		return "", fmt.Errorf("guest address %q is not IPv4", addr)
	}
	gw = append(net.IP(nil), gw...)
	gw[3]++

	return gw.String(), nil
}
