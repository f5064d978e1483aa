package hypervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	"github.com/paddock-sh/paddock/internal/inventory"
)

const (
	// reservedMemoryMiB is kept free for the host kernel, libvirtd and
	// page cache headroom when computing VM capacity.
	reservedMemoryMiB = 2048

	// defaultVolumeGroup holds VM root volumes unless the inventory
	// says otherwise.
	defaultVolumeGroup = "vg0"
)

// ConnectFunc hands out the libvirt connection for this host. The
// connection cache satisfies it in production.
type ConnectFunc func() (libvirtAPI, error)

// Connector adapts a connection source to ConnectFunc.
func Connector(get func() (*libvirt.Libvirt, error)) ConnectFunc {
	return func() (libvirtAPI, error) {
		return get()
	}
}

// Hypervisor is one KVM host under management.
type Hypervisor struct {
	record     *inventory.Record
	session    commandRunner
	connect    ConnectFunc
	replicator Replicator
	log        zerolog.Logger
}

// New builds a Hypervisor from its inventory record. Retired hosts are
// rejected outright; nothing may be ordered on them, not even reads,
// because their hardware may already be gone.
func New(rec *inventory.Record, session commandRunner, connect ConnectFunc, log zerolog.Logger) (*Hypervisor, error) {
	if rec.GetString(inventory.AttrState) == inventory.StateRetired {
		return nil, fmt.Errorf("hypervisor %q is retired", rec.Hostname())
	}

	return &Hypervisor{
		record:  rec,
		session: session,
		connect: connect,
		log:     log.With().Str("hypervisor", rec.Hostname()).Logger(),
	}, nil
}

func (h *Hypervisor) FQDN() string {
	return h.record.Hostname()
}

// StateTag returns the inventory state of the host.
func (h *Hypervisor) StateTag() string {
	return h.record.GetString(inventory.AttrState)
}

// Record exposes the inventory record, e.g. for placement bookkeeping.
func (h *Hypervisor) Record() *inventory.Record {
	return h.record
}

// VolumeGroup returns the LVM volume group holding VM root volumes.
func (h *Hypervisor) VolumeGroup() string {
	if vg := h.record.GetString("volume_group"); vg != "" {
		return vg
	}

	return defaultVolumeGroup
}

// lookupDomain finds the domain for g, or reports defined=false.
func (h *Hypervisor) lookupDomain(g Guest) (libvirt.Domain, bool, error) {
	conn, err := h.connect()
	if err != nil {
		return libvirt.Domain{}, false, err
	}

	dom, err := conn.DomainLookupByName(g.FQDN)
	if err != nil {
		if isNoDomainError(err) {
			return libvirt.Domain{}, false, nil
		}
		return libvirt.Domain{}, false, fmt.Errorf("lookup domain %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	return dom, true, nil
}

// isNoDomainError matches the libvirt "no domain with matching name"
// error across error shapes go-libvirt may return.
func isNoDomainError(err error) bool {
	var lvErr libvirt.Error
	if errors.As(err, &lvErr) {
		return lvErr.Code == uint32(libvirt.ErrNoDomain)
	}

	return false
}

// VMDefined reports whether a domain for g exists on this host.
func (h *Hypervisor) VMDefined(_ context.Context, g Guest) (bool, error) {
	_, defined, err := h.lookupDomain(g)
	return defined, err
}

// VMRunning reports whether the domain for g exists and is not shut
// off. Paused and shutting-down domains still count as running; they
// hold their resources.
func (h *Hypervisor) VMRunning(_ context.Context, g Guest) (bool, error) {
	conn, err := h.connect()
	if err != nil {
		return false, err
	}

	dom, defined, err := h.lookupDomain(g)
	if err != nil || !defined {
		return false, err
	}

	state, _, err := conn.DomainGetState(dom, 0)
	if err != nil {
		return false, fmt.Errorf("get state of %s on %s: %w", g.FQDN, h.FQDN(), err)
	}

	return state != int32(libvirt.DomainShutoff) && state != int32(libvirt.DomainCrashed), nil
}
