package main

import (
	"context"
	"os"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	"github.com/paddock-sh/paddock/internal/config"
	"github.com/paddock-sh/paddock/internal/hvconn"
	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/ops"
	"github.com/paddock-sh/paddock/internal/provision"
	"github.com/paddock-sh/paddock/internal/remote"
	"github.com/paddock-sh/paddock/internal/vm"
)

// application holds everything one invocation shares: configuration,
// the inventory client, the libvirt connection cache and one SSH
// session per host.
type application struct {
	cfg   *config.Config
	log   zerolog.Logger
	inv   *inventory.Client
	conns *hvconn.Cache
	mgr   *ops.Manager

	mu       sync.Mutex
	sessions map[string]*remote.Session
}

func newApplication() (*application, error) {
	path := flagConfig
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(logLevel()).
		With().Timestamp().Logger()

	settings := remote.Settings{
		User:           cfg.SSH.User,
		KeyFile:        cfg.SSH.KeyFile,
		Port:           cfg.SSH.Port,
		ConnectTimeout: cfg.SSH.ConnectTimeout,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		inv:      inventory.NewClient(cfg.Inventory.URL, cfg.Inventory.Token),
		conns:    hvconn.NewCache(hvconn.SSHOpener(settings), log),
		mgr:      &ops.Manager{Log: log},
		sessions: map[string]*remote.Session{},
	}, nil
}

// logLevel maps the -v/-s counts onto zerolog levels, starting from
// Info. Every -v steps towards Trace, every -s towards quiet.
func logLevel() zerolog.Level {
	level := int(zerolog.InfoLevel) + flagSilent - flagVerbose
	if level < int(zerolog.TraceLevel) {
		level = int(zerolog.TraceLevel)
	}
	if level > int(zerolog.Disabled) {
		level = int(zerolog.Disabled)
	}

	return zerolog.Level(level)
}

func (a *application) close() {
	a.conns.CloseAll()

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.sessions {
		s.Close()
	}
}

// session returns the shared SSH session for host, opening state on
// first command, not here.
func (a *application) session(host string) *remote.Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.sessions[host]; ok {
		return s
	}

	s := remote.NewSession(host, a.sshSettings(), a.log)
	a.sessions[host] = s

	return s
}

func (a *application) sshSettings() remote.Settings {
	return remote.Settings{
		User:           a.cfg.SSH.User,
		KeyFile:        a.cfg.SSH.KeyFile,
		Port:           a.cfg.SSH.Port,
		ConnectTimeout: a.cfg.SSH.ConnectTimeout,
	}
}

// hypervisorByName loads a hypervisor from the inventory and ties it
// to its SSH session and libvirt connection.
func (a *application) hypervisorByName(ctx context.Context, fqdn string) (*hypervisor.Hypervisor, error) {
	rec, err := a.inv.GetServer(ctx, fqdn, inventory.TypeHypervisor)
	if err != nil {
		return nil, err
	}

	return a.hypervisorFromRecord(rec)
}

func (a *application) hypervisorFromRecord(rec *inventory.Record) (*hypervisor.Hypervisor, error) {
	fqdn := rec.Hostname()
	connect := hypervisor.Connector(func() (*libvirt.Libvirt, error) {
		return a.conns.Get(fqdn, hvconn.DriverKVM)
	})

	return hypervisor.New(rec, a.session(fqdn), connect, a.log)
}

// vmByName loads a VM from the inventory. VMs without a hypervisor
// assignment come back unplaced; building places them.
func (a *application) vmByName(ctx context.Context, name string) (*vm.VM, error) {
	rec, err := a.inv.GetServer(ctx, name, inventory.TypeVM)
	if err != nil {
		return nil, err
	}

	var hv hypervisor.Capability
	if hvName := rec.GetString(inventory.AttrHypervisor); hvName != "" {
		h, err := a.hypervisorByName(ctx, hvName)
		if err != nil {
			return nil, err
		}
		hv = h
	}

	return vm.New(rec, hv, a.session(rec.Hostname()), a.log), nil
}

// candidates lists the hypervisors new VMs may be placed on. Reserved
// hosts only qualify with ignoreReserved; naming one explicitly always
// works.
func (a *application) candidates(ctx context.Context, ignoreReserved bool) ([]hypervisor.Capability, error) {
	states := []string{inventory.StateOnline}
	if ignoreReserved {
		states = append(states, inventory.StateOnlineReserved)
	}

	recs, err := a.inv.List(ctx, inventory.TypeHypervisor, states)
	if err != nil {
		return nil, err
	}

	hvs := make([]hypervisor.Capability, 0, len(recs))
	for _, rec := range recs {
		h, err := a.hypervisorFromRecord(rec)
		if err != nil {
			a.log.Warn().Err(err).Str("hypervisor", rec.Hostname()).Msg("skipping hypervisor")
			continue
		}
		hvs = append(hvs, h)
	}

	return hvs, nil
}

func (a *application) buildDeps(ignoreReserved bool) ops.BuildDeps {
	return ops.BuildDeps{
		Candidates: func(ctx context.Context) ([]hypervisor.Capability, error) {
			return a.candidates(ctx, ignoreReserved)
		},
		Policy: hypervisor.LeastAllocatedMemory{Log: a.log},
		Pipeline: &provision.Pipeline{
			Config: a.cfg,
			Session: func(host string) provision.HostSession {
				return a.session(host)
			},
			Log: a.log,
		},
	}
}
