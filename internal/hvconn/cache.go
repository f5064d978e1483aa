// Package hvconn maintains libvirt connections to hypervisors. The
// libvirt RPC socket is reached by tunneling through the same SSH
// access the tool already has, and connections are cached per host so
// repeated operations reuse them.
package hvconn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"
)

// Driver selects the virtualization driver on the target host.
type Driver string

// DriverKVM is the only driver this tool manages.
const DriverKVM Driver = "kvm"

// ErrUnsupportedDriver is returned for any driver other than KVM.
var ErrUnsupportedDriver = errors.New("unsupported virtualization driver")

// OpenFunc establishes a connected libvirt client for one host.
type OpenFunc func(host string) (*libvirt.Libvirt, error)

type cacheKey struct {
	driver Driver
	host   string
}

// Cache hands out libvirt connections, opening each host at most once
// until CloseAll. Safe for concurrent use.
type Cache struct {
	open OpenFunc
	log  zerolog.Logger

	mu    sync.Mutex
	conns map[cacheKey]*libvirt.Libvirt
}

// NewCache builds a cache that opens connections with open.
func NewCache(open OpenFunc, log zerolog.Logger) *Cache {
	return &Cache{
		open:  open,
		log:   log,
		conns: map[cacheKey]*libvirt.Libvirt{},
	}
}

// Get returns the cached connection for host, opening one on first
// use. Failed opens are not cached.
func (c *Cache) Get(host string, driver Driver) (*libvirt.Libvirt, error) {
	if driver != DriverKVM {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{driver: driver, host: host}
	if conn, ok := c.conns[key]; ok {
		return conn, nil
	}

	c.log.Debug().Str("host", host).Msg("opening libvirt connection")
	conn, err := c.open(host)
	if err != nil {
		return nil, fmt.Errorf("connect libvirt on %s: %w", host, err)
	}
	c.conns[key] = conn

	return conn, nil
}

// CloseAll disconnects every cached connection. Errors are logged, not
// returned; at teardown there is nothing left to do about them.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, conn := range c.conns {
		if err := conn.Disconnect(); err != nil {
			c.log.Warn().Err(err).Str("host", key.host).Msg("closing libvirt connection failed")
		}
		delete(c.conns, key)
	}
}
