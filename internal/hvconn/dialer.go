package hvconn

import (
	"fmt"
	"net"

	"github.com/digitalocean/go-libvirt"
	"golang.org/x/crypto/ssh"

	"github.com/paddock-sh/paddock/internal/remote"
)

const libvirtSocket = "/var/run/libvirt/libvirt-sock"

// sshTunnelDialer satisfies the go-libvirt socket dialer by opening
// the libvirtd UNIX socket through an established SSH connection.
type sshTunnelDialer struct {
	client *ssh.Client
}

func (d sshTunnelDialer) Dial() (net.Conn, error) {
	return d.client.Dial("unix", libvirtSocket)
}

// SSHOpener returns an OpenFunc that connects to libvirtd on the
// target host through SSH using the given connection settings.
func SSHOpener(settings remote.Settings) OpenFunc {
	return func(host string) (*libvirt.Libvirt, error) {
		client, err := remote.NewSSHClient(host, settings)
		if err != nil {
			return nil, err
		}

		conn := libvirt.NewWithDialer(sshTunnelDialer{client: client})
		if err := conn.Connect(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("libvirt handshake: %w", err)
		}

		return conn, nil
	}
}
