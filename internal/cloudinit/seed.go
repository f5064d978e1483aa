// Package cloudinit renders NoCloud seed data for freshly provisioned
// guests: user-data, meta-data and a netplan v2 network-config,
// packaged into a CIDATA ISO.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedSpec holds everything the first boot of a guest needs.
type SeedSpec struct {
	FQDN             string
	MACAddress       string
	Address          string // CIDR notation
	Gateway          string
	DNSServers       []string
	SSHKeys          []string
	RootPasswordHash string
}

func (s SeedSpec) validate() error {
	if s.FQDN == "" {
		return fmt.Errorf("seed spec has no FQDN")
	}
	if s.Address == "" {
		return fmt.Errorf("seed spec for %s has no address", s.FQDN)
	}
	if s.MACAddress == "" {
		return fmt.Errorf("seed spec for %s has no MAC address", s.FQDN)
	}

	return nil
}

type userData struct {
	Hostname          string    `yaml:"hostname"`
	FQDN              string    `yaml:"fqdn"`
	SSHAuthorizedKeys []string  `yaml:"ssh_authorized_keys,omitempty"`
	Chpasswd          *chpasswd `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth   bool      `yaml:"ssh_pwauth"`
	GrowPart          growPart  `yaml:"growpart"`
}

type chpasswd struct {
	Expire bool   `yaml:"expire"`
	List   string `yaml:"list"`
}

type growPart struct {
	Mode    string   `yaml:"mode"`
	Devices []string `yaml:"devices"`
}

type metaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

type networkConfig struct {
	Version   int                       `yaml:"version"`
	Ethernets map[string]ethernetConfig `yaml:"ethernets"`
}

type ethernetConfig struct {
	Match       matchConfig   `yaml:"match"`
	Addresses   []string      `yaml:"addresses"`
	Routes      []routeConfig `yaml:"routes,omitempty"`
	Nameservers *nameservers  `yaml:"nameservers,omitempty"`
}

type matchConfig struct {
	MACAddress string `yaml:"macaddress"`
}

type routeConfig struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

type nameservers struct {
	Addresses []string `yaml:"addresses"`
}

// UserData renders the cloud-config document, including the
// "#cloud-config" header line cloud-init requires.
func UserData(spec SeedSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}

	ud := userData{
		Hostname:        strings.SplitN(spec.FQDN, ".", 2)[0],
		FQDN:            spec.FQDN,
		SSHPasswordAuth: false,
		GrowPart: growPart{
			Mode:    "auto",
			Devices: []string{"/"},
		},
	}
	if len(spec.SSHKeys) > 0 {
		ud.SSHAuthorizedKeys = spec.SSHKeys
	}
	if spec.RootPasswordHash != "" {
		ud.Chpasswd = &chpasswd{
			Expire: false,
			List:   "root:" + spec.RootPasswordHash,
		}
	}

	out, err := yaml.Marshal(&ud)
	if err != nil {
		return "", fmt.Errorf("marshal user-data: %w", err)
	}

	return "#cloud-config\n" + string(out), nil
}

// MetaData renders the instance metadata. The instance-id is the FQDN,
// so a rebuild under the same name runs cloud-init again.
func MetaData(spec SeedSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}

	out, err := yaml.Marshal(&metaData{
		InstanceID:    spec.FQDN,
		LocalHostname: spec.FQDN,
	})
	if err != nil {
		return "", fmt.Errorf("marshal meta-data: %w", err)
	}

	return string(out), nil
}

// NetworkConfig renders the netplan v2 document, matching the single
// guest interface by its deterministic MAC.
func NetworkConfig(spec SeedSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}

	eth := ethernetConfig{
		Match:     matchConfig{MACAddress: spec.MACAddress},
		Addresses: []string{spec.Address},
	}
	if spec.Gateway != "" {
		eth.Routes = []routeConfig{{To: "0.0.0.0/0", Via: spec.Gateway}}
	}
	if len(spec.DNSServers) > 0 {
		eth.Nameservers = &nameservers{Addresses: spec.DNSServers}
	}

	out, err := yaml.Marshal(&networkConfig{
		Version:   2,
		Ethernets: map[string]ethernetConfig{"eth0": eth},
	})
	if err != nil {
		return "", fmt.Errorf("marshal network-config: %w", err)
	}

	return string(out), nil
}
