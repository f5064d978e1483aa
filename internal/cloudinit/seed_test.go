package cloudinit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testSpec() SeedSpec {
	return SeedSpec{
		FQDN:       "web01.example.net",
		MACAddress: "be:ef:0a:37:16:16",
		Address:    "10.55.22.22/24",
		Gateway:    "10.55.22.1",
		DNSServers: []string{"10.0.0.53"},
		SSHKeys:    []string{"ssh-ed25519 AAAA... ops"},
	}
}

func TestUserData(t *testing.T) {
	out, err := UserData(testSpec())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "#cloud-config\n"))

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(strings.TrimPrefix(out, "#cloud-config\n")), &parsed))
	assert.Equal(t, "web01", parsed["hostname"])
	assert.Equal(t, "web01.example.net", parsed["fqdn"])
	assert.Equal(t, false, parsed["ssh_pwauth"])
	assert.NotContains(t, parsed, "chpasswd")
}

func TestUserDataWithRootPassword(t *testing.T) {
	spec := testSpec()
	spec.RootPasswordHash = "$6$salt$hash"

	out, err := UserData(spec)
	require.NoError(t, err)
	assert.Contains(t, out, "root:$6$salt$hash")
}

func TestMetaDataUsesFQDNAsInstanceID(t *testing.T) {
	out, err := MetaData(testSpec())
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "web01.example.net", parsed["instance-id"])
	assert.Equal(t, "web01.example.net", parsed["local-hostname"])
}

func TestNetworkConfig(t *testing.T) {
	out, err := NetworkConfig(testSpec())
	require.NoError(t, err)

	var parsed networkConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, 2, parsed.Version)

	eth := parsed.Ethernets["eth0"]
	assert.Equal(t, "be:ef:0a:37:16:16", eth.Match.MACAddress)
	assert.Equal(t, []string{"10.55.22.22/24"}, eth.Addresses)
	require.Len(t, eth.Routes, 1)
	assert.Equal(t, routeConfig{To: "0.0.0.0/0", Via: "10.55.22.1"}, eth.Routes[0])
	assert.Equal(t, []string{"10.0.0.53"}, eth.Nameservers.Addresses)
}

func TestSeedSpecValidation(t *testing.T) {
	spec := testSpec()
	spec.FQDN = ""
	_, err := UserData(spec)
	assert.Error(t, err)

	spec = testSpec()
	spec.Address = ""
	_, err = NetworkConfig(spec)
	assert.Error(t, err)

	spec = testSpec()
	spec.MACAddress = ""
	_, err = MetaData(spec)
	assert.Error(t, err)
}

func TestSeedISO(t *testing.T) {
	iso, err := SeedISO(testSpec())
	require.NoError(t, err)
	require.NotEmpty(t, iso)

	// ISO9660 primary volume descriptor sits at sector 16 and carries
	// the volume identifier at offset 40.
	require.Greater(t, len(iso), 16*2048+72)
	assert.Equal(t, "CD001", string(iso[16*2048+1:16*2048+6]))
	assert.Equal(t, "CIDATA", strings.TrimSpace(string(iso[16*2048+40:16*2048+72])))
}
