package ops

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/inventory"
)

func TestMigrateStopped(t *testing.T) {
	m := testManager()
	source := &mockHost{fqdn: "hv1.example.net", defined: true}
	target := &mockHost{fqdn: "hv2.example.net"}
	v := testVM(source, nil)

	res, err := m.Migrate(context.Background(), v, MigrateDeps{Target: target})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, []string{"hv2.example.net"}, source.migrated)
	assert.Equal(t, []string{"migrate", "delete"}, source.callLog())
	assert.Equal(t, "hv2.example.net", v.Record().GetString(inventory.AttrHypervisor))
	assert.Equal(t, target, v.Hypervisor())
	assert.Equal(t, inventory.StateOnline, v.Record().GetString(inventory.AttrState))
	assert.False(t, v.Record().IsDirty())
}

func TestMigrateOutOfSyncRejected(t *testing.T) {
	m := testManager()
	source := &mockHost{
		fqdn:       "hv1.example.net",
		defined:    true,
		syncResult: map[string]int64{inventory.AttrMemory: 4096},
	}
	target := &mockHost{fqdn: "hv2.example.net"}
	v := testVM(source, nil)

	_, err := m.Migrate(context.Background(), v, MigrateDeps{Target: target})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run sync first")
	assert.Empty(t, source.migrated)
}

func TestMigrateRunningRestartsOnTarget(t *testing.T) {
	m := testManager()
	source := &mockHost{fqdn: "hv1.example.net", defined: true, running: true}
	target := &mockHost{fqdn: "hv2.example.net"}
	v := testVM(source, nil)

	res, err := m.Migrate(context.Background(), v, MigrateDeps{Target: target})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Contains(t, source.callLog(), "stop")
	assert.Contains(t, target.callLog(), "start")
}

func TestMigrateSameHostNoop(t *testing.T) {
	m := testManager()
	source := &mockHost{fqdn: "hv1.example.net", defined: true}
	v := testVM(source, nil)

	res, err := m.Migrate(context.Background(), v, MigrateDeps{Target: source})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.Empty(t, source.migrated)
}

func TestMigrateFailureRestartsOnSource(t *testing.T) {
	m := testManager()
	source := &mockHost{
		fqdn:       "hv1.example.net",
		defined:    true,
		running:    true,
		migrateErr: errors.New("replication failed"),
	}
	target := &mockHost{fqdn: "hv2.example.net"}
	v := testVM(source, nil)

	_, err := m.Migrate(context.Background(), v, MigrateDeps{Target: target})
	require.Error(t, err)
	assert.Contains(t, source.callLog(), "start")
	assert.Equal(t, source, v.Hypervisor())
	assert.Equal(t, "hv1.example.net", v.Record().GetString(inventory.AttrHypervisor))
	// The maintenance tag set for the move is rolled back.
	assert.Equal(t, inventory.StateOnline, v.Record().GetString(inventory.AttrState))
}

func TestMigrateReservedVMRejected(t *testing.T) {
	m := testManager()
	source := &mockHost{fqdn: "hv1.example.net", defined: true}
	target := &mockHost{fqdn: "hv2.example.net"}
	v := reservedVM(source)

	_, err := m.Migrate(context.Background(), v, MigrateDeps{Target: target})
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Contains(t, err.Error(), "online_reserved")
	assert.Empty(t, source.migrated)
}

func TestMigrateReservedVMWithOverride(t *testing.T) {
	m := testManager()
	source := &mockHost{fqdn: "hv1.example.net", defined: true}
	target := &mockHost{fqdn: "hv2.example.net"}
	v := reservedVM(source)

	res, err := m.Migrate(context.Background(), v, MigrateDeps{Target: target, IgnoreReserved: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, []string{"hv2.example.net"}, source.migrated)
	assert.Equal(t, inventory.StateOnlineReserved, v.Record().GetString(inventory.AttrState))
}

func TestMigrateSelectsTarget(t *testing.T) {
	m := testManager()
	source := &mockHost{fqdn: "hv1.example.net", defined: true, freeMiB: 4096}
	other := &mockHost{fqdn: "hv2.example.net", freeMiB: 65536}
	v := testVM(source, nil)

	res, err := m.Migrate(context.Background(), v, MigrateDeps{
		Candidates: candidatesOf(source, other),
		Policy:     hypervisor.LeastAllocatedMemory{Log: zerolog.Nop()},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, []string{"hv2.example.net"}, source.migrated)
}
