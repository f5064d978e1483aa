package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true}
	v := testVM(host, nil)

	res, err := m.Start(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, []string{"start"}, host.callLog())
}

func TestStartAlreadyRunning(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true, running: true}
	v := testVM(host, nil)

	res, err := m.Start(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.Empty(t, host.callLog())
}

func TestStopAlreadyStopped(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true}
	v := testVM(host, nil)

	res, err := m.Stop(context.Background(), v, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.Empty(t, host.callLog())
}

func TestStopForce(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true, running: true}
	v := testVM(host, nil)

	res, err := m.Stop(context.Background(), v, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, []string{"force"}, host.callLog())
}

func TestRestartRedefines(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true, running: true}
	v := testVM(host, nil)

	res, err := m.Restart(context.Background(), v, false, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, []string{"stop", "redefine", "start"}, host.callLog())
}

func TestRestartNoRedefine(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true, running: true}
	v := testVM(host, nil)

	_, err := m.Restart(context.Background(), v, false, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "start"}, host.callLog())
}

func TestPowerReservedVMRejected(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true}
	v := reservedVM(host)

	var ise *InvalidStateError
	_, err := m.Start(context.Background(), v)
	require.ErrorAs(t, err, &ise)
	assert.Contains(t, err.Error(), "online_reserved")

	_, err = m.Stop(context.Background(), v, false)
	require.ErrorAs(t, err, &ise)
	assert.Empty(t, host.callLog())
}

func TestRestartStoppedFails(t *testing.T) {
	m := testManager()
	host := &mockHost{defined: true}
	v := testVM(host, nil)

	_, err := m.Restart(context.Background(), v, false, false)
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Empty(t, host.callLog())
}
