package hypervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-sh/paddock/internal/inventory"
)

type fakeCandidate struct {
	fqdn     string
	free     int64
	checkErr error
	freeErr  error
}

func (f *fakeCandidate) FQDN() string     { return f.fqdn }
func (f *fakeCandidate) StateTag() string { return inventory.StateOnline }

func (f *fakeCandidate) CheckVM(context.Context, Guest) error {
	return f.checkErr
}

func (f *fakeCandidate) FreeMemoryMiB(context.Context) (int64, error) {
	return f.free, f.freeErr
}

func TestLeastAllocatedMemoryPicksMostFree(t *testing.T) {
	policy := LeastAllocatedMemory{Log: zerolog.Nop()}

	picked, err := policy.Select(context.Background(), testGuest(), []Candidate{
		&fakeCandidate{fqdn: "hv1.example.net", free: 4096},
		&fakeCandidate{fqdn: "hv2.example.net", free: 16384},
		&fakeCandidate{fqdn: "hv3.example.net", free: 8192},
	})
	require.NoError(t, err)
	assert.Equal(t, "hv2.example.net", picked.FQDN())
}

func TestLeastAllocatedMemorySkipsFailingCandidates(t *testing.T) {
	policy := LeastAllocatedMemory{Log: zerolog.Nop()}

	picked, err := policy.Select(context.Background(), testGuest(), []Candidate{
		&fakeCandidate{fqdn: "hv1.example.net", free: 32768, checkErr: errors.New("full")},
		&fakeCandidate{fqdn: "hv2.example.net", free: 16384, freeErr: errors.New("unreachable")},
		&fakeCandidate{fqdn: "hv3.example.net", free: 1024},
	})
	require.NoError(t, err)
	assert.Equal(t, "hv3.example.net", picked.FQDN())
}

func TestLeastAllocatedMemoryBreaksTiesByName(t *testing.T) {
	policy := LeastAllocatedMemory{Log: zerolog.Nop()}

	picked, err := policy.Select(context.Background(), testGuest(), []Candidate{
		&fakeCandidate{fqdn: "hv9.example.net", free: 8192},
		&fakeCandidate{fqdn: "hv2.example.net", free: 8192},
	})
	require.NoError(t, err)
	assert.Equal(t, "hv2.example.net", picked.FQDN())
}

func TestLeastAllocatedMemoryNoCandidates(t *testing.T) {
	policy := LeastAllocatedMemory{Log: zerolog.Nop()}

	_, err := policy.Select(context.Background(), testGuest(), []Candidate{
		&fakeCandidate{fqdn: "hv1.example.net", checkErr: errors.New("full")},
	})
	assert.ErrorIs(t, err, ErrNoSuitableHypervisor)
}
