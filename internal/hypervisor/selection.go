package hypervisor

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNoSuitableHypervisor is returned when no candidate can take a VM.
var ErrNoSuitableHypervisor = errors.New("no hypervisor can take this VM")

// Candidate is the placement-facing slice of a hypervisor.
type Candidate interface {
	FQDN() string
	StateTag() string
	CheckVM(ctx context.Context, g Guest) error
	FreeMemoryMiB(ctx context.Context) (int64, error)
}

// SelectionPolicy picks the hypervisor a new VM is built on.
type SelectionPolicy interface {
	Select(ctx context.Context, g Guest, candidates []Candidate) (Candidate, error)
}

// LeastAllocatedMemory places a VM on the suitable host with the most
// free memory, breaking ties by FQDN so repeated runs are
// deterministic. Candidates that fail admission are logged and
// skipped.
type LeastAllocatedMemory struct {
	Log zerolog.Logger
}

func (p LeastAllocatedMemory) Select(ctx context.Context, g Guest, candidates []Candidate) (Candidate, error) {
	var best Candidate
	var bestFree int64

	for _, c := range candidates {
		if err := c.CheckVM(ctx, g); err != nil {
			p.Log.Info().Err(err).Str("hypervisor", c.FQDN()).Msg("skipping hypervisor")
			continue
		}

		free, err := c.FreeMemoryMiB(ctx)
		if err != nil {
			p.Log.Warn().Err(err).Str("hypervisor", c.FQDN()).Msg("cannot read free memory, skipping")
			continue
		}

		if best == nil || free > bestFree || (free == bestFree && c.FQDN() < best.FQDN()) {
			best, bestFree = c, free
		}
	}

	if best == nil {
		return nil, ErrNoSuitableHypervisor
	}

	return best, nil
}
