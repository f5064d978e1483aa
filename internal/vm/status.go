package vm

import (
	"context"
	"fmt"
)

// Status is the observed lifecycle state of a VM on its hypervisor.
type Status int

const (
	// StatusNotDefined means no domain exists for the VM.
	StatusNotDefined Status = iota
	// StatusDefinedStopped means the domain exists but is shut off.
	StatusDefinedStopped
	// StatusDefinedRunning means the domain exists and is powered on.
	StatusDefinedRunning
)

func (s Status) String() string {
	switch s {
	case StatusNotDefined:
		return "not defined"
	case StatusDefinedStopped:
		return "defined, stopped"
	case StatusDefinedRunning:
		return "defined, running"
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

// Status derives the current lifecycle state from the hypervisor.
func (v *VM) Status(ctx context.Context) (Status, error) {
	defined, err := v.Defined(ctx)
	if err != nil {
		return StatusNotDefined, err
	}
	if !defined {
		return StatusNotDefined, nil
	}

	running, err := v.Running(ctx)
	if err != nil {
		return StatusNotDefined, err
	}
	if running {
		return StatusDefinedRunning, nil
	}

	return StatusDefinedStopped, nil
}
