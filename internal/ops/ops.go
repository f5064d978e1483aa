// Package ops implements the VM lifecycle operations the CLI exposes:
// building, resizing, power handling, migration, renaming, deletion
// and inventory synchronization.
package ops

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/vm"
)

// InvalidStateError means the VM is not in a state the requested
// operation can work from, e.g. restarting a stopped VM.
type InvalidStateError struct {
	msg string
}

func (e *InvalidStateError) Error() string {
	return e.msg
}

func invalidStatef(format string, args ...any) *InvalidStateError {
	return &InvalidStateError{msg: fmt.Sprintf(format, args...)}
}

// Outcome distinguishes work done from work already done.
type Outcome int

const (
	// OutcomeApplied means the operation changed something.
	OutcomeApplied Outcome = iota
	// OutcomeNoop means the requested state was already in place.
	OutcomeNoop
)

// Result is the summary of a completed operation.
type Result struct {
	Outcome Outcome
	Message string
}

func applied(format string, args ...any) Result {
	return Result{Outcome: OutcomeApplied, Message: fmt.Sprintf(format, args...)}
}

func noop(format string, args ...any) Result {
	return Result{Outcome: OutcomeNoop, Message: fmt.Sprintf(format, args...)}
}

// Manager runs lifecycle operations. It only carries cross-cutting
// dependencies; the VM and its hypervisor come in per call.
type Manager struct {
	Log zerolog.Logger
}

// CheckDefined verifies the VM has a hypervisor and a domain on it.
// With failHard the violation is an InvalidStateError; without, it is
// logged and reported through the bool so cleanup-style operations can
// carry on.
func (m *Manager) CheckDefined(ctx context.Context, v *vm.VM, failHard bool) (bool, error) {
	problem := ""
	if v.Hypervisor() == nil {
		problem = fmt.Sprintf("%s has no hypervisor assigned", v.FQDN())
	} else {
		defined, err := v.Defined(ctx)
		if err != nil {
			return false, err
		}
		if !defined {
			problem = fmt.Sprintf("%s is not defined on %s", v.FQDN(), v.Hypervisor().FQDN())
		}
	}

	if problem == "" {
		return true, nil
	}
	if failHard {
		return false, &InvalidStateError{msg: problem}
	}
	m.Log.Warn().Str("vm", v.FQDN()).Msg(problem)

	return false, nil
}

// checkReserved refuses to touch a VM tagged online_reserved.
// Operations intended for reserved machines, decommissioning among
// them, pass ignoreReserved.
func checkReserved(v *vm.VM, ignoreReserved bool) error {
	if ignoreReserved {
		return nil
	}
	if v.Record().GetString(inventory.AttrState) == inventory.StateOnlineReserved {
		return invalidStatef("%s is online_reserved", v.FQDN())
	}

	return nil
}
