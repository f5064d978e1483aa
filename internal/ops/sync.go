package ops

import (
	"context"

	"github.com/paddock-sh/paddock/internal/vm"
)

// Sync pulls sizing facts from the hypervisor and writes any that
// differ back to the inventory. The hypervisor is authoritative.
func (m *Manager) Sync(ctx context.Context, v *vm.VM) (Result, error) {
	if _, err := m.CheckDefined(ctx, v, true); err != nil {
		return Result{}, err
	}

	g, err := v.Guest()
	if err != nil {
		return Result{}, err
	}

	actual, err := v.Hypervisor().VMSyncFromHypervisor(ctx, g)
	if err != nil {
		return Result{}, err
	}

	changed := 0
	for attr, value := range actual {
		current, err := v.Record().GetInt(attr)
		if err == nil && current == value {
			continue
		}
		m.Log.Info().
			Str("vm", v.FQDN()).
			Str("attribute", attr).
			Int64("value", value).
			Msg("updating inventory from hypervisor")
		v.Record().Set(attr, value)
		changed++
	}

	if changed == 0 {
		return noop("%s already matches its hypervisor", v.FQDN()), nil
	}

	if err := v.Record().Commit(ctx); err != nil {
		return Result{}, err
	}

	return applied("synchronized %d attribute(s) of %s", changed, v.FQDN()), nil
}
