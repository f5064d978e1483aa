package ops

import (
	"context"
	"fmt"
	"io"

	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/report"
	"github.com/paddock-sh/paddock/internal/vm"
)

// Info renders the inventory view of a VM in categorized sections
// plus, when it is running, live memory and disk gauges read from the
// guest.
func (m *Manager) Info(ctx context.Context, w io.Writer, v *vm.VM) error {
	attrs := v.Record().Attrs()

	status := "not placed"
	var usages []report.Usage
	if v.Hypervisor() != nil {
		s, err := v.Status(ctx)
		if err != nil {
			return err
		}
		status = s.String()
		if s == vm.StatusDefinedRunning {
			usages = m.usageGauges(ctx, v)
		}
	}

	general := takeFields(attrs,
		inventory.AttrHostname,
		inventory.AttrState,
		inventory.AttrOS,
		inventory.AttrEnvironment,
		inventory.AttrHypervisor,
	)
	general = append(general, report.Field{Key: "status", Value: status})

	network := takeFields(attrs, inventory.AttrInternIP)
	resources := takeFields(attrs,
		inventory.AttrNumCPU,
		inventory.AttrMemory,
		inventory.AttrDiskSizeGiB,
	)

	report.Render(w, v.FQDN(), nil, nil)
	fmt.Fprintln(w)
	report.Render(w, "General", general, nil)
	if len(network) > 0 {
		fmt.Fprintln(w)
		report.Render(w, "Network", network, nil)
	}
	fmt.Fprintln(w)
	report.Render(w, "Resources", resources, usages)
	if other := report.FieldsFromAttrs(attrs); len(other) > 0 {
		fmt.Fprintln(w)
		report.Render(w, "Other", other, nil)
	}

	return nil
}

// takeFields removes the named attributes from attrs and returns them
// as fields in the given order, skipping unset ones.
func takeFields(attrs map[string]any, names ...string) []report.Field {
	var fields []report.Field
	for _, name := range names {
		v, ok := attrs[name]
		if !ok || v == nil {
			continue
		}
		fields = append(fields, report.Field{Key: name, Value: fmt.Sprint(v)})
		delete(attrs, name)
	}

	return fields
}

// usageGauges reads live utilization from the guest. Probe failures
// only cost the gauge, not the report.
func (m *Manager) usageGauges(ctx context.Context, v *vm.VM) []report.Usage {
	var usages []report.Usage

	totalMiB, err := v.Record().GetInt(inventory.AttrMemory)
	if err == nil {
		freeMiB, err := v.MemoryFreeMiB(ctx)
		if err != nil {
			m.Log.Warn().Err(err).Str("vm", v.FQDN()).Msg("cannot probe guest memory")
		} else {
			usages = append(usages, report.Usage{
				Label: "memory", Used: totalMiB - freeMiB, Total: totalMiB, Unit: "MiB",
			})
		}
	}

	usedGiB, totalGiB, err := v.DiskUsage(ctx)
	if err != nil {
		m.Log.Warn().Err(err).Str("vm", v.FQDN()).Msg("cannot probe guest disk usage")
	} else {
		usages = append(usages, report.Usage{
			Label: "disk", Used: usedGiB, Total: totalGiB, Unit: "GiB",
		})
	}

	return usages
}
