package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// TableFormatter formats VM listings as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatVMList formats a list of VMs as a table.
func (f *TableFormatter) FormatVMList(vms []VMSummary) (string, error) {
	if len(vms) == 0 {
		return "No VMs found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tHYPERVISOR\tIP\tVCPUS\tMEMORY\tDISK")
	}

	for _, vm := range vms {
		hv := vm.Hypervisor
		if hv == "" {
			hv = "-"
		}
		ip := vm.IP
		if ip == "" {
			ip = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d MiB\t%d GiB\n",
			vm.Hostname, vm.State, hv, ip, vm.NumCPU, vm.MemoryMiB, vm.DiskGiB)
	}

	_ = w.Flush()
	return buf.String(), nil
}
