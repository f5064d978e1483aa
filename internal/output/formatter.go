// Package output provides formatters for VM listings in table, YAML
// and JSON form.
package output

import (
	"fmt"

	"github.com/paddock-sh/paddock/internal/inventory"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// VMSummary is one row of a VM listing.
type VMSummary struct {
	Hostname   string `json:"hostname" yaml:"hostname"`
	State      string `json:"state" yaml:"state"`
	Hypervisor string `json:"hypervisor,omitempty" yaml:"hypervisor,omitempty"`
	IP         string `json:"ip,omitempty" yaml:"ip,omitempty"`
	NumCPU     int64  `json:"num_cpu" yaml:"num_cpu"`
	MemoryMiB  int64  `json:"memory_mib" yaml:"memory_mib"`
	DiskGiB    int64  `json:"disk_gib" yaml:"disk_gib"`
}

// SummaryFromRecord flattens an inventory record into a listing row.
// Missing sizing attributes become zeros, not errors; listings must
// work on half-filled records.
func SummaryFromRecord(rec *inventory.Record) VMSummary {
	numCPU, _ := rec.GetInt(inventory.AttrNumCPU)
	memory, _ := rec.GetInt(inventory.AttrMemory)
	disk, _ := rec.GetInt(inventory.AttrDiskSizeGiB)

	return VMSummary{
		Hostname:   rec.Hostname(),
		State:      rec.GetString(inventory.AttrState),
		Hypervisor: rec.GetString(inventory.AttrHypervisor),
		IP:         rec.GetString(inventory.AttrInternIP),
		NumCPU:     numCPU,
		MemoryMiB:  memory,
		DiskGiB:    disk,
	}
}

// Formatter renders VM listings for output.
type Formatter interface {
	// FormatVMList renders a list of VM summaries.
	FormatVMList(vms []VMSummary) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}
