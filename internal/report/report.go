// Package report renders human-facing summaries of VMs and
// hypervisors, including colored usage bars for memory and disk.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

const barSlots = 20

// Field is one key/value line of a report.
type Field struct {
	Key   string
	Value string
}

// Usage is one resource gauge of a report.
type Usage struct {
	Label string
	Used  int64
	Total int64
	Unit  string
}

// Bar renders a fixed-width usage gauge. Utilization from 80% turns
// yellow, from 90% red.
func Bar(used, total int64) string {
	if total <= 0 {
		return "[" + strings.Repeat("?", barSlots) + "]     -"
	}

	ratio := float64(used) / float64(total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio*barSlots + 0.5)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barSlots-filled)
	text := fmt.Sprintf("[%s] %4.0f%%", bar, ratio*100)

	switch {
	case ratio >= 0.9:
		return color.New(color.FgRed).Sprint(text)
	case ratio >= 0.8:
		return color.New(color.FgYellow).Sprint(text)
	default:
		return text
	}
}

// Render writes a titled block of fields followed by usage gauges.
// Fields keep their given order; keys are padded for alignment.
func Render(w io.Writer, title string, fields []Field, usages []Usage) {
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title)))

	width := 0
	for _, f := range fields {
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}
	for _, u := range usages {
		if len(u.Label) > width {
			width = len(u.Label)
		}
	}

	for _, f := range fields {
		fmt.Fprintf(w, "%-*s  %s\n", width, f.Key, f.Value)
	}
	for _, u := range usages {
		fmt.Fprintf(w, "%-*s  %s %d/%d %s\n", width, u.Label, Bar(u.Used, u.Total), u.Used, u.Total, u.Unit)
	}
}

// FieldsFromAttrs turns an attribute map into sorted report fields,
// useful for dumping inventory data.
func FieldsFromAttrs(attrs map[string]any) []Field {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: fmt.Sprint(attrs[k])})
	}

	return fields
}
