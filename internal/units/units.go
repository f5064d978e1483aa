// Package units parses human-entered size expressions such as "16G",
// "+1024M" or "-2g" into integer values of a fixed target unit.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit is a binary size unit used as the canonical unit of a value.
type Unit int64

const (
	Byte Unit = 1
	KiB  Unit = 1 << 10
	MiB  Unit = 1 << 20
	GiB  Unit = 1 << 30
	TiB  Unit = 1 << 40
)

func (u Unit) String() string {
	switch u {
	case Byte:
		return "B"
	case KiB:
		return "KiB"
	case MiB:
		return "MiB"
	case GiB:
		return "GiB"
	case TiB:
		return "TiB"
	}

	return fmt.Sprintf("Unit(%d)", int64(u))
}

func unitForSuffix(s string) (Unit, bool) {
	switch strings.ToUpper(s) {
	case "":
		return 0, true // caller default
	case "B":
		return Byte, true
	case "K", "KB", "KIB":
		return KiB, true
	case "M", "MB", "MIB":
		return MiB, true
	case "G", "GB", "GIB":
		return GiB, true
	case "T", "TB", "TIB":
		return TiB, true
	}

	return 0, false
}

// Parse converts a size expression into an integer amount of def units.
// A bare number is taken to already be in def units. A unit suffix may
// be any of K, M, G, T with optional "B"/"iB" tail, case-insensitive.
// Values that do not divide evenly into the target unit are rejected
// rather than silently rounded.
func Parse(text string, def Unit) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("empty size expression")
	}

	digits := text
	suffix := ""
	for i, r := range text {
		if r < '0' || r > '9' {
			digits, suffix = text[:i], text[i:]
			break
		}
	}

	if digits == "" {
		return 0, fmt.Errorf("size %q has no numeric part", text)
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", text, err)
	}

	unit, ok := unitForSuffix(strings.TrimSpace(suffix))
	if !ok {
		return 0, fmt.Errorf("size %q has unknown unit %q", text, suffix)
	}
	if unit == 0 {
		unit = def
	}

	bytes := value * int64(unit)
	if bytes/int64(unit) != value {
		return 0, fmt.Errorf("size %q overflows", text)
	}
	if bytes%int64(def) != 0 {
		return 0, fmt.Errorf("size %q is not a whole number of %s", text, def)
	}

	return bytes / int64(def), nil
}

// Resolve evaluates a size expression against a current value. A
// leading "+" or "-" makes the expression relative to current;
// otherwise it is an absolute target. The result is in def units.
func Resolve(text string, current int64, def Unit) (int64, error) {
	text = strings.TrimSpace(text)

	sign := int64(0)
	switch {
	case strings.HasPrefix(text, "+"):
		sign = 1
	case strings.HasPrefix(text, "-"):
		sign = -1
	}
	if sign != 0 {
		text = text[1:]
	}

	value, err := Parse(text, def)
	if err != nil {
		return 0, err
	}

	if sign == 0 {
		return value, nil
	}

	result := current + sign*value
	if result <= 0 {
		return 0, fmt.Errorf("size change %d%s from %d%s leaves nothing", sign*value, def, current, def)
	}

	return result, nil
}
