package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// NetworkConfig describes the primary global-scope interface of a
// host.
type NetworkConfig struct {
	Address string // CIDR notation
	Device  string
}

// NumCPU returns the number of online processors. The probe runs once
// per session and is memoized, including a failed probe.
func (s *Session) NumCPU(ctx context.Context) (int, error) {
	s.cpuOnce.Do(func() {
		res, err := s.Run(ctx, "grep -c ^processor /proc/cpuinfo", Silent())
		if err != nil {
			s.cpuErr = err
			return
		}
		s.cpu, s.cpuErr = strconv.Atoi(strings.TrimSpace(res.Output))
		if s.cpuErr != nil {
			s.cpuErr = fmt.Errorf("parse processor count %q: %w", res.Output, s.cpuErr)
		}
	})

	return s.cpu, s.cpuErr
}

// Network returns the primary interface configuration. Memoized like
// NumCPU.
func (s *Session) Network(ctx context.Context) (NetworkConfig, error) {
	s.netOnce.Do(func() {
		res, err := s.Run(ctx, "ip -o -4 addr show scope global", Silent())
		if err != nil {
			s.netErr = err
			return
		}
		s.net, s.netErr = parseNetworkConfig(res.Output)
	})

	return s.net, s.netErr
}

// parseNetworkConfig picks the first interface from `ip -o -4 addr`
// output, e.g. "2: ens3    inet 10.0.0.5/24 brd ...".
func parseNetworkConfig(output string) (NetworkConfig, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[2] != "inet" {
			continue
		}

		return NetworkConfig{Device: fields[1], Address: fields[3]}, nil
	}

	return NetworkConfig{}, fmt.Errorf("no global-scope IPv4 interface found")
}

// Meminfo parses /proc/meminfo into a map of KiB values.
func (s *Session) Meminfo(ctx context.Context) (map[string]int64, error) {
	content, err := s.ReadFile(ctx, "/proc/meminfo")
	if err != nil {
		return nil, err
	}

	info := map[string]int64{}
	for _, line := range strings.Split(content, "\n") {
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		info[strings.TrimSpace(key)] = value
	}

	if len(info) == 0 {
		return nil, fmt.Errorf("empty meminfo on %s", s.host)
	}

	return info, nil
}
