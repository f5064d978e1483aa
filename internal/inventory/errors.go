package inventory

import "fmt"

// ConfigError reports inventory data that the tool cannot work with:
// missing objects, ambiguous matches, stale records or attributes of
// an unexpected shape.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// NotFound reports whether err is a ConfigError for a missing object.
func notFoundError(hostname, serverType string) *ConfigError {
	return configErrorf("no %s object found for %q", serverType, hostname)
}
