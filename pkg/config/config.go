// Package config loads YAML configuration files with shell-style
// environment expansion: `${VAR}` substitutes the variable and
// `${VAR:-fallback}` substitutes fallback when the variable is unset
// or empty.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by config structs that check themselves
// after decoding.
type Validator interface {
	Validate() error
}

// Load reads filename, expands environment references, and decodes the
// YAML into target. If target implements Validator, validation runs
// after decoding and its error is returned wrapped.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal([]byte(expand(string(data))), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// expand resolves $VAR and ${VAR} references. The braced form also
// accepts a `${VAR:-fallback}` default, taken when VAR is unset or
// empty; unset variables without a default expand to "".
func expand(s string) string {
	return os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}
