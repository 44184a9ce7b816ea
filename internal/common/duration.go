package common

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// Duration is a time.Duration that is (un)marshaled as a human readable string ("5s", "1m30s").
type Duration struct {
	time.Duration
}

// NewDuration wraps a time.Duration.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(data []byte) error {
	parsed, err := time.ParseDuration(string(data))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(data), err)
	}

	d.Duration = parsed
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// JSONSchema describes Duration as a string in generated config schemas.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       "Duration",
		Description: "Duration expressed in units: [ns, us, ms, s, m, h] d",
		Examples: []any{
			"1m",
			"300ms",
		},
	}
}
