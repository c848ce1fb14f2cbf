package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so it can be written into the config YAML
// either as a Go duration string ("1s", "250ms") or a bare number of
// seconds, since yaml.v2 has no built-in notion of time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var asSeconds float64
	if err := unmarshal(&asSeconds); err == nil {
		*d = Duration(asSeconds * float64(time.Second))
		return nil
	}

	var asString string
	if err := unmarshal(&asString); err != nil {
		return fmt.Errorf("duration: expected a duration string or number of seconds: %w", err)
	}
	parsed, err := time.ParseDuration(asString)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
