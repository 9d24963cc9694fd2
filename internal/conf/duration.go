package conf

import (
	"fmt"
	"time"
)

// Duration is a duration. It is unmarshaled from a string
// (like "5s" or "1m30s") instead of a number.
type Duration time.Duration

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var in string
	if err := unmarshal(&in); err != nil {
		return err
	}

	du, err := time.ParseDuration(in)
	if err != nil {
		return fmt.Errorf("invalid duration: '%s'", in)
	}

	*d = Duration(du)
	return nil
}

// unmarshalEnv implements envUnmarshaler.
func (d *Duration) unmarshalEnv(s string) error {
	du, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: '%s'", s)
	}

	*d = Duration(du)
	return nil
}
