package conf

import (
	"fmt"
	"strings"

	"github.com/bluenviron/dashmtx/internal/logger"
)

// LogDestinations is the logDestinations parameter.
type LogDestinations []logger.Destination

// MarshalYAML implements yaml.Marshaler.
func (d LogDestinations) MarshalYAML() (interface{}, error) {
	out := make([]string, len(d))

	for i, v := range d {
		switch v {
		case logger.DestinationStdout:
			out[i] = "stdout"

		case logger.DestinationFile:
			out[i] = "file"

		default:
			return nil, fmt.Errorf("invalid log destination: %v", v)
		}
	}

	return out, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *LogDestinations) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var in []string
	if err := unmarshal(&in); err != nil {
		return err
	}

	*d = nil

	for _, v := range in {
		switch v {
		case "stdout":
			*d = append(*d, logger.DestinationStdout)

		case "file":
			*d = append(*d, logger.DestinationFile)

		default:
			return fmt.Errorf("invalid log destination: '%s'", v)
		}
	}

	return nil
}

// unmarshalEnv implements envUnmarshaler.
func (d *LogDestinations) unmarshalEnv(s string) error {
	return d.UnmarshalYAML(func(v interface{}) error {
		*(v.(*[]string)) = strings.Split(s, ",")
		return nil
	})
}
