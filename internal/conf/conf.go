// Package conf contains the struct that holds the configuration of the software.
package conf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/bluenviron/dashmtx/internal/logger"
)

// Path is the configuration of a published path ("app/stream").
// Zero values inherit the corresponding global parameter.
type Path struct {
	FragmentDuration Duration `yaml:"fragmentDuration"`
	UpdatePeriod     Duration `yaml:"updatePeriod"`
	Timeshift        Duration `yaml:"timeshift"`
	WindowSize       int      `yaml:"windowSize"`
}

func (pconf *Path) fillGaps(conf *Conf) {
	if pconf.FragmentDuration == 0 {
		pconf.FragmentDuration = conf.FragmentDuration
	}
	if pconf.UpdatePeriod == 0 {
		pconf.UpdatePeriod = conf.UpdatePeriod
	}
	if pconf.Timeshift == 0 {
		pconf.Timeshift = conf.Timeshift
	}
	if pconf.WindowSize == 0 {
		pconf.WindowSize = conf.WindowSize
	}
}

// Conf is a configuration.
type Conf struct {
	// general
	LogLevel        LogLevel        `yaml:"logLevel"`
	LogDestinations LogDestinations `yaml:"logDestinations"`
	LogFile         string          `yaml:"logFile"`

	// metrics
	Metrics        bool   `yaml:"metrics"`
	MetricsAddress string `yaml:"metricsAddress"`

	// DASH
	DashDir          string   `yaml:"dashDir"`
	MPDPath          string   `yaml:"mpdPath"`
	FragmentDuration Duration `yaml:"fragmentDuration"`
	UpdatePeriod     Duration `yaml:"updatePeriod"`
	Timeshift        Duration `yaml:"timeshift"`
	WindowSize       int      `yaml:"windowSize"`

	// paths
	Paths map[string]*Path `yaml:"paths"`
}

func (conf *Conf) setDefaults() {
	conf.LogLevel = LogLevel(logger.Info)
	conf.LogDestinations = LogDestinations{logger.DestinationStdout}
	conf.LogFile = "dashmtx.log"

	conf.MetricsAddress = "127.0.0.1:9998"

	conf.DashDir = "./dash"
	conf.MPDPath = "%app/%stream.mpd"
	conf.FragmentDuration = Duration(5 * time.Second)
	conf.UpdatePeriod = Duration(10 * time.Second)
	conf.Timeshift = Duration(60 * time.Second)
	conf.WindowSize = 5
}

// Load loads a Conf.
func Load(fpath string) (*Conf, bool, error) {
	conf := &Conf{}

	found, err := conf.loadFromFile(fpath)
	if err != nil {
		return nil, false, err
	}

	err = loadFromEnvironment("DASHMTX", conf)
	if err != nil {
		return nil, false, err
	}

	err = conf.Check()
	if err != nil {
		return nil, false, err
	}

	return conf, found, nil
}

func (conf *Conf) loadFromFile(fpath string) (bool, error) {
	conf.setDefaults()

	byts, err := os.ReadFile(fpath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	err = yaml.UnmarshalStrict(byts, conf)
	if err != nil {
		return true, err
	}

	return true, nil
}

// Check checks the configuration for errors.
func (conf *Conf) Check() error {
	if conf.FragmentDuration <= 0 {
		return fmt.Errorf("'fragmentDuration' must be greater than zero")
	}
	if conf.UpdatePeriod <= 0 {
		return fmt.Errorf("'updatePeriod' must be greater than zero")
	}
	if conf.WindowSize <= 0 {
		return fmt.Errorf("'windowSize' must be greater than zero")
	}
	if !strings.Contains(conf.MPDPath, "%stream") {
		return fmt.Errorf("'mpdPath' must contain %%stream")
	}

	for name, pconf := range conf.Paths {
		if pconf == nil {
			pconf = &Path{}
			conf.Paths[name] = pconf
		}

		if name == "" || strings.Count(name, "/") != 1 {
			return fmt.Errorf("invalid path name: '%s' (must be in the form app/stream)", name)
		}

		pconf.fillGaps(conf)

		if pconf.WindowSize <= 0 {
			return fmt.Errorf("path '%s': 'windowSize' must be greater than zero", name)
		}
	}

	return nil
}
