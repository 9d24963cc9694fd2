// Package core contains the main struct of the software.
package core

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/bluenviron/dashmtx/internal/conf"
	"github.com/bluenviron/dashmtx/internal/confwatcher"
	"github.com/bluenviron/dashmtx/internal/dash"
	"github.com/bluenviron/dashmtx/internal/logger"
	"github.com/bluenviron/dashmtx/internal/metrics"
)

var version = "v0.0.0"

var cli struct {
	Version  bool   `help:"print version"`
	Confpath string `arg:"" default:"dashmtx.yml"`
}

// Core is an instance of dashmtx.
type Core struct {
	confPath      string
	conf          *conf.Conf
	confFound     bool
	logger        *logger.Logger
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	confWatcher   *confwatcher.ConfWatcher

	mutex  sync.Mutex
	muxers map[string]*dash.Muxer

	// in
	terminate chan struct{}

	// out
	done chan struct{}
}

// New allocates a Core.
func New(args []string) (*Core, bool) {
	parser, err := kong.New(&cli,
		kong.Description("dashmtx "+version),
		kong.UsageOnError(),
		kong.ValueFormatter(func(value *kong.Value) string {
			if value.Name == "confpath" {
				return "path to a config file. The default is dashmtx.yml."
			}
			return kong.DefaultHelpValueFormatter(value)
		}))
	if err != nil {
		panic(err)
	}

	_, err = parser.Parse(args)
	parser.FatalIfErrorf(err)

	if cli.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	p := &Core{
		confPath:  cli.Confpath,
		muxers:    make(map[string]*dash.Muxer),
		terminate: make(chan struct{}),
		done:      make(chan struct{}),
	}

	p.conf, p.confFound, err = conf.Load(p.confPath)
	if err != nil {
		fmt.Printf("ERR: %s\n", err)
		return nil, false
	}

	err = p.createResources(true)
	if err != nil {
		if p.logger != nil {
			p.Log(logger.Error, "%s", err)
		} else {
			fmt.Printf("ERR: %s\n", err)
		}
		p.closeResources()
		return nil, false
	}

	go p.run()

	return p, true
}

// Close closes Core and waits for all goroutines to return.
func (p *Core) Close() {
	close(p.terminate)
	<-p.done
}

// Wait waits for the Core to exit.
func (p *Core) Wait() {
	<-p.done
}

// Log implements logger.Writer.
func (p *Core) Log(level logger.Level, format string, args ...interface{}) {
	p.logger.Log(level, format, args...)
}

// Muxer returns the muxer associated with a path name ("app/stream").
func (p *Core) Muxer(name string) *dash.Muxer {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.muxers[name]
}

func (p *Core) createResources(initial bool) error {
	var err error

	if p.logger == nil {
		p.logger, err = logger.New(
			logger.Level(p.conf.LogLevel),
			p.conf.LogDestinations,
			p.conf.LogFile,
		)
		if err != nil {
			return err
		}
	}

	if initial {
		p.Log(logger.Info, "dashmtx %s", version)

		if !p.confFound {
			p.Log(logger.Warn, "configuration file not found, using the default one")
		}
	}

	if p.conf.Metrics && p.metricsServer == nil {
		p.metrics = metrics.New()
		p.metricsServer = &metrics.Server{
			Address: p.conf.MetricsAddress,
			Metrics: p.metrics,
			Parent:  p,
		}
		err = p.metricsServer.Initialize()
		if err != nil {
			return err
		}
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	for name, pconf := range p.conf.Paths {
		if _, ok := p.muxers[name]; ok {
			continue
		}

		i := strings.Index(name, "/")
		mux := &dash.Muxer{
			App:              name[:i],
			Stream:           name[i+1:],
			Root:             p.conf.DashDir,
			MPDPath:          p.conf.MPDPath,
			FragmentDuration: pconf.FragmentDuration,
			UpdatePeriod:     pconf.UpdatePeriod,
			Timeshift:        pconf.Timeshift,
			WindowSize:       pconf.WindowSize,
			Parent:           p,
		}

		if p.metrics != nil {
			m := p.metrics
			mux.OnFragmentComplete = func(path string, _ time.Duration) {
				track := "audio"
				if strings.Contains(path, "video-") {
					track = "video"
				}
				m.FragmentFinalized(track)
			}
			mux.OnManifestRefresh = func(_ string) {
				m.ManifestRefreshed()
			}
			mux.OnSessionOpen = m.SessionOpened
			mux.OnSessionClose = m.SessionClosed
		}

		mux.Initialize()
		p.muxers[name] = mux
	}

	// paths removed from the configuration; in-flight sessions are
	// closed, since their files would no longer be reachable by name.
	for name, mux := range p.muxers {
		if _, ok := p.conf.Paths[name]; !ok {
			mux.OnUnpublish()
			delete(p.muxers, name)
		}
	}

	if p.confWatcher == nil && p.confFound {
		p.confWatcher, err = confwatcher.New(p.confPath)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Core) closeResources() {
	if p.confWatcher != nil {
		p.confWatcher.Close()
		p.confWatcher = nil
	}

	p.mutex.Lock()
	for name, mux := range p.muxers {
		mux.OnUnpublish()
		delete(p.muxers, name)
	}
	p.mutex.Unlock()

	if p.metricsServer != nil {
		p.metricsServer.Close()
		p.metricsServer = nil
	}

	if p.logger != nil {
		p.logger.Close()
		p.logger = nil
	}
}

// reloadConf applies a new configuration. Muxers snapshot their
// parameters at OnPublish, therefore in-flight sessions are unaffected.
func (p *Core) reloadConf() error {
	newConf, _, err := conf.Load(p.confPath)
	if err != nil {
		return err
	}
	p.conf = newConf

	return p.createResources(false)
}

func (p *Core) run() {
	defer close(p.done)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	var watch chan struct{}
	if p.confWatcher != nil {
		watch = p.confWatcher.Watch()
	}

outer:
	for {
		select {
		case <-watch:
			p.Log(logger.Info, "reloading configuration")
			err := p.reloadConf()
			if err != nil {
				p.Log(logger.Error, "unable to reload configuration: %s", err)
			}

		case <-interrupt:
			p.Log(logger.Info, "shutting down gracefully")
			break outer

		case <-p.terminate:
			break outer
		}
	}

	p.closeResources()
}
