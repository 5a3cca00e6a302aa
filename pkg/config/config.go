// Package config holds the per-connection configuration the facade needs
// to open a transport and start device engines: the Ethernet interface
// name, AVTP stream ID, DBC catalog path, and the lin_enabled / debug
// toggles (spec.md §6). Config is built with functional options, mirroring
// the teacher's constructor-with-parameters style
// (pkg/config.NewNodeConfigurator) generalized to optional fields, and can
// alternatively be loaded from an INI file with Load, reusing
// gopkg.in/ini.v1 the way the teacher's pkg/od parser reuses it for EDS
// files.
package config

import (
	"errors"
	"time"

	"gopkg.in/ini.v1"
)

// ErrMissingInterface is returned when neither WithInterface nor an ini
// "iface" key supplied the Ethernet interface name required to open a
// transport.
var ErrMissingInterface = errors.New("config: interface name is required")

// Config is the resolved set of options for one facade connection.
type Config struct {
	Interface    string
	StreamID     uint64
	DBCPath      string
	LinEnabled   bool
	Debug        bool
	DiscoverWait time.Duration
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithInterface sets the Ethernet interface the transport opens
// (e.g. "eth0", or a dotted VLAN sub-interface like "eth0.100").
func WithInterface(name string) Option {
	return func(c *Config) { c.Interface = name }
}

// WithStreamID sets the AVTP stream ID frames are tagged with and,
// on receive, filtered against.
func WithStreamID(streamID uint64) Option {
	return func(c *Config) { c.StreamID = streamID }
}

// WithDBCPath sets the path to the DBC catalog describing the signal
// layout for every PGN this module sends or decodes.
func WithDBCPath(path string) Option {
	return func(c *Config) { c.DBCPath = path }
}

// WithLinEnabled toggles whether connected IfMux engines expose the LIN
// sub-bus operations (spec.md §4.6); disabled connections reject those
// calls with ifmux.ErrLinDisabled.
func WithLinEnabled(enabled bool) Option {
	return func(c *Config) { c.LinEnabled = enabled }
}

// WithDebug enables verbose per-frame logging.
func WithDebug(debug bool) Option {
	return func(c *Config) { c.Debug = debug }
}

// WithDiscoverWait overrides discovery.DefaultWaitDuration for this
// connection's discovery pass.
func WithDiscoverWait(d time.Duration) Option {
	return func(c *Config) { c.DiscoverWait = d }
}

// New builds a Config from defaults plus the given options.
func New(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate reports whether c has everything a connection needs to open a
// transport.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return ErrMissingInterface
	}
	return nil
}

// Load reads Interface/StreamID/DBCPath/LinEnabled/Debug from the
// "[sdrig]" section of an INI file at path, following opts applied over
// the file's values (so code-level options win over the file, matching
// the precedence the teacher's EDS-then-overrides loading implies).
func Load(path string, opts ...Option) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	section := file.Section("sdrig")
	c := &Config{
		Interface:    section.Key("iface").String(),
		DBCPath:      section.Key("dbc_path").String(),
		LinEnabled:   section.Key("lin_enabled").MustBool(false),
		Debug:        section.Key("debug").MustBool(false),
		DiscoverWait: time.Duration(section.Key("discover_wait_ms").MustInt64(0)) * time.Millisecond,
	}
	c.StreamID = uint64(section.Key("stream_id").MustUint64(0))

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
