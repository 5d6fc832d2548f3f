package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/interpreters"
	"github.com/Comcast/surface/sio"

	jyaml "github.com/jsccast/yaml"
	"gopkg.in/yaml.v2"
)

// Config is everything main needs.  Each field has a flag, and a
// YAML file (-config) can provide any of them.  Flags given on the
// command line win.
type Config struct {
	// IO is the couplings: "std" or "mq".
	IO string `yaml:"io"`

	// Surface is the id of the surface in the DB.
	Surface string `yaml:"surface"`

	// DB is the optional BoltDB filename.
	DB string `yaml:"db"`

	// Controls is an optional YAML or JSON file of controls to
	// add at startup.
	Controls string `yaml:"controls"`

	// Definitions is an optional YAML or JSON file of connection
	// definitions.
	Definitions string `yaml:"definitions"`

	// HTTP is the HTTP service port.  Empty means no HTTP
	// service.
	HTTP string `yaml:"http"`

	// WebSockets enables the WebSockets API (which requires the
	// HTTP service).
	WebSockets bool `yaml:"websockets"`

	// MaxTimers bounds the number of pending timers.
	MaxTimers int `yaml:"maxTimers"`

	// Wait is how long to wait after input EOF before shutting
	// down.
	Wait time.Duration `yaml:"wait"`

	Verbose bool `yaml:"verbose"`

	Engine sio.Conf `yaml:"engine"`
}

func DefaultConfig() *Config {
	return &Config{
		IO:        "std",
		Surface:   "controls",
		MaxTimers: 1024,
		Wait:      time.Second,
		Engine: sio.Conf{
			Window:   sio.DefaultWindow,
			Parallel: sio.DefaultParallel,
		},
	}
}

// Flags binds the Config's fields to flags in the given FlagSet.
func (c *Config) Flags(fs *flag.FlagSet) {
	fs.StringVar(&c.IO, "io", c.IO, `IO protocol: "std" or "mq"`)
	fs.StringVar(&c.Surface, "surface", c.Surface, "Surface id")
	fs.StringVar(&c.DB, "db", c.DB, "Optional BoltDB filename for persistence")
	fs.StringVar(&c.Controls, "controls", c.Controls, "Optional controls (YAML or JSON) filename")
	fs.StringVar(&c.Definitions, "definitions", c.Definitions, "Optional connection definitions (YAML or JSON) filename")
	fs.StringVar(&c.HTTP, "http", c.HTTP, "Optional HTTP service port (e.g. ':8080')")
	fs.BoolVar(&c.WebSockets, "w", c.WebSockets, "start Web sockets service (requires HTTP service)")
	fs.IntVar(&c.MaxTimers, "max-timers", c.MaxTimers, "Maximum number of pending timers")
	fs.DurationVar(&c.Wait, "wait", c.Wait, "Wait this long before shutting down after input EOF")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "Verbose")
	fs.DurationVar(&c.Engine.Window, "window", c.Engine.Window, "Batching window for variable changes")
	fs.IntVar(&c.Engine.Parallel, "parallel", c.Engine.Parallel, "Maximum concurrent evaluations")
	fs.BoolVar(&c.Engine.HaltOnInputEOF, "halt-on-eof", c.Engine.HaltOnInputEOF, "Stop on input EOF")
}

// ReadConfig reads the YAML file into the Config.  Fields that the
// file doesn't mention are unchanged.
func (c *Config) ReadConfig(filename string) error {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bs, c)
}

// Load reads the YAML file (if any) and then reapplies the flags
// that were given explicitly.
func (c *Config) Load(fs *flag.FlagSet, filename string) error {
	if filename == "" {
		return nil
	}
	given := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		given[f.Name] = f.Value.String()
	})
	if err := c.ReadConfig(filename); err != nil {
		return err
	}
	for name, val := range given {
		if err := fs.Set(name, val); err != nil {
			return err
		}
	}
	return nil
}

// ReadDefinitions reads connection Definitions (YAML or JSON) and
// compiles their callbacks.
func ReadDefinitions(ctx context.Context, filename string) (*core.MapRegistry, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	// The YAML decoder gives maps with string keys, which we can
	// then render as JSON.
	var x interface{}
	if err = jyaml.Unmarshal(bs, &x); err != nil {
		return nil, err
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var ds []*core.Definition
	if err = json.Unmarshal(js, &ds); err != nil {
		return nil, err
	}
	reg := core.NewMapRegistry()
	reg.Add(ds...)
	if err = reg.Compile(ctx, interpreters.Standard(), false); err != nil {
		return nil, err
	}
	return reg, nil
}
