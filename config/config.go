// Package config handles procmachine.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/chazu/procmachine/harness"
	"github.com/chazu/procmachine/machine"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "procmachine.toml"

// Config represents a procmachine.toml file.
type Config struct {
	Interpreter Interpreter `toml:"interpreter"`
	Harness     Harness     `toml:"harness"`
	Store       Store       `toml:"store"`
	Log         Log         `toml:"log"`

	// Dir is the directory containing the procmachine.toml file (set at load time).
	Dir string `toml:"-"`
}

// Interpreter configures program states.
type Interpreter struct {
	ParamPolicy string `toml:"param-policy"`
	Alphabet    string `toml:"alphabet"`
}

// Harness configures grading.
type Harness struct {
	Cases       int      `toml:"cases"`
	ServerCases int      `toml:"server-cases"`
	Timeout     Duration `toml:"timeout"`
	Workers     int      `toml:"workers"`
	Puzzles     string   `toml:"puzzles"`
}

// Store configures persistence. An empty Path means in-memory.
type Store struct {
	Path string `toml:"path"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Duration is a time.Duration written as a string such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Interpreter.ParamPolicy == "" {
		c.Interpreter.ParamPolicy = machine.Strict.String()
	}
	if c.Harness.Cases <= 0 {
		c.Harness.Cases = harness.ClientCases
	}
	if c.Harness.ServerCases <= 0 {
		c.Harness.ServerCases = harness.ServerCases
	}
	if c.Harness.Timeout.Duration <= 0 {
		c.Harness.Timeout.Duration = 10 * time.Second
	}
	if c.Harness.Workers <= 0 {
		c.Harness.Workers = 2
	}
}

// Load parses procmachine.toml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults()
	if _, err := c.Policy(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := c.AlphabetTable(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a procmachine.toml file.
// Returns Default() if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Policy returns the configured parameter policy.
func (c *Config) Policy() (machine.ParamPolicy, error) {
	return machine.ParseParamPolicy(c.Interpreter.ParamPolicy)
}

// AlphabetTable returns the configured alphabet, or the default table.
func (c *Config) AlphabetTable() (*machine.Alphabet, error) {
	if c.Interpreter.Alphabet == "" {
		return machine.DefaultAlphabet, nil
	}
	return machine.NewAlphabet(c.Interpreter.Alphabet)
}

// resolve makes p absolute against the config directory.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// StorePath returns the absolute database path, or "" for in-memory.
func (c *Config) StorePath() string { return c.resolve(c.Store.Path) }

// PuzzleDir returns the absolute case-file directory, or "".
func (c *Config) PuzzleDir() string { return c.resolve(c.Harness.Puzzles) }

// LogFile returns the absolute log file path, or "" for stderr.
func (c *Config) LogFile() string { return c.resolve(c.Log.File) }
