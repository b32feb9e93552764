// Package config loads the ropstat YAML configuration.
//
// Values are resolved in order: built-in defaults, the YAML file (with
// ${VAR} references expanded from the environment), ROPSTAT_* environment
// variables, then command-line flags applied by the caller.
//
//	paths:
//	  binaries: binaries
//	  gadgets: ${HOME}/rop/gadgets
//	  data: data
//	ropgadget:
//	  binary: ROPgadget
//	  args: ["--depth", "12"]
//	  timeout: 30m
//	  retries: 2
//	  retry_delay: 5s
//	workers: 4
//	launch_rate: 2
//	match_mode: substring
//	listings:
//	  compression: zstd
//	history:
//	  database: data/history.db
//	metrics:
//	  textfile: /var/lib/node_exporter/ropstat.prom
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exploopio/ropstat/pkg/compress"
	"github.com/exploopio/ropstat/pkg/core"
	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/gadget"
)

// Environment variables consulted by Load.
const (
	EnvConfig    = "ROPSTAT_CONFIG"
	EnvGadgetDir = "ROPSTAT_GADGET_DIR"
	EnvROPgadget = "ROPSTAT_ROPGADGET"
)

// Config is the full ropstat configuration.
type Config struct {
	Paths     PathsConfig      `yaml:"paths"`
	ROPgadget ToolConfig       `yaml:"ropgadget"`
	Listings  ListingsConfig   `yaml:"listings"`
	History   HistoryConfig    `yaml:"history"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Workers   int              `yaml:"workers"`
	MatchMode gadget.MatchMode `yaml:"match_mode"`
	Verbose   bool             `yaml:"verbose"`

	// LaunchRate caps gadget finder launches per second (0 = unlimited).
	LaunchRate float64 `yaml:"launch_rate"`
}

// PathsConfig locates the binary, gadget and report trees.
type PathsConfig struct {
	Binaries string `yaml:"binaries"`
	Gadgets  string `yaml:"gadgets"`
	Data     string `yaml:"data"`
}

// ToolConfig configures the external gadget finder.
type ToolConfig struct {
	Binary  string        `yaml:"binary"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`

	// Retries repeats a failed run this many times, RetryDelay apart with
	// exponential backoff.
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// ListingsConfig controls how generated listings are stored.
type ListingsConfig struct {
	// Compression is none, zstd, gzip or xz.
	Compression string `yaml:"compression"`

	// GadgetsOnly drops the banner and trailer lines ROPgadget prints
	// around the gadget list.
	GadgetsOnly bool `yaml:"gadgets_only"`
}

// HistoryConfig enables the run history database.
type HistoryConfig struct {
	Database string `yaml:"database"`
}

// MetricsConfig enables the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given. The layout
// matches the binaries/, gadgets/ and data/ directories of a checkout.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Binaries: "binaries",
			Gadgets:  "gadgets",
			Data:     "data",
		},
		ROPgadget: ToolConfig{
			Binary:  "ROPgadget",
			Timeout: 30 * time.Minute,
		},
		Listings: ListingsConfig{
			Compression: string(compress.AlgorithmNone),
		},
		Workers:   runtime.NumCPU(),
		MatchMode: gadget.MatchSubstring,
	}
}

// Load reads the configuration from path, or from $ROPSTAT_CONFIG when path
// is empty. With neither set, defaults plus environment overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	const op = "config.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.InputNotFound(op, path, err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return errors.E(errors.KindInvalidInput, op, errors.At(path, 0), "parse config", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvGadgetDir); v != "" {
		c.Paths.Gadgets = v
	}
	if v := os.Getenv(EnvROPgadget); v != "" {
		c.ROPgadget.Binary = v
	}
}

// Validate checks the configuration for values no command can work with.
// Every problem is reported, not just the first.
func (c *Config) Validate() error {
	v := core.NewValidator()
	v.Required("paths.binaries", c.Paths.Binaries).
		Required("paths.gadgets", c.Paths.Gadgets).
		Required("paths.data", c.Paths.Data).
		Required("ropgadget.binary", c.ROPgadget.Binary).
		MinDuration("ropgadget.timeout", c.ROPgadget.Timeout, 0).
		Min("ropgadget.retries", c.ROPgadget.Retries, 0).
		MinDuration("ropgadget.retry_delay", c.ROPgadget.RetryDelay, 0).
		Min("workers", c.Workers, 0).
		MinFloat("launch_rate", c.LaunchRate, 0)

	_, err := gadget.ParseMatchMode(string(c.MatchMode))
	v.Check("match_mode", err)
	_, err = compress.ParseAlgorithm(c.Listings.Compression)
	v.Check("listings.compression", err)

	if err := v.Validate(); err != nil {
		return errors.E(errors.KindInvalidInput, "config.Validate", err.Error(), errors.ErrInvalidConfig)
	}
	return nil
}

// Compression returns the parsed listing compression algorithm.
func (c *Config) Compression() compress.Algorithm {
	a, err := compress.ParseAlgorithm(c.Listings.Compression)
	if err != nil {
		return compress.AlgorithmNone
	}
	return a
}

// BinaryDir returns the directory holding binaries of the given set.
func (c *Config) BinaryDir(set BinType) string {
	return filepath.Join(c.Paths.Binaries, string(set))
}

// GadgetDir returns the gadget directory for a set and optional obfuscation
// type. Obfuscation types only exist for the obfuscated set.
func (c *Config) GadgetDir(set BinType, obfusc ObfuscType) (string, error) {
	dir := filepath.Join(c.Paths.Gadgets, string(set))
	if obfusc == "" {
		return dir, nil
	}
	if set != BinTypeObfuscated {
		return "", errors.E(errors.KindInvalidInput, "config.GadgetDir",
			"unobfuscated binaries cannot be used with an obfuscation type")
	}
	return filepath.Join(dir, string(obfusc)), nil
}
