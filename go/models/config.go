package models

import (
	"io"

	"github.com/go-kit/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxDepth      = 4
	DefaultMaxNameLength = 4096
	DefaultConcurrency   = 4
)

type Config struct {
	// MaxDepth bounds how many compressed containers are unwrapped for one blob.
	MaxDepth int `yaml:"max_depth"`
	// MaxNameLength caps NUL-terminated names read from untrusted headers.
	MaxNameLength int `yaml:"max_name_length"`
	// Concurrency limits parallel member resolution in archive.ResolveAll.
	Concurrency int  `yaml:"concurrency"`
	Verbose     bool `yaml:"verbose"`

	Logger log.Logger `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxDepth:      DefaultMaxDepth,
		MaxNameLength: DefaultMaxNameLength,
		Concurrency:   DefaultConcurrency,
		Logger:        log.NewNopLogger(),
	}
}

// LoadConfig overlays YAML from r onto the defaults.
func LoadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(c); err != nil && err != io.EOF {
		return nil, err
	}
	c.fill()
	return c, nil
}

func (c *Config) fill() {
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	if c.MaxNameLength <= 0 {
		c.MaxNameLength = DefaultMaxNameLength
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
}

// Normalized returns c with unset fields defaulted. A nil c yields DefaultConfig.
func (c *Config) Normalized() *Config {
	if c == nil {
		return DefaultConfig()
	}
	n := *c
	n.fill()
	return &n
}
