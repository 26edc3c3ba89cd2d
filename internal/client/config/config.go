// Package config loads settings for the gophauth CLI: built-in defaults,
// then an optional YAML file (--config), then explicitly set flags.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds runtime settings for the CLI.
//
// Fields:
//   - Server: host:port of the gophauth gRPC endpoint.
//   - Session: path of the stored session file; empty means the user config dir.
//   - Timeout: deadline for a single command.
type Config struct {
	Server  string        `koanf:"server"`
	Session string        `koanf:"session"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Server = "localhost:50051"
	c.Session = ""
	c.Timeout = 15 * time.Second
}

// RegisterFlags adds the CLI flags to fs, using def for the default values.
func RegisterFlags(fs *pflag.FlagSet, def *Config) {
	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.StringP("server", "a", def.Server, "gRPC server address")
	fs.String("session", def.Session, "session file (default: <user config dir>/gophauth/session.json)")
	fs.Duration("timeout", def.Timeout, "per-command timeout")
}

// Load resolves the configuration from fs after it has been parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}
