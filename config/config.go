// Package config loads the server configuration from an optional TOML file
// and the environment.
//
// Precedence, lowest first: built-in defaults, the TOML file, environment
// variables. The result is validated before use.
//
//	host = "127.0.0.1"
//	port = 3260
//	data_dir = "/var/lib/records"
//	store_backend = "sqlite"
//	collection = "ideas"
//	static_dir = "./client"
//	allowed_origins = ["https://example.org"]
//	shutdown_timeout = "5s"
//	verbose = true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every runtime setting of the server.
type Config struct {
	Host            string   `toml:"host" validate:"omitempty,hostname|ip"`
	Port            int      `toml:"port" validate:"min=1,max=65535"`
	DataDir         string   `toml:"data_dir" validate:"required_unless=StoreBackend memory"`
	StoreBackend    string   `toml:"store_backend" validate:"oneof=json sqlite bolt badger memory"`
	Collection      string   `toml:"collection" validate:"required,collection_name"`
	StaticDir       string   `toml:"static_dir"`
	AllowedOrigins  []string `toml:"allowed_origins" validate:"required,min=1,dive,required"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	Verbose         bool     `toml:"verbose"`
}

// Duration is a time.Duration written as a string ("10s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            3260,
		DataDir:         "./data",
		StoreBackend:    "json",
		Collection:      "counters",
		StaticDir:       "./client",
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: Duration{10 * time.Second},
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("failed to parse config file %s at line %d, column %d: %s", path, row, col, derr.Error())
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return fmt.Errorf("failed to parse config file %s: %s", path, serr.String())
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables. lookup is
// os.LookupEnv outside of tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := env("HOST"); ok {
		c.Host = v
	}
	if v, ok := env("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := env("DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := env("STORE_BACKEND"); ok {
		c.StoreBackend = v
	}
	if v, ok := env("COLLECTION"); ok {
		c.Collection = v
	}
	if v, ok := env("STATIC_DIR"); ok {
		c.StaticDir = v
	}
	if v, ok := env("ALLOWED_ORIGINS"); ok {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
	if v, ok := env("VERBOSE"); ok {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VERBOSE %q: %w", v, err)
		}
		c.Verbose = verbose
	}
	return nil
}
