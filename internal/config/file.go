package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so it can be written as "500ms" or "2s"
// in the TOML file.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// File is the on-disk pgtemp configuration.
//
// Example:
//
//	verbosity = 1
//	retries = 10
//	retry-interval = "500ms"
//	image = "postgres:16"
//
//	[tools]
//	initdb = "/usr/lib/postgresql/16/bin/initdb"
//
//	[options]
//	fsync = "off"
type File struct {
	// Verbosity is a pointer so an explicit `verbosity = 0` (full
	// silence) is distinguishable from the key being absent.
	Verbosity     *int              `toml:"verbosity"`
	Retries       int               `toml:"retries"`
	RetryInterval Duration          `toml:"retry-interval"`
	Image         string            `toml:"image"`
	Tools         Tools             `toml:"tools"`
	Options       map[string]string `toml:"options"`
}

// Tools overrides the paths of the external PostgreSQL commands.
type Tools struct {
	InitDB     string `toml:"initdb"`
	Postgres   string `toml:"postgres"`
	Psql       string `toml:"psql"`
	CreateUser string `toml:"createuser"`
}

// Load reads the configuration file at path.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return &f, nil
}

// LoadDefault loads the configuration from PGTEMP_CONFIG or the standard
// location under the user config directory. A missing file is not an
// error; it yields the zero config.
func LoadDefault() (*File, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return &File{}, nil
		}
		path = filepath.Join(base, "pgtemp", "config.toml")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &File{}, nil
	}
	return Load(path)
}
