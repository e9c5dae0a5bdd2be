// Package config loads engine settings from .restitch.toml at the workspace
// root. Every field has a working default; the file is optional.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up in the workspace root.
const FileName = ".restitch.toml"

// Matchers lists the matcher allow-list by kind. A list given in the file
// replaces the built-in family for that kind.
type Matchers struct {
	Inline   []string `toml:"inline"`
	Artifact []string `toml:"artifact"`
}

// Literals configures which argument shapes the extractor treats as safely
// rewritable beyond the scalar forms.
type Literals struct {
	AllowCompound bool `toml:"allow_compound"`
}

// Config is the engine configuration.
type Config struct {
	StorePath string   `toml:"store_path"`
	BackupDir string   `toml:"backup_dir"`
	Matchers  Matchers `toml:"matchers"`
	Literals  Literals `toml:"literals"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		StorePath: filepath.Join(".restitch", "requests.json"),
		BackupDir: filepath.Join(".restitch", "backups"),
		Matchers: Matchers{
			Inline:   []string{"toBe", "toEqual"},
			Artifact: []string{"toMatchSnapshot", "toHaveScreenshot"},
		},
		Literals: Literals{AllowCompound: true},
	}
}

// Load reads <dir>/.restitch.toml, overlaying it on the defaults. A missing
// file returns the defaults without error.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.StorePath == "" {
		cfg.StorePath = Default().StorePath
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = Default().BackupDir
	}
	return cfg, nil
}
