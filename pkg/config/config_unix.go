//go:build !windows

package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

var DefaultConfigPath = "/etc/autovt/config.yml"

// GetConfigFile returns the user configuration file when there is one, else the
// system one. It returns an empty path when neither exists.
func GetConfigFile() (config string, err error) {
	home, err := homedir.Dir()
	if err != nil {
		return
	}
	cfg := filepath.Join(home, ".config", "autovt", "config.yml")
	if _, err := os.Stat(cfg); err == nil {
		return cfg, nil
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath, nil
	}
	return "", nil
}

// DefaultHistoryPath is the scan history kept between runs.
func DefaultHistoryPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "autovt", "history.db")
}
