//go:build windows

package config

import (
	"os"
	"path/filepath"
)

var DefaultConfigPath = filepath.Join(os.Getenv("ProgramData"), "autovt", "config.yml")

func GetConfigFile() (config string, err error) {
	cfg := filepath.Join(os.Getenv("APPDATA"), "autovt", "config.yml")
	if _, err := os.Stat(cfg); err == nil {
		return cfg, nil
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath, nil
	}
	return "", nil
}

func DefaultHistoryPath() string {
	return filepath.Join(os.Getenv("APPDATA"), "autovt", "history.db")
}
