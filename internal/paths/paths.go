// Package paths resolves the configuration and data directories and the
// files folio keeps in them.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user directories.
const appName = "folio"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "FOLIO_CONFIG_DIR"
	EnvDataDir   = "FOLIO_DATA_DIR"
)

// File names inside the configuration and data directories.
const (
	ConfigFileName   = "config.yaml"
	DatabaseFileName = "folio.db"
	SecretsFileName  = "secrets.json"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/folio (fallback ~/.config/folio)
// macOS:   ~/Library/Application Support/folio
// Windows: %APPDATA%/folio
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/folio (fallback ~/.local/share/folio)
// macOS and Windows: same as the configuration directory.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, homeRel string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appName), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > FOLIO_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > FOLIO_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// ConfigFile returns the path of config.yaml in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// DatabaseURL returns the default SQLite database URL in dataDir.
func DatabaseURL(dataDir string) string {
	return "sqlite://" + filepath.Join(dataDir, DatabaseFileName)
}

// SecretsFile returns the default local secrets file in dataDir.
func SecretsFile(dataDir string) string {
	return filepath.Join(dataDir, SecretsFileName)
}
