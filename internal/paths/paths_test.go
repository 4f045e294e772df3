package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDirs_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only test")
	}

	t.Run("uses XDG variables when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/folio", got)
		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-data/folio", got)
	})

	t.Run("falls back to the home directory when XDG unset", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")
		home, err := os.UserHomeDir()
		require.NoError(t, err)

		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config", "folio"), got)
		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".local", "share", "folio"), got)
	})

	t.Run("home lookup failure surfaces", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		orig := platformDir.homeDir
		platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }
		t.Cleanup(func() { platformDir.homeDir = orig })

		_, err := DefaultConfigDir()
		assert.Error(t, err)
	})
}

func TestDefaultConfigDir_Darwin(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("darwin-only test")
	}

	got, err := DefaultConfigDir()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Library", "Application Support", "folio"), got)
}

func TestResolveConfigDir(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		envVal  string
		wantSub string // substring the result must contain
	}{
		{name: "flag wins over env", flag: "/explicit/config", envVal: "/env/config", wantSub: "/explicit/config"},
		{name: "env wins when flag empty", envVal: "/env/config", wantSub: "/env/config"},
		{name: "platform default when both empty", wantSub: "folio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.envVal)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Contains(t, got, tt.wantSub)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	tests := []struct {
		name          string
		flag          string
		configYAMLVal string
		envVal        string
		want          string
	}{
		{name: "flag wins over all", flag: "/flag/data", configYAMLVal: "/config/data", envVal: "/env/data", want: "/flag/data"},
		{name: "config.yaml wins over env", configYAMLVal: "/config/data", envVal: "/env/data", want: "/config/data"},
		{name: "env wins when flag and config empty", envVal: "/env/data", want: "/env/data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.envVal)
			got, err := ResolveDataDir(tt.flag, tt.configYAMLVal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("platform default when all empty", func(t *testing.T) {
		t.Setenv(EnvDataDir, "")
		got, err := ResolveDataDir("", "")
		require.NoError(t, err)
		want, err := DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestResolve_AbsolutePath(t *testing.T) {
	t.Setenv(EnvConfigDir, "relative/env")
	t.Setenv(EnvDataDir, "")

	got, err := ResolveConfigDir("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)

	got, err = ResolveDataDir("", "relative/config")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)
}

func TestFiles(t *testing.T) {
	assert.Equal(t, filepath.Join("/cfg", "config.yaml"), ConfigFile("/cfg"))
	assert.Equal(t, "sqlite://"+filepath.Join("/data", "folio.db"), DatabaseURL("/data"))
	assert.Equal(t, filepath.Join("/data", "secrets.json"), SecretsFile("/data"))
}
