package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GRIDCMD_API_KEY", "GRIDCMD_API_URL", "GRIDCMD_SHEET"} {
		t.Setenv(k, "")
	}
}

func TestLoad_ConfigFileIsDirectory(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("GRIDCMD_CONFIG_DIR", tmp)

	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.Mkdir(cfgPath, 0o755); err != nil {
		t.Fatalf("setup config dir: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatalf("expected read error when config file is a directory")
	} else if os.IsNotExist(err) {
		t.Fatalf("expected non-ENOENT error, got %v", err)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRIDCMD_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	t.Setenv("GRIDCMD_CONFIG_DIR", tmp)

	cfg := Default()
	cfg.Server.Token = "s3cret"
	cfg.Dataset.Seed = 42
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
	assert.Equal(t, "config.yaml", entries[0].Name())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	t.Setenv("GRIDCMD_CONFIG_DIR", tmp)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte("server:\n  addr: \":9090\"\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Empty(t, cfg.Workbook.Sheet, "empty sheet selects the active sheet")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("GRIDCMD_CONFIG_DIR", tmp)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte("server: [\n"), 0o600))

	_, err := Load()
	assert.Error(t, err)
}

func TestDir_XDG(t *testing.T) {
	t.Setenv("GRIDCMD_CONFIG_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "gridcmd", "config.yaml"), p)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRIDCMD_API_KEY", "key")
	t.Setenv("GRIDCMD_API_URL", "http://grid:9000")
	t.Setenv("GRIDCMD_SHEET", "Tasks")

	cfg := Default()
	cfg.applyEnvOverrides()

	assert.Equal(t, "key", cfg.Remote.APIKey)
	assert.Equal(t, "http://grid:9000", cfg.Remote.URL)
	assert.Equal(t, "Tasks", cfg.Workbook.Sheet)
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	t.Setenv("GRIDCMD_CONFIG_DIR", t.TempDir())
	t.Setenv("GRIDCMD_API_KEY", "from-env")

	cfg, err := LoadFile()
	require.NoError(t, err)
	assert.Empty(t, cfg.Remote.APIKey)

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Remote.APIKey)
}

func TestSet(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(Config) bool
		wantErr    bool
	}{
		{key: "server.addr", value: ":1", check: func(c Config) bool { return c.Server.Addr == ":1" }},
		{key: "Workbook.Sheet", value: "Data", check: func(c Config) bool { return c.Workbook.Sheet == "Data" }},
		{key: "dataset.seed", value: "7", check: func(c Config) bool { return c.Dataset.Seed == 7 }},
		{key: "dataset.seed", value: "seven", wantErr: true},
		{key: "log.level", value: "trace", wantErr: true},
		{key: "log.colour", value: "red", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := Default()
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.check(cfg))
		})
	}

	cfg := Default()
	assert.True(t, errors.Is(cfg.Set("nope", "x"), ErrUnknownKey))
	for _, k := range Keys() {
		assert.NotErrorIs(t, cfg.Set(k, "1"), ErrUnknownKey, k)
	}
}
