package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"CBM_CONFIG", "CBM_DB_PATH", "CBM_LOG_LEVEL", "CBM_TIMEZONE", "CBM_ADDR", "CBM_PAGE_SIZE"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cbm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	opts := cfg.NormalizerOptions()
	assert.True(t, opts.AllNumeric)
	assert.False(t, opts.RespectToggles)
	assert.True(t, opts.ProcessVibration)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database: /var/lib/cbm/state.db
timezone: Europe/Oslo
auto_save: false
processing:
  all_numeric: false
  rpm: false
query:
  staleness_days: 45
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/cbm/state.db", cfg.Database)
	assert.False(t, cfg.AutoSave)
	assert.False(t, cfg.Processing.AllNumeric)
	assert.False(t, cfg.Processing.RPM)
	assert.True(t, cfg.Processing.Vibration, "unset keys keep their defaults")
	assert.Equal(t, 45, cfg.Query.StalenessDays)
	assert.Equal(t, 20, cfg.Query.PageSize)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Oslo", loc.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CBM_CONFIG", writeConfig(t, "database: from-file.db\n"))
	t.Setenv("CBM_DB_PATH", "from-env.db")
	t.Setenv("CBM_PAGE_SIZE", "50")
	t.Setenv("CBM_ADDR", ":9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database)
	assert.Equal(t, 50, cfg.Query.PageSize)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	t.Setenv("CBM_PAGE_SIZE", "lots")
	_, err = Load("")
	assert.EqualError(t, err, `config: invalid CBM_PAGE_SIZE "lots"`)

	t.Setenv("CBM_PAGE_SIZE", "-3")
	_, err = Load("")
	assert.ErrorContains(t, err, "page_size")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "timezone: Mars/Olympus\n"))
	assert.ErrorContains(t, err, "invalid timezone")

	_, err = Load(writeConfig(t, "query:\n  page_size: 0\n"))
	assert.ErrorContains(t, err, "page_size")

	_, err = Load(writeConfig(t, "query:\n  staleness_days: -1\n"))
	assert.ErrorContains(t, err, "staleness_days")

	_, err = Load(writeConfig(t, "query: [\n"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}
