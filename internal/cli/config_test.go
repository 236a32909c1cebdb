package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
database: ./strata.db
types: ./types
tenant: acme
batch_size: 100
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./strata.db", cfg.Database)
	assert.Equal(t, "./types", cfg.Types)
	assert.Equal(t, "acme", cfg.Tenant)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoadConfigRejectsNegativeBatchSize(t *testing.T) {
	path := writeConfig(t, "database: x\ntypes: y\nbatch_size: -1\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/strata.yaml")
	require.Error(t, err)
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
database: ./file.db
types: ./file-types
tenant: file-tenant
`)

	cfg, err := ResolveConfig(path, "./flag.db", "", "flag-tenant", 10)
	require.NoError(t, err)
	assert.Equal(t, "./flag.db", cfg.Database)
	assert.Equal(t, "./file-types", cfg.Types)
	assert.Equal(t, "flag-tenant", cfg.Tenant)
	assert.Equal(t, 10, cfg.BatchSize)
}

func TestResolveConfigWithoutFile(t *testing.T) {
	cfg, err := ResolveConfig("", "./x.db", "./types", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "./x.db", cfg.Database)
	assert.Equal(t, "./types", cfg.Types)
}

func TestResolveConfigRequiresDatabase(t *testing.T) {
	_, err := ResolveConfig("", "", "./types", "", 0)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database configured")
}

func TestResolveConfigRequiresTypes(t *testing.T) {
	_, err := ResolveConfig("", "./x.db", "", "", 0)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no type definitions configured")
}
