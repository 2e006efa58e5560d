package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Definitions string            `json:"definitions"`
	CacheTTL    int               `json:"cache_ttl_seconds"`
	Indexers    map[string]string `json:"indexers"`
}

func TestReadConfigMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{
		// comments are allowed
		definitions: "./definitions",
		cache_ttl_seconds: 60,
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "app.local.json5"), []byte(`{
		cache_ttl_seconds: 300,
	}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "./definitions", cfg.Definitions)
	require.Equal(t, 300, cfg.CacheTTL)
}

func TestReadConfigExpandsEnvironment(t *testing.T) {
	t.Setenv("TRACKSCRAPE_TEST_DIR", "/srv/defs")

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{definitions: "${TRACKSCRAPE_TEST_DIR}"}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "/srv/defs", cfg.Definitions)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.True(t, os.IsNotExist(err))
}
