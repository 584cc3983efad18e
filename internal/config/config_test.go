package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFileOrEnv(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendHeuristic, cfg.Simulation.Backend)
	assert.False(t, cfg.Offline)
	assert.Empty(t, cfg.RPCURLs)
}

func TestLoad_ParsesJSONFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"etherscanKeys": {"ethereum": "file-key"},
		"rpcUrls": {"ethereum": "https://file.example.com"},
		"simulation": {"enabled": true, "backend": "anvil", "anvilPath": "/usr/local/bin/anvil"},
		"allowlist": {"to": ["0xabc"], "spenders": ["0xdef"]}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.EtherscanKeys["ethereum"])
	assert.Equal(t, "https://file.example.com", cfg.RPCURLs["ethereum"])
	assert.True(t, cfg.Simulation.Enabled)
	assert.Equal(t, BackendAnvil, cfg.Simulation.Backend)
	assert.Equal(t, []string{"0xabc"}, cfg.Allowlist.To)
}

func TestLoad_AnvilBackendRequiresPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"simulation": {"enabled": true, "backend": "anvil"}}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rpcUrls": {"ethereum": "https://file.example.com"}}`), 0o644))

	t.Setenv("TXGUARD_RPC_URL_ETHEREUM", "https://env.example.com")
	t.Setenv("TXGUARD_OFFLINE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.RPCURLs["ethereum"])
	assert.True(t, cfg.Offline)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		k, _, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, "TXGUARD_") {
			os.Unsetenv(k)
		}
	}
}
