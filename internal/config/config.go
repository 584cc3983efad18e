// Package config loads and merges the scanner's configuration: a JSON file
// on disk, overridden field-by-field by environment variables, the way the
// gateway this core was adapted from layers env over defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// SimulationBackend selects how balance/approval deltas are produced.
type SimulationBackend string

const (
	BackendAnvil     SimulationBackend = "anvil"
	BackendHeuristic SimulationBackend = "heuristic"
)

// SimulationConfig configures the simulation collaborator.
type SimulationConfig struct {
	Enabled   bool              `json:"enabled"`
	Backend   SimulationBackend `json:"backend"`
	AnvilPath string            `json:"anvilPath"`
	ForkBlock int64             `json:"forkBlock"`
	RPCURL    string            `json:"rpcUrl"`
}

// AllowlistConfig restricts what a wallet-mode scan is willing to approve
// without surfacing a warning.
type AllowlistConfig struct {
	To       []string `json:"to"`
	Spenders []string `json:"spenders"`
}

// Config holds all scanner configuration.
type Config struct {
	// EtherscanKeys maps a chain name to its block-explorer API key.
	EtherscanKeys map[string]string `json:"etherscanKeys"`

	// RPCURLs maps a chain name to its JSON-RPC endpoint.
	RPCURLs map[string]string `json:"rpcUrls"`

	Simulation SimulationConfig `json:"simulation"`
	Allowlist  AllowlistConfig  `json:"allowlist"`

	// Offline, when true, arms the outbound HTTP allowlist guard.
	Offline bool `json:"-"`

	// AllowLocalhost additionally permits loopback URLs under the guard.
	AllowLocalhost bool `json:"-"`

	// ProxyUpstream is the default upstream RPC URL for the intercepting
	// proxy, read from <TOOL>_UPSTREAM.
	ProxyUpstream string `json:"-"`
}

const envPrefix = "TXGUARD"

// Load reads the JSON config file at path (if non-empty and present),
// then overlays environment variables on top — env always wins. A .env
// file in the working directory is loaded first if present (dev
// convenience); production deployments rely on real env vars.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		EtherscanKeys: map[string]string{},
		RPCURLs:       map[string]string{},
		Simulation:    SimulationConfig{Backend: BackendHeuristic},
	}

	if path == "" {
		path = getEnv(envPrefix+"_CONFIG", "")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Simulation.Enabled && cfg.Simulation.Backend == BackendAnvil && cfg.Simulation.AnvilPath == "" {
		return nil, fmt.Errorf("config: simulation.anvilPath is required when backend is %q", BackendAnvil)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.ProxyUpstream = getEnv(envPrefix+"_UPSTREAM", cfg.ProxyUpstream)
	cfg.Offline = getEnvBool(envPrefix+"_OFFLINE", cfg.Offline)
	cfg.AllowLocalhost = getEnvBool(envPrefix+"_ALLOW_LOCALHOST", cfg.AllowLocalhost)

	const keyPrefix = envPrefix + "_ETHERSCAN_KEY_"
	const rpcPrefix = envPrefix + "_RPC_URL_"
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(k, keyPrefix):
			chain := strings.ToLower(strings.TrimPrefix(k, keyPrefix))
			cfg.EtherscanKeys[chain] = v
		case strings.HasPrefix(k, rpcPrefix):
			chain := strings.ToLower(strings.TrimPrefix(k, rpcPrefix))
			cfg.RPCURLs[chain] = v
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
