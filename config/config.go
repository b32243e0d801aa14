package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/tolelom/tolbracket/crypto"
)

// GenesisConfig describes the ledger's initial state.
type GenesisConfig struct {
	ChainID string            `json:"chain_id"`
	Alloc   map[string]uint64 `json:"alloc"` // pubkey hex → initial balance
}

// Config holds all node configuration.
type Config struct {
	DataDir      string        `json:"data_dir"`
	RPCPort      int           `json:"rpc_port"`
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"` // empty → no auth
	CORSOrigins  []string      `json:"cors_origins,omitempty"`
	LogLevel     string        `json:"log_level"`
	Creator      string        `json:"creator"` // tournament creator pubkey hex
	Genesis      GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration. Creator is
// left empty and must be filled in before the node will start.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./data",
		RPCPort:  8545,
		LogLevel: "info",
		Genesis: GenesisConfig{
			ChainID: "tolbracket-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// Validate reports the first problem that would stop a node from starting.
func (c *Config) Validate() error {
	if c.Creator == "" {
		return errors.New("creator is required")
	}
	if !crypto.IsPubKeyHex(c.Creator) {
		return fmt.Errorf("creator %q is not an ed25519 pubkey hex", c.Creator)
	}
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port %d out of range", c.RPCPort)
	}
	if c.Genesis.ChainID == "" {
		return errors.New("genesis.chain_id is required")
	}
	var total uint64
	for addr, amount := range c.Genesis.Alloc {
		if !crypto.IsPubKeyHex(addr) {
			return fmt.Errorf("genesis.alloc: %q is not an ed25519 pubkey hex", addr)
		}
		if total > math.MaxUint64-amount {
			return errors.New("genesis.alloc: total supply overflows uint64")
		}
		total += amount
	}
	return nil
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
