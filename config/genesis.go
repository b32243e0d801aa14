package config

import (
	"errors"
	"fmt"

	"github.com/tolelom/tolbracket/core"
)

// ApplyGenesis initialises a fresh ledger: it records the tournament
// creator, credits every alloc account, and commits. It returns false
// without touching state if the ledger already has a creator.
func ApplyGenesis(cfg *Config, state core.State) (bool, error) {
	existing, err := state.Creator()
	switch {
	case err == nil:
		if existing != cfg.Creator {
			return false, fmt.Errorf("ledger creator %s does not match configured creator %s", existing, cfg.Creator)
		}
		return false, nil
	case !errors.Is(err, core.ErrNotFound):
		return false, fmt.Errorf("read creator: %w", err)
	}

	if err := state.SetCreator(cfg.Creator); err != nil {
		return false, err
	}
	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{Address: pubkeyHex, Balance: balance}
		if err := state.SetAccount(acc); err != nil {
			return false, err
		}
	}
	if err := state.Commit(); err != nil {
		return false, fmt.Errorf("commit genesis: %w", err)
	}
	return true, nil
}
