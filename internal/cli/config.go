package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tolelom/tolbracket/config"
	"github.com/tolelom/tolbracket/crypto"
)

func Config() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the node config file",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(configInit())
	return cmd
}

func configInit() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			creator, _ := cmd.Flags().GetString("creator")
			force, _ := cmd.Flags().GetBool("force")
			alloc, _ := cmd.Flags().GetUint64("alloc")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg := config.DefaultConfig()
			if creator != "" {
				if !crypto.IsPubKeyHex(creator) {
					return fmt.Errorf("creator %q is not an ed25519 pubkey hex", creator)
				}
				cfg.Creator = creator
				if alloc > 0 {
					cfg.Genesis.Alloc[creator] = alloc
				}
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("creator", "", "Tournament creator pubkey hex")
	cmd.Flags().Uint64("alloc", 0, "Genesis balance for the creator")
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}
