// Package cli implements the tolbracket command tree.
package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Environment variables read by the CLI. A .env file in the working
// directory is loaded first and never overrides variables already set.
const (
	envPassword = "TOL_PASSWORD"
	envRPCURL   = "TOL_RPC_URL"
	envRPCToken = "TOL_RPC_TOKEN"
)

// Root builds the tolbracket command.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:  "tolbracket",
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				return setLogLevel(lvl)
			}
			return nil
		},
	}

	// global flags
	root.PersistentFlags().String("config", "config.json", "Path to the node config file")
	root.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(Start())
	root.AddCommand(Keygen())
	root.AddCommand(Config())
	root.AddCommand(Tx())
	root.AddCommand(Query())

	return root
}

func setLogLevel(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	return nil
}
