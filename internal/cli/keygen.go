package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolbracket/crypto"
	"github.com/tolelom/tolbracket/wallet"
)

// defaultKeyPath is where keygen writes and the tx commands read the
// keystore unless --key says otherwise.
var defaultKeyPath = filepath.Join(xdg.DataHome, "tolbracket", "wallet.key")

func Keygen() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encrypted account key",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`keygen generates a new ed25519 key pair and writes it to
			an encrypted keystore. The public key it prints is the
			account address used for balances, registration, and as
			the tournament creator.

			The keystore password is read from TOL_PASSWORD (or a .env
			file), never from a flag.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("key")
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			priv, pub, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return err
			}
			if err := wallet.SaveKey(path, password(), priv); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nkeystore: %s\n", pub.Hex(), path)
			return nil
		},
	}
	cmd.Flags().String("key", defaultKeyPath, "Keystore file to write")
	cmd.Flags().Bool("force", false, "Overwrite an existing keystore")
	return cmd
}

// password reads the keystore password from the environment (not CLI
// flags, which leak via ps).
func password() string {
	p := os.Getenv(envPassword)
	if p == "" {
		logrus.Warn(envPassword + " not set, keystore uses an empty password")
	}
	return p
}
