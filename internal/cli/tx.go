package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/crypto"
	"github.com/tolelom/tolbracket/rpc"
	"github.com/tolelom/tolbracket/vm"
	"github.com/tolelom/tolbracket/wallet"
)

const spinnerSet = 14

// builder signs a transaction for the given nonce.
type builder func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error)

func Tx() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and submit a transaction",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`tx signs a transaction with the keystore named by --key
			and submits it to the node at --rpc. The nonce is fetched
			from the node, so commands from one key must not race.`),
	}
	clientFlags(cmd)
	cmd.PersistentFlags().String("key", defaultKeyPath, "Keystore of the signing account")
	cmd.PersistentFlags().Uint64("fee", 0, "Fee paid by the signing account")

	cmd.AddCommand(txCommand("transfer <to> <amount>", "Send tokens to another account", 2,
		func(args []string) (builder, error) {
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("amount: %w", err)
			}
			return func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.Transfer(args[0], amount, nonce, fee)
			}, nil
		}))

	cmd.AddCommand(txCommand("create <capacity> <reward>", "Open a tournament funded from the signing account", 2,
		func(args []string) (builder, error) {
			capacity, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("capacity: %w", err)
			}
			reward, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("reward: %w", err)
			}
			return func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.CreateTournament(uint32(capacity), reward, nonce, fee)
			}, nil
		}))

	cmd.AddCommand(txCommand("register <id>", "Register the signing account for a tournament", 1,
		func(args []string) (builder, error) {
			id, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.Register(id, nonce, fee)
			}, nil
		}))

	status := txCommand("status <id>", "Set the started and ended flags of a tournament", 1, nil)
	status.Flags().Bool("started", false, "Mark the tournament started")
	status.Flags().Bool("ended", false, "Mark the tournament ended")
	status.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		started, _ := cmd.Flags().GetBool("started")
		ended, _ := cmd.Flags().GetBool("ended")
		return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
			return w.SetStatus(id, started, ended, nonce, fee)
		})
	}
	cmd.AddCommand(status)

	cmd.AddCommand(txCommand("report <id> <player-a> <player-b> <winner>", "Report a match result", 4,
		func(args []string) (builder, error) {
			id, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.ReportResult(id, args[1], args[2], args[3], nonce, fee)
			}, nil
		}))

	cmd.AddCommand(txCommand("claim <id>", "Claim the reward pool of a won tournament", 1,
		func(args []string) (builder, error) {
			id, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.ClaimReward(id, nonce, fee)
			}, nil
		}))

	return cmd
}

func txCommand(use, short string, nargs int, parse func([]string) (builder, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
	}
	if parse != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			build, err := parse(args)
			if err != nil {
				return err
			}
			return submit(cmd, build)
		}
	}
	return cmd
}

// submit loads the signing key, fetches chain id and nonce from the node,
// signs with build, and waits for the receipt.
func submit(cmd *cobra.Command, build builder) error {
	keyPath, _ := cmd.Flags().GetString("key")
	fee, _ := cmd.Flags().GetUint64("fee")

	priv, err := wallet.LoadKey(keyPath, password())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	client := newClient(cmd)

	s := spinner.New(spinner.CharSets[spinnerSet], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr), spinner.WithSuffix(" submitting"))
	s.Start()
	rcpt, err := send(cmd.Context(), client, priv, fee, build)
	s.Stop()
	if err != nil {
		return err
	}
	return printJSON(cmd, rcpt)
}

func send(ctx context.Context, client *rpc.Client, priv crypto.PrivateKey, fee uint64, build builder) (*vm.Receipt, error) {
	var chainID string
	if err := client.Call(ctx, "getChainID", nil, &chainID); err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	w := wallet.New(priv, chainID)

	var acc core.Account
	if err := client.Call(ctx, "getBalance", map[string]string{"address": w.PubKey()}, &acc); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	tx, err := build(w, acc.Nonce, fee)
	if err != nil {
		return nil, err
	}
	var rcpt vm.Receipt
	if err := client.Call(ctx, "sendTx", tx, &rcpt); err != nil {
		return nil, err
	}
	return &rcpt, nil
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("tournament id: %w", err)
	}
	return uint32(id), nil
}

const defaultRPCURL = "http://127.0.0.1:8545"

func clientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("rpc", "", "Node JSON-RPC endpoint (default $"+envRPCURL+" or "+defaultRPCURL+")")
}

// newClient resolves the endpoint at run time so a .env file can supply it.
func newClient(cmd *cobra.Command) *rpc.Client {
	url, _ := cmd.Flags().GetString("rpc")
	if url == "" {
		url = os.Getenv(envRPCURL)
	}
	if url == "" {
		url = defaultRPCURL
	}
	return rpc.NewClient(url, os.Getenv(envRPCToken))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
