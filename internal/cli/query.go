package cli

import (
	"github.com/spf13/cobra"
)

func Query() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read ledger state from a node",
		Args:  cobra.NoArgs,
	}
	clientFlags(cmd)

	cmd.AddCommand(queryCommand("counter", "Show the next tournament id", 0,
		func([]string) (string, any, error) { return "getCounter", nil, nil }))

	cmd.AddCommand(queryCommand("creator", "Show the tournament creator", 0,
		func([]string) (string, any, error) { return "getCreator", nil, nil }))

	cmd.AddCommand(queryCommand("root", "Show the state root and sequence number", 0,
		func([]string) (string, any, error) { return "getStateRoot", nil, nil }))

	cmd.AddCommand(queryCommand("game <id>", "Show a tournament", 1,
		func(args []string) (string, any, error) {
			id, err := parseID(args[0])
			return "getGame", map[string]uint32{"id": id}, err
		}))

	cmd.AddCommand(queryCommand("players <id>", "List a tournament's players", 1,
		func(args []string) (string, any, error) {
			id, err := parseID(args[0])
			return "getPlayers", map[string]uint32{"id": id}, err
		}))

	cmd.AddCommand(queryCommand("balance <address>", "Show an account's balance and nonce", 1,
		func(args []string) (string, any, error) {
			return "getBalance", map[string]string{"address": args[0]}, nil
		}))

	games := queryCommand("games <player>", "List tournaments a player registered for", 1, nil)
	games.Flags().Bool("won", false, "List only tournaments the player won")
	games.RunE = func(cmd *cobra.Command, args []string) error {
		method := "getGamesByPlayer"
		if won, _ := cmd.Flags().GetBool("won"); won {
			method = "getGamesWonBy"
		}
		return call(cmd, method, map[string]string{"player": args[0]})
	}
	cmd.AddCommand(games)

	return cmd
}

func queryCommand(use, short string, nargs int, params func([]string) (string, any, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
	}
	if params != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			method, p, err := params(args)
			if err != nil {
				return err
			}
			return call(cmd, method, p)
		}
	}
	return cmd
}

func call(cmd *cobra.Command, method string, params any) error {
	var out any
	if err := newClient(cmd).Call(cmd.Context(), method, params, &out); err != nil {
		return err
	}
	return printJSON(cmd, out)
}
