package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tolelom/tolbracket/config"
	"github.com/tolelom/tolbracket/events"
	"github.com/tolelom/tolbracket/indexer"
	"github.com/tolelom/tolbracket/rpc"
	"github.com/tolelom/tolbracket/storage"
	"github.com/tolelom/tolbracket/vm"
)

func Start() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run a ledger node",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`start opens the ledger in the configured data directory,
			applies genesis if the ledger is fresh, and serves JSON-RPC
			and the websocket event stream until interrupted.

			The config file must name the tournament creator. Use
			"tolbracket config init --creator <pubkey>" to write one.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config %s: %w", path, err)
			}
			// --log-level wins over the config file.
			if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
				if err := setLogLevel(cfg.LogLevel); err != nil {
					return fmt.Errorf("config log_level: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, cfg)
		},
	}
}

// runNode wires the node together and blocks until ctx is cancelled or the
// RPC server fails.
func runNode(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	state := storage.NewStateDB(db)
	fresh, err := config.ApplyGenesis(cfg, state)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if fresh {
		logrus.WithFields(logrus.Fields{
			"creator":  cfg.Creator,
			"accounts": len(cfg.Genesis.Alloc),
			"root":     state.ComputeRoot(),
		}).Info("genesis applied")
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	exec := vm.NewExecutor(state, emitter, cfg.Genesis.ChainID)
	stream := rpc.NewStream(emitter)

	srv := rpc.NewServer(
		fmt.Sprintf(":%d", cfg.RPCPort),
		rpc.NewHandler(exec, idx),
		stream,
		cfg.RPCAuthToken,
		cfg.CORSOrigins,
	)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	if cfg.RPCAuthToken != "" {
		logrus.Info("rpc bearer token authentication enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down")
		return srv.Stop()
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logrus.Info("shutdown complete")
	return nil
}
