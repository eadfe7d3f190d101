package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gopherai-workspace/internal/bootstrap"
	"gopherai-workspace/internal/config"
	"gopherai-workspace/internal/session"
)

type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "statectl",
		Short: "Inspect and repair persisted workspace session state",
		Long: `statectl reads the session state maps the workspace service persists
(session ids, session types and document lists per workspace) using the same
config and state driver as the server.

Examples:
  statectl dump                 # print all three maps as JSON
  statectl dump --format yaml   # print them as YAML
  statectl forget 42            # drop the state of workspace 42`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (defaults to $CONFIG_FILE or configs/config.toml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log state backend activity to stderr")

	root.AddCommand(newDumpCmd(opts), newForgetCmd(opts))
	return root
}

// openStore loads config and opens the session store over the configured
// state driver. The returned close func releases its connections.
func openStore(ctx context.Context, opts *options) (*session.Store, func(), error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		path = "configs/config.toml"
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config failed: %w", err)
	}

	logger := zerolog.Nop()
	if opts.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	state, err := bootstrap.OpenState(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := session.Open(ctx, session.Config{KV: state.KV, Logger: logger})
	if err != nil {
		_ = state.Close()
		return nil, nil, err
	}
	return store, func() { _ = state.Close() }, nil
}
