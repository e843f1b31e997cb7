// Package cli команды операторской утилиты ledgerctl.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/credit-ledger/internal/config"
)

type options struct {
	configPath string
	verbose    bool
}

// NewRootCmd собирает дерево команд ledgerctl.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tool for the credit ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config file (default $CONFIG_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newMigrateCmd(opts),
		newSeedSlotsCmd(opts),
		newGrantCmd(opts),
		newRefundsCmd(opts),
		newHashSecretCmd(),
		newTokenCmd(opts),
	)
	return root
}

// Execute запускает ledgerctl с аргументами процесса.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (o *options) load() (*config.Config, error) {
	if o.configPath == "" {
		return nil, fmt.Errorf("config path is not set: use --config or CONFIG_PATH")
	}
	return config.Load(o.configPath)
}

func (o *options) logger() *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
