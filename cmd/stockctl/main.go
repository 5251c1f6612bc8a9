// Command stockctl runs administrative tasks against a StockFlow deployment:
// schema migration, demo data seeding, QR label export and a stock
// reservation stress test.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rl1809/stockflow/internal/config"
	"github.com/rl1809/stockflow/internal/logger"
)

// cli carries the state shared by every subcommand.
type cli struct {
	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Administer a StockFlow deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg
			c.log = logger.New("stockctl", cfg.Common.LogLevel)
			return nil
		},
	}

	root.AddCommand(
		c.migrateCmd(),
		c.seedCmd(),
		c.qrCmd(),
		c.stressCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stockctl: %v\n", err)
		os.Exit(1)
	}
}
