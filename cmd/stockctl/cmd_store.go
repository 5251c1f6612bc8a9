package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rl1809/stockflow/internal/app"
	"github.com/rl1809/stockflow/internal/core/service"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeStore, err := app.OpenStore(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer closeStore()

			c.log.Info().Str("driver", c.cfg.Database.Driver).Msg("schema migrated")
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	var businessID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog into a business",
		Long: `Load the bundled demo categories and products into an existing business.

Products whose SKU already exists in the business are left untouched, so the
command can be run more than once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := app.OpenStore(ctx, c.cfg.Database)
			if err != nil {
				return err
			}
			defer closeStore()

			business, err := store.GetBusiness(ctx, businessID)
			if err != nil {
				return err
			}
			if business == nil {
				return fmt.Errorf("business %s not found", businessID)
			}

			cache, closeCache, err := app.OpenCache(ctx, c.cfg.Redis, c.log)
			if err != nil {
				return err
			}
			defer closeCache()

			catalog := service.NewCatalogService(store, cache, c.log)
			created, err := catalog.SeedDemoCatalog(ctx, business.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products into %s\n", created, business.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&businessID, "business", "", "business ID to seed")
	cmd.MarkFlagRequired("business")
	return cmd
}
