package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"travel/internal/app"
	"travel/internal/config"
	"travel/internal/repository/postgres"
	"travel/internal/seed"
)

const commandTimeout = 30 * time.Second

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				if err := postgres.Migrate(ctx, db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database migrated successfully.")
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		count   int
		fakeKey int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with sample listings",
		Long: `Seed the database with sample listings.

Examples:
  travelctl seed
  travelctl seed --count 25 --faker-seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				faker := gofakeit.New(fakeKey)
				listings, err := seed.Listings(ctx, postgres.NewListingRepository(db), count, faker)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database seeded successfully with %d listings.\n", len(listings))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", seed.DefaultCount, "number of listings to create")
	cmd.Flags().Int64Var(&fakeKey, "faker-seed", 0, "random seed for generated data (0 picks a random one)")

	return cmd
}

func withDatabase(parent context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	cfg := config.Load()
	db, err := app.NewDatabase(ctx, cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return fn(ctx, db)
}
