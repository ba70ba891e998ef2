package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/svcbackup/internal/config"
	"github.com/alfredjeanlab/svcbackup/internal/service"
	"github.com/alfredjeanlab/svcbackup/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:               "migrate",
	Short:             "Install or uninstall the module schema",
	GroupID:           "system",
	PersistentPreRunE: localCommand,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create the service tables (install)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withModule(func(ctx context.Context, svc *service.Service) error {
			return svc.Install(ctx)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop the service tables (uninstall)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("migrate down drops every service row; pass --yes to confirm")
		}
		return withModule(func(ctx context.Context, svc *service.Service) error {
			return svc.Uninstall(ctx)
		})
	},
}

// withModule opens the database without migrating and runs fn against a
// service bound to it.
func withModule(fn func(ctx context.Context, svc *service.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc := service.New(store, nil, service.WithMigrator(store), service.WithLogger(logger))
	return fn(context.Background(), svc)
}

func init() {
	migrateDownCmd.Flags().Bool("yes", false, "confirm dropping the service tables")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}
