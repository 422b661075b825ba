package main

import (
	"database/sql"
	"fmt"

	"audit-trail/db"
	"audit-trail/internal/audit"
	"audit-trail/internal/config"
	"audit-trail/internal/dedup"
	"audit-trail/pkg/logger"
	"audit-trail/pkg/utils"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Applies all pending migrations, or rolls every migration back with --down.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(_ config.Config, pg *sql.DB) error {
				if down {
					if err := db.Rollback(pg); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
					return nil
				}
				if err := db.Migrate(pg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back all migrations")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the action type catalog",
		Long:  "Upserts action types from the embedded catalog, or from a YAML file given with --file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := db.ActionTypesYAML()
			if file != "" {
				var err error
				if data, err = readInput(cmd, file); err != nil {
					return err
				}
			}
			types, err := audit.ParseActionTypes(data)
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(_ config.Config, pg *sql.DB) error {
				if err := audit.SeedActionTypes(cmd.Context(), audit.NewPostgresRepo(pg), types); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d action types\n", len(types))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog to load instead of the embedded one")
	return cmd
}

func newDedupCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup-cleanup",
		Short: "Remove expired dedup entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(cfg config.Config, pg *sql.DB) error {
				store := dedup.Store(dedup.NewPostgresStore(pg))
				if cfg.Dedup.Backend == config.DedupBackendRedis {
					rdb, err := utils.OpenRedis(cmd.Context(), utils.RedisConfig{Addr: cfg.RedisAddr()})
					if err != nil {
						return err
					}
					defer rdb.Close()
					store = dedup.NewRedisStore(rdb)
				}
				gate := dedup.NewGate(store, cfg.Dedup.TTL, logger.New(cfg.App.Env), nil)
				n := gate.CleanupExpired(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", n)
				return nil
			})
		},
	}
}
