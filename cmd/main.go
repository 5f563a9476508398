// Package main provides the ledger command line: an HTTP server over the ledger engine.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/internal/eventpub"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"

	_ "github.com/lib/pq"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("ledger failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Transactional ledger engine",
		Long:          "Ledger owns account balances and the append-only entry and audit logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of the ledger",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ledger %s\n", version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var configDir, envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configpkg.LoadEnvFile(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}

			config, err := configpkg.Load(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := middleware.CreateLogger(config)

			repo, closeRepo, err := openStore(config)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeRepo(); err != nil {
					logger.Error().Err(err).Msg("cannot close store")
				}
			}()

			publisher, err := eventpub.New(config)
			if err != nil {
				return fmt.Errorf("create publisher: %w", err)
			}
			defer func() {
				if err := publisher.Close(); err != nil {
					logger.Error().Err(err).Msg("cannot close publisher")
				}
			}()

			if config.Environment != configpkg.EnvDevelopment {
				gin.SetMode(gin.ReleaseMode)
			}

			server, err := httpserver.New(repo, publisher, logger, config)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().
				Str("store", config.StoreDriver).
				Str("events", config.EventsDriver).
				Str("version", version).
				Msg("LEDGER SERVER IS STARTING")

			return server.Run(logger.WithContext(ctx))
		},
	}

	cmd.Flags().StringVar(&configDir, "config", "./configs", "directory holding app.env")
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file loaded into the environment before the config")

	return cmd
}

// openStore returns the ledger store selected by config.StoreDriver and its closer.
func openStore(config configpkg.Config) (ledgerservice.Repo, func() error, error) {
	switch config.StoreDriver {
	case "", configpkg.StoreMemory:
		return ledgerrepo.NewRepoMem(), func() error { return nil }, nil
	case configpkg.StorePostgres:
		db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}

		return ledgerrepo.NewRepoPGS(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}
}
