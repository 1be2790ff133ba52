// Package cli implements the courtql command line interface.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"courtql/internal/app"
	"courtql/internal/config"
	internaldb "courtql/internal/db"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "courtql",
		Short:         "Basketball statistics question answering",
		Long:          "Ask natural-language questions about basketball box scores, answered with generated SQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an env file with configuration")
	// Accept underscore-separated flag names for users pasting env-style names.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(newAskCmd(&envFile))
	rootCmd.AddCommand(newServeCmd(&envFile))

	return rootCmd
}

// bootstrap loads configuration, opens the statistics store, runs
// migrations, and wires the application. The caller must invoke the
// returned cleanup func.
func bootstrap(ctx context.Context, envFile string, logOutput io.Writer) (*app.App, *config.Config, func(), error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", envFile, err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.DBPath, 4)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open statistics store: %w", err)
	}
	cleanup := func() {
		closeQuietly(writeDB)
		closeQuietly(readDB)
	}

	if err := internaldb.RunMigrations(writeDB); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("migrations: %w", err)
	}

	a, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return a, cfg, cleanup, nil
}

func closeQuietly(db *sql.DB) {
	_ = db.Close()
}
