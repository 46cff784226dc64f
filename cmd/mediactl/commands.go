package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/backfill"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

// runtimeFromFlags builds the configured service, applying flag overrides
// on top of the environment.
func runtimeFromFlags(cmd *cobra.Command) (*config.Runtime, *slog.Logger, error) {
	opts := []config.Option{config.WithEnv()}
	if v, _ := cmd.Flags().GetString("storage"); v != "" {
		opts = append(opts, config.WithStorageURL(v))
	}
	if v, _ := cmd.Flags().GetString("index"); v != "" {
		opts = append(opts, config.WithIndexURL(v))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	logger := cfg.NewLogger(os.Stderr)

	rt, err := cfg.BuildService(cmd.Context(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build service: %w", err)
	}
	return rt, logger, nil
}

func closeRuntime(rt *config.Runtime, logger *slog.Logger) {
	if err := rt.Close(context.Background()); err != nil {
		logger.Warn("cleanup failed", "error", err)
	}
}

func printReports(cmd *cobra.Command, reports map[simplemedia.Namespace]backfill.Report) {
	for _, ns := range simplemedia.Namespaces() {
		if r, ok := reports[ns]; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", ns, r)
		}
	}
}

func NewImportJSONCommand() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "import-json",
		Short: "Import legacy data/{type}.json index files",
		Long: `Import legacy data/{type}.json index files into the configured index.

Entries without a key get one recovered from their url (a leading
uploads/ segment is dropped) and every url is rewritten from the
configured public base. Entries already indexed are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, logger, err := runtimeFromFlags(cmd)
			if err != nil {
				return err
			}
			defer closeRuntime(rt, logger)

			im := backfill.NewImporter(rt.Index, rt.Store, rt.URLs, backfill.WithLogger(logger))
			reports, err := im.ImportIndex(cmd.Context(), root)
			printReports(cmd, reports)
			return err
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project directory containing data/")
	return cmd
}

func NewMigrateUploadsCommand() *cobra.Command {
	var old string

	cmd := &cobra.Command{
		Use:   "migrate-uploads",
		Short: "Copy a legacy uploads/ directory into the object store",
		Long: `Copy files referenced by OLD/data/{type}.json from OLD/uploads/{type}/
into the configured object store and import the entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if old == "" {
				return errors.New("--old is required")
			}
			rt, logger, err := runtimeFromFlags(cmd)
			if err != nil {
				return err
			}
			defer closeRuntime(rt, logger)

			im := backfill.NewImporter(rt.Index, rt.Store, rt.URLs, backfill.WithLogger(logger))
			reports, err := im.MigrateUploads(cmd.Context(), old)
			printReports(cmd, reports)
			return err
		},
	}
	cmd.Flags().StringVar(&old, "old", "", "legacy project directory (required)")
	return cmd
}

func NewPostersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "posters",
		Short: "Extract posters for stored videos that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, logger, err := runtimeFromFlags(cmd)
			if err != nil {
				return err
			}
			defer closeRuntime(rt, logger)

			report, err := backfill.Posters(cmd.Context(), rt.Service, logger)
			fmt.Fprintf(cmd.OutOrStdout(), "extracted=%d failed=%d\n", report.Extracted, report.Failed)
			return err
		},
	}
}

func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables read by the server and these commands",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
		},
	}
}
