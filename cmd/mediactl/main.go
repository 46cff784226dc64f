package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mediactl",
		Short: "Maintenance commands for simple-media",
		Long: `Maintenance commands for simple-media.

Store, index and public URL settings are read from the same environment
variables as the server (STORAGE_URL, INDEX_URL, PUBLIC_URL_BASE, ...).`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("storage", "", "override STORAGE_URL")
	rootCmd.PersistentFlags().String("index", "", "override INDEX_URL")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	rootCmd.AddCommand(NewImportJSONCommand())
	rootCmd.AddCommand(NewMigrateUploadsCommand())
	rootCmd.AddCommand(NewPostersCommand())
	rootCmd.AddCommand(NewEnvCommand())

	return rootCmd
}
