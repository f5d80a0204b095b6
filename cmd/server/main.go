// Sonar Hub - sonar analysis dashboard server
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCommand creates the CLI. Running it without a subcommand starts the
// server.
func rootCommand() *cobra.Command {
	serveCmd := serveCommand()

	rootCmd := &cobra.Command{
		Use:          "sonarhub",
		Short:        "Sonar analysis dashboard",
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}

	rootCmd.AddCommand(
		serveCmd,
		simulateCommand(),
		exportCommand(),
	)
	return rootCmd
}
