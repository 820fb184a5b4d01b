// Command growthsim runs the creator growth decision simulator: an HTTP API
// for the studio frontend, plus scripted replays and scenario checks from the
// terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "growthsim",
		Short: "Creator growth decision simulator",
		Long: `growthsim replays creator account decisions through a non-linear
scaling model and projects followers, views, engagement, income and
subscribers for each path through the story.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "growthsim.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(),
		newReplayCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("growthsim version %s\n", version)
		},
	}
}

// setupLogging installs the default slog handler at the configured level.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
}
