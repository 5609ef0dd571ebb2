package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/smtp-send-lite/internal/config"
)

var (
	// Global flags
	configPath string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "smtp-send",
		Short: "smtp-send - submit mail to an SMTP relay",
		Long: `A command-line tool for composing and submitting email.
Messages are delivered through an SMTP relay with STARTTLS and AUTH LOGIN,
through the AWS SES API, or printed to stdout for dry runs.`,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file (optional)")
}

// loadConfig loads configuration from the --config path (YAML + env
// override) or from environment variables only if no path is given.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
