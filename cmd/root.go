package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optdemo/internal/config"
)

var (
	logLevel   string
	configPath string
	dataDir    string
	cfg        *config.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "optdemo",
	Short: "Iterative nonlinear optimization demos",
	Long: `optdemo runs gradient descent, Newton's method, Gauss-Newton least squares,
Newton-Lagrange constrained root finding and conjugate gradient on small
demo problems, recording each run and its trajectory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			cfg.General.LogLevel = logLevel
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.General.DataDir = dataDir
		}

		logger = newLogger(cfg.General.LogLevel)
		slog.SetDefault(logger)
		slog.Debug("Configuration loaded", "path", configPath, "data_dir", cfg.General.DataDir)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for run storage")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	loaded, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return loaded, nil
}

// newLogger returns a JSON logger on stderr so results on stdout stay clean.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: l}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
