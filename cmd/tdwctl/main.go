package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/tdwctl/internal/config"
	"github.com/standardbeagle/tdwctl/internal/controller"
)

const appName = "tdwctl"

var (
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Controller for the TDW simulation build",
	Long: `tdwctl installs, launches and drives the TDW simulation build:
  - downloads the build matching the controller version
  - launches it and connects over its local socket
  - steps the simulation with commands from a file, recording responses

Settings are read from the nearest .tdw.kdl in the working directory or
its parents.`,
	Version:       controller.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, cfgPath, err = config.Load(wd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		logger = newLogger(cfg.Log.Level)
		slog.SetDefault(logger)
		if cfgPath != "" {
			logger.Debug("loaded config", "path", cfgPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, controller.Version))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
