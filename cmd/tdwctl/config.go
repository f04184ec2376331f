package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/tdwctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the .tdw.kdl config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfgPath == "" {
			fmt.Fprintln(out, "config: defaults (no .tdw.kdl found)")
		} else {
			fmt.Fprintf(out, "config: %s\n", cfgPath)
		}
		c := cfg.Controller
		fmt.Fprintf(out, "controller: %s launch=%t check-version=%t\n", c.Addr(), c.LaunchBuild, c.CheckVersion)
		fmt.Fprintf(out, "build: %s version %s\n", cfg.Build.Root, buildVersion())
		fmt.Fprintf(out, "webgl: %s\n", cfg.WebGL.Listen)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default .tdw.kdl",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		path := filepath.Join(dir, config.FileName)
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}
