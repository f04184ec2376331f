package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/tdwctl/internal/controller"
	"github.com/standardbeagle/tdwctl/internal/process"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Install the build matching the controller version",
	Long: `Download and extract the build into the build root unless the installed
version already matches.

Examples:
  tdwctl download
  tdwctl download --version 1.11.23
  tdwctl download --force`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch the build and keep it running until interrupted",
	Long: `Install the build if needed, launch it on the configured port and wait.
Controllers started with launch-build false can then connect to it.`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the controller and installed build versions",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(downloadCmd, launchCmd, versionCmd)

	downloadCmd.Flags().String("version", "", "Build version (default: the controller version)")
	downloadCmd.Flags().Bool("force", false, "Download even if the version is installed")

	launchCmd.Flags().Int("port", 0, "Socket port (default: from config)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	version, _ := cmd.Flags().GetString("version")
	force, _ := cmd.Flags().GetBool("force")
	if version == "" {
		version = buildVersion()
	}

	inst, err := newInstaller()
	if err != nil {
		return err
	}
	if force {
		if err := inst.Download(cmd.Context(), version); err != nil {
			return err
		}
	} else if _, err := inst.Ensure(cmd.Context(), version); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Build %s installed at %s\n", version, inst.Executable())
	return nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = cfg.Controller.Port
	}

	inst, err := newInstaller()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := inst.Ensure(ctx, buildVersion())
	if err != nil {
		return err
	}
	proc, err := process.Start(ctx, process.Config{
		Path:            path,
		Port:            port,
		GracefulTimeout: cfg.Build.GracefulTimeout,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Build running on port %d (pid %d), press Ctrl+C to stop\n", port, proc.PID())

	select {
	case <-proc.Done():
		out, _ := proc.Output()
		os.Stderr.Write(out)
		return fmt.Errorf("build exited with code %d", proc.ExitCode())
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Build.GracefulTimeout)
	defer cancel()
	return proc.Stop(stopCtx)
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", appName, controller.Version)

	inst, err := newInstaller()
	if err != nil {
		return err
	}
	installed, err := inst.InstalledVersion()
	if err != nil {
		return err
	}
	if installed == "" {
		fmt.Fprintf(out, "build: not installed (%s)\n", inst.Executable())
		return nil
	}
	fmt.Fprintf(out, "build: %s (%s)\n", installed, inst.Executable())
	return nil
}
