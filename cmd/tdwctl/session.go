package main

import (
	"fmt"
	"net/http"
	"os"

	"golang.org/x/term"

	"github.com/standardbeagle/tdwctl/internal/build"
	"github.com/standardbeagle/tdwctl/internal/controller"
	"github.com/standardbeagle/tdwctl/internal/transport"
)

// buildVersion is the build release to install and expect.
func buildVersion() string {
	if cfg.Build.Version != "" {
		return cfg.Build.Version
	}
	return controller.Version
}

func newInstaller() (*build.Installer, error) {
	opts := []build.Option{
		build.WithRoot(cfg.Build.Root),
		build.WithHTTPClient(&http.Client{Timeout: cfg.Build.DownloadTimeout}),
		build.WithLogger(logger),
	}
	if cfg.Build.ReleaseBaseURL != "" {
		opts = append(opts, build.WithBaseURL(cfg.Build.ReleaseBaseURL))
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		opts = append(opts, build.WithProgress(progressBar()))
	}
	return build.NewInstaller(opts...)
}

// progressBar redraws a one-line download counter on stderr.
func progressBar() build.ProgressFunc {
	return func(done, total int64) {
		const mib = 1 << 20
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\r%6.1f / %.1f MiB (%3d%%)", float64(done)/mib, float64(total)/mib, done*100/total)
		} else {
			fmt.Fprintf(os.Stderr, "\r%6.1f MiB", float64(done)/mib)
		}
		if total > 0 && done >= total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// controllerOptions maps the loaded config onto controller options.
func controllerOptions(webgl bool) ([]controller.Option, error) {
	c := cfg.Controller
	opts := []controller.Option{
		controller.WithHost(c.Host),
		controller.WithPort(c.Port),
		controller.WithLaunchBuild(c.LaunchBuild),
		controller.WithCheckVersion(c.CheckVersion),
		controller.WithBuildVersion(buildVersion()),
		controller.WithMaxResends(c.MaxResends),
		controller.WithGracefulTimeout(cfg.Build.GracefulTimeout),
		controller.WithLogger(logger),
		controller.WithTransportOptions(
			transport.WithAttempts(c.ConnectAttempts),
			transport.WithRetryInterval(c.ConnectInterval, c.ConnectInterval),
			transport.WithMaxMessageSize(c.MaxMessageSize),
		),
	}
	if webgl {
		opts = append(opts, controller.WithWebGL(cfg.WebGL.Listen))
		return opts, nil
	}
	if c.LaunchBuild {
		inst, err := newInstaller()
		if err != nil {
			return nil, err
		}
		opts = append(opts, controller.WithInstaller(inst))
	}
	return opts, nil
}
