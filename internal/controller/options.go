package controller

import (
	"log/slog"
	"time"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/build"
	"github.com/standardbeagle/tdwctl/internal/transport"
)

type options struct {
	host         string
	port         int
	launch       bool
	checkVersion bool
	buildPath    string
	buildVersion string
	installer    *build.Installer
	graceful     time.Duration
	webgl        string
	maxResends   int
	transport    []transport.Option
	ids          IDGenerator
	logger       *slog.Logger
	addOns       []addon.AddOn
}

func defaultOptions() options {
	return options{
		host:         "localhost",
		port:         DefaultPort,
		launch:       true,
		checkVersion: true,
		buildVersion: Version,
		maxResends:   DefaultMaxResends,
	}
}

// Option configures a Controller.
type Option func(*options)

// WithPort sets the build's port. The default is 1071.
func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

// WithHost sets the host to connect to.
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithLaunchBuild controls whether New starts the build. When false the
// controller only connects to a build that is already running.
func WithLaunchBuild(launch bool) Option {
	return func(o *options) { o.launch = launch }
}

// WithCheckVersion controls whether the build version is compared with
// Version after the handshake.
func WithCheckVersion(check bool) Option {
	return func(o *options) { o.checkVersion = check }
}

// WithBuildPath launches this executable instead of the installed build.
func WithBuildPath(path string) Option {
	return func(o *options) { o.buildPath = path }
}

// WithBuildVersion sets the build version to install and expect.
func WithBuildVersion(v string) Option {
	return func(o *options) { o.buildVersion = v }
}

// WithInstaller sets the installer used to find or download the build.
func WithInstaller(i *build.Installer) Option {
	return func(o *options) { o.installer = i }
}

// WithGracefulTimeout sets how long Close waits for a launched build to exit
// before killing it.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *options) { o.graceful = d }
}

// WithWebGL listens on addr for a WebGL build to connect instead of dialing.
// The build is not launched.
func WithWebGL(addr string) Option {
	return func(o *options) { o.webgl = addr }
}

// WithMaxResends bounds how often one batch is resent after the build
// reports it failed to receive it.
func WithMaxResends(n int) Option {
	return func(o *options) { o.maxResends = n }
}

// WithTransportOptions passes options to the transport, such as the connect
// attempt budget.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

// WithIDGenerator replaces the random id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAddOns registers add-ons once the handshake is done.
func WithAddOns(a ...addon.AddOn) Option {
	return func(o *options) { o.addOns = append(o.addOns, a...) }
}
