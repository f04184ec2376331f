package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrReleaseNotFound is returned when no build is published for a version.
var ErrReleaseNotFound = errors.New("release not found")

const (
	userAgent = "tdwctl-installer"

	// DefaultDownloadTimeout bounds a whole build download.
	DefaultDownloadTimeout = 30 * time.Minute
)

// ProgressFunc reports bytes downloaded. total is -1 when unknown.
type ProgressFunc func(done, total int64)

// Installer keeps one build installed under a root directory.
type Installer struct {
	root     string
	baseURL  string
	platform Platform
	client   *http.Client
	logger   *slog.Logger
	progress ProgressFunc

	// unquarantine clears the macOS quarantine flag on the app bundle.
	unquarantine func(ctx context.Context, dir string) error
}

// Option configures an Installer.
type Option func(*Installer)

// WithRoot sets the install directory.
func WithRoot(root string) Option {
	return func(i *Installer) { i.root = root }
}

// WithBaseURL sets the release download base URL.
func WithBaseURL(url string) Option {
	return func(i *Installer) { i.baseURL = url }
}

// WithPlatform overrides the detected platform.
func WithPlatform(p Platform) Option {
	return func(i *Installer) { i.platform = p }
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) { i.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// WithProgress reports download progress.
func WithProgress(fn ProgressFunc) Option {
	return func(i *Installer) { i.progress = fn }
}

// NewInstaller returns an installer for the current platform rooted at
// ~/tdw_build unless overridden.
func NewInstaller(opts ...Option) (*Installer, error) {
	i := &Installer{
		client:       &http.Client{Timeout: DefaultDownloadTimeout},
		logger:       slog.Default(),
		unquarantine: xattrUnquarantine,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.platform.OS == "" {
		p, err := CurrentPlatform()
		if err != nil {
			return nil, err
		}
		i.platform = p
	}
	if i.root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return nil, err
		}
		i.root = root
	}
	return i, nil
}

// Root returns the install directory.
func (i *Installer) Root() string { return i.root }

// Executable returns the path of the installed binary.
func (i *Installer) Executable() string { return i.platform.ExecutablePath(i.root) }

// ReleaseURL returns the download URL for version.
func (i *Installer) ReleaseURL(version string) string {
	return i.platform.ReleaseURL(i.baseURL, version)
}

// InstalledVersion reads the installed build's version file. It returns ""
// when no build is installed.
func (i *Installer) InstalledVersion() (string, error) {
	if _, err := os.Stat(i.Executable()); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	b, err := os.ReadFile(VersionFile(i.root))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read build version: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Ensure installs version unless it is already installed, and returns the
// executable path.
func (i *Installer) Ensure(ctx context.Context, version string) (string, error) {
	installed, err := i.InstalledVersion()
	if err != nil {
		return "", err
	}
	if installed != "" {
		cmp, err := CompareVersions(installed, version)
		if err == nil && cmp == 0 {
			i.logger.Debug("build up to date", "version", installed, "path", i.Executable())
			return i.Executable(), nil
		}
		i.logger.Info("build version mismatch", "installed", installed, "wanted", version)
	} else {
		i.logger.Info("build not found", "path", i.Executable())
	}

	if err := i.Download(ctx, version); err != nil {
		return "", err
	}
	return i.Executable(), nil
}

// Download replaces the installed build with version.
func (i *Installer) Download(ctx context.Context, version string) error {
	url := i.ReleaseURL(version)
	i.logger.Info("downloading build", "url", url)

	tmp, err := i.fetch(ctx, url)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.RemoveAll(i.root); err != nil {
		return fmt.Errorf("failed to remove old build: %w", err)
	}
	if err := os.MkdirAll(i.root, 0o755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	if err := extractFile(tmp, i.root); err != nil {
		return fmt.Errorf("failed to extract build: %w", err)
	}

	if i.platform.OS != "windows" {
		if err := os.Chmod(i.Executable(), 0o755); err != nil {
			return fmt.Errorf("failed to make build executable: %w", err)
		}
	}
	if i.platform.OS == "darwin" && i.unquarantine != nil {
		if err := i.unquarantine(ctx, filepath.Join(i.root, "TDW")); err != nil {
			i.logger.Warn("failed to clear quarantine flag", "error", err)
		}
	}

	vf := VersionFile(i.root)
	if _, err := os.Stat(vf); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(vf, []byte(strings.TrimPrefix(version, "v")+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write build version: %w", err)
		}
	}
	i.logger.Info("build installed", "version", version, "path", i.Executable())
	return nil
}

// fetch downloads url into a temporary file next to the root and returns
// its path.
func (i *Installer) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch build: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrReleaseNotFound, url)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("release server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := os.MkdirAll(filepath.Dir(i.root), 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(i.root), "tdw-download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	var body io.Reader = resp.Body
	if i.progress != nil {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, fn: i.progress}
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to download build: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.done += int64(n)
	p.fn(p.done, p.total)
	return n, err
}

func xattrUnquarantine(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "xattr", "-r", "-d", "com.apple.quarantine", "TDW.app")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("xattr: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
