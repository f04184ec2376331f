// Package build locates, downloads and installs the simulation build that
// matches the controller version.
package build

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/mitchellh/go-homedir"
)

// DefaultReleaseBaseURL is where versioned builds are published.
const DefaultReleaseBaseURL = "https://github.com/threedworld-mit/tdw/releases/download"

// ErrUnsupportedPlatform is returned for operating systems without a build.
var ErrUnsupportedPlatform = errors.New("no build for this platform")

// Platform describes the release artifact for one operating system.
type Platform struct {
	OS string
	// Release is the archive base name, such as TDW_Linux.
	Release string
	// Suffix is appended to the executable name TDW.
	Suffix string
	// ArchiveExt is ".zip" or ".tar.gz".
	ArchiveExt string
	// AppBinary is the path inside a macOS app bundle, empty elsewhere.
	AppBinary string
}

var platforms = map[string]Platform{
	"linux":   {OS: "linux", Release: "TDW_Linux", Suffix: ".x86_64", ArchiveExt: ".tar.gz"},
	"darwin":  {OS: "darwin", Release: "TDW_OSX", Suffix: ".app", ArchiveExt: ".tar.gz", AppBinary: "Contents/MacOS/TDW"},
	"windows": {OS: "windows", Release: "TDW_Windows", Suffix: ".exe", ArchiveExt: ".zip"},
}

// PlatformFor returns the platform entry for a GOOS value.
func PlatformFor(goos string) (Platform, error) {
	p, ok := platforms[goos]
	if !ok {
		return Platform{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
	return p, nil
}

// CurrentPlatform returns the platform this binary runs on.
func CurrentPlatform() (Platform, error) {
	return PlatformFor(runtime.GOOS)
}

// ReleaseURL returns the download URL of a build version. An empty base uses
// DefaultReleaseBaseURL.
func (p Platform) ReleaseURL(base, version string) string {
	if base == "" {
		base = DefaultReleaseBaseURL
	}
	v := "v" + strings.TrimPrefix(version, "v")
	return fmt.Sprintf("%s/%s/%s%s", strings.TrimRight(base, "/"), v, p.Release, p.ArchiveExt)
}

// ExecutablePath returns the binary to launch under root.
func (p Platform) ExecutablePath(root string) string {
	exe := filepath.Join(root, "TDW", "TDW"+p.Suffix)
	if p.AppBinary != "" {
		exe = filepath.Join(exe, filepath.FromSlash(p.AppBinary))
	}
	return exe
}

// VersionFile returns the path of the installed build's version file.
func VersionFile(root string) string {
	return filepath.Join(root, "TDW", "version.txt")
}

// DefaultRoot returns ~/tdw_build.
func DefaultRoot() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, "tdw_build"), nil
}

// CompareVersions compares two versions, with or without a leading v.
// It returns -1, 0 or 1.
func CompareVersions(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", a, err)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}
