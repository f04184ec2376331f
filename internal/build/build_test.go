package build

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
	link string
}

func tarGz(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.link != "" {
			hdr = &tar.Header{Name: e.name, Linkname: e.link, Typeflag: tar.TypeSymlink}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.link == "" {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func zipOf(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func releaseServer(t *testing.T, path string, archive []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func linux(t *testing.T) Platform {
	p, err := PlatformFor("linux")
	require.NoError(t, err)
	return p
}

func TestReleaseURL(t *testing.T) {
	tests := []struct {
		goos    string
		version string
		want    string
	}{
		{"linux", "1.12.0", DefaultReleaseBaseURL + "/v1.12.0/TDW_Linux.tar.gz"},
		{"darwin", "v1.12.0", DefaultReleaseBaseURL + "/v1.12.0/TDW_OSX.tar.gz"},
		{"windows", "1.12.0", DefaultReleaseBaseURL + "/v1.12.0/TDW_Windows.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			p, err := PlatformFor(tt.goos)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.ReleaseURL("", tt.version))
		})
	}

	_, err := PlatformFor("plan9")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestExecutablePath(t *testing.T) {
	mac, err := PlatformFor("darwin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("r", "TDW", "TDW.app", "Contents", "MacOS", "TDW"), mac.ExecutablePath("r"))
	assert.Equal(t, filepath.Join("r", "TDW", "TDW.x86_64"), linux(t).ExecutablePath("r"))
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.12.0", "1.12.0", 0},
		{"v1.12.0", "1.12.0", 0},
		{"1.11.23", "1.12.0", -1},
		{"1.12.1", "1.12.0", 1},
	}
	for _, tt := range tests {
		got, err := CompareVersions(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}
	_, err := CompareVersions("latest", "1.0.0")
	assert.Error(t, err)
}

func TestInstaller_EnsureTarGz(t *testing.T) {
	archive := tarGz(t,
		entry{name: "TDW/TDW.x86_64", body: "#!/bin/sh\n"},
		entry{name: "TDW/TDW_Data/data.unity3d", body: "assets"},
		entry{name: "TDW/version.txt", body: "1.12.0\n"},
	)
	srv, hits := releaseServer(t, "/v1.12.0/TDW_Linux.tar.gz", archive)
	root := filepath.Join(t.TempDir(), "tdw_build")

	var progressed int64
	inst, err := NewInstaller(WithRoot(root), WithBaseURL(srv.URL), WithPlatform(linux(t)),
		WithProgress(func(done, total int64) { progressed = done }))
	require.NoError(t, err)

	exe, err := inst.Ensure(context.Background(), "1.12.0")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "TDW", "TDW.x86_64"), exe)
	assert.Equal(t, int64(len(archive)), progressed)

	st, err := os.Stat(exe)
	require.NoError(t, err)
	assert.NotZero(t, st.Mode().Perm()&0o100, "executable bit")

	v, err := inst.InstalledVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.12.0", v)

	// Already installed.
	_, err = inst.Ensure(context.Background(), "v1.12.0")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestInstaller_EnsureReplacesOldVersion(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "TDW"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "TDW", "TDW.x86_64"), nil, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "TDW", "stale"), nil, 0o644))
	require.NoError(t, os.WriteFile(VersionFile(root), []byte("1.11.0"), 0o644))

	// The archive has no version file; the installer writes one.
	srv, hits := releaseServer(t, "/v1.12.0/TDW_Linux.tar.gz", tarGz(t, entry{name: "TDW/TDW.x86_64", body: "bin"}))
	inst, err := NewInstaller(WithRoot(root), WithBaseURL(srv.URL), WithPlatform(linux(t)))
	require.NoError(t, err)

	_, err = inst.Ensure(context.Background(), "1.12.0")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.NoFileExists(t, filepath.Join(root, "TDW", "stale"))

	v, err := inst.InstalledVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.12.0", v)
}

func TestInstaller_Zip(t *testing.T) {
	win, err := PlatformFor("windows")
	require.NoError(t, err)
	srv, _ := releaseServer(t, "/v1.12.0/TDW_Windows.zip", zipOf(t,
		entry{name: "TDW/TDW.exe", body: "MZ"},
		entry{name: "TDW/version.txt", body: "1.12.0"},
	))

	root := t.TempDir()
	inst, err := NewInstaller(WithRoot(root), WithBaseURL(srv.URL), WithPlatform(win))
	require.NoError(t, err)
	require.NoError(t, inst.Download(context.Background(), "1.12.0"))

	b, err := os.ReadFile(filepath.Join(root, "TDW", "TDW.exe"))
	require.NoError(t, err)
	assert.Equal(t, "MZ", string(b))
}

func TestInstaller_Darwin(t *testing.T) {
	mac, err := PlatformFor("darwin")
	require.NoError(t, err)
	srv, _ := releaseServer(t, "/v1.12.0/TDW_OSX.tar.gz", tarGz(t,
		entry{name: "TDW/TDW.app/Contents/MacOS/TDW", body: "macho"},
		entry{name: "TDW/TDW.app/Contents/Frameworks/Current", link: "A"},
	))

	root := t.TempDir()
	inst, err := NewInstaller(WithRoot(root), WithBaseURL(srv.URL), WithPlatform(mac))
	require.NoError(t, err)
	var cleared string
	inst.unquarantine = func(_ context.Context, dir string) error {
		cleared = dir
		return nil
	}

	require.NoError(t, inst.Download(context.Background(), "1.12.0"))
	assert.Equal(t, filepath.Join(root, "TDW"), cleared)
	assert.FileExists(t, inst.Executable())
}

func TestInstaller_NotFound(t *testing.T) {
	srv, _ := releaseServer(t, "/nothing", nil)
	inst, err := NewInstaller(WithRoot(t.TempDir()), WithBaseURL(srv.URL), WithPlatform(linux(t)))
	require.NoError(t, err)

	err = inst.Download(context.Background(), "9.9.9")
	assert.ErrorIs(t, err, ErrReleaseNotFound)
}

func TestExtract_RejectsTraversal(t *testing.T) {
	tests := []struct {
		name    string
		archive []byte
	}{
		{"tar dot-dot", tarGz(t, entry{name: "../evil", body: "x"})},
		{"tar symlink out", tarGz(t, entry{name: "TDW/link", link: "../../etc/passwd"})},
		{"zip dot-dot", zipOf(t, entry{name: "../../evil", body: "x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "archive")
			require.NoError(t, os.WriteFile(path, tt.archive, 0o644))
			dst := filepath.Join(dir, "out")
			err := extractFile(path, dst)
			assert.ErrorIs(t, err, ErrUnsafePath)
			assert.NoFileExists(t, filepath.Join(dir, "evil"))
		})
	}
}

func TestExtract_UnknownArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not an archive"), 0o644))
	assert.ErrorIs(t, extractFile(path, t.TempDir()), ErrUnknownArchive)
}
