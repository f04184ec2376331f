package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// Compression selects how archive entries are stored.
type Compression string

const (
	Deflate Compression = "deflate"
	Zstd    Compression = "zstd"
	Store   Compression = "store"
)

// ErrUnknownCompression is returned by ParseCompression.
var ErrUnknownCompression = errors.New("unknown compression")

// ParseCompression accepts deflate, zstd or store. Empty means deflate.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case "":
		return Deflate, nil
	case Deflate, Zstd, Store:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

func (c Compression) method() uint16 {
	switch c {
	case Zstd:
		return zstd.ZipMethodWinZip
	case Store:
		return zip.Store
	default:
		return zip.Deflate
	}
}

// archiveExt names archive entries.
const archiveExt = ".frames"

// FrameArchive writes every response, sentinel included, as one zip entry
// named by its frame number. Entries use the same count/lengths/frames
// layout as the wire.
type FrameArchive struct {
	addon.Base

	f      *os.File
	zw     *zip.Writer
	method uint16
	seq    int
}

// NewFrameArchive creates the archive at path.
func NewFrameArchive(path string, c Compression) (*FrameArchive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	return &FrameArchive{f: f, zw: zw, method: c.method()}, nil
}

// Name implements addon.Named.
func (a *FrameArchive) Name() string { return "frame_archive" }

// InitializationCommands implements addon.AddOn.
func (a *FrameArchive) InitializationCommands() []command.Command { return nil }

// OnSend implements addon.AddOn.
func (a *FrameArchive) OnSend(resp output.Response) error {
	n, ok := resp.FrameNumber()
	if !ok {
		n = uint64(a.seq)
	}
	name := fmt.Sprintf("%06d-%08d%s", a.seq, n, archiveExt)
	a.seq++

	w, err := a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: a.method})
	if err != nil {
		return fmt.Errorf("failed to add archive entry: %w", err)
	}
	if _, err := w.Write(output.Join(resp)); err != nil {
		return fmt.Errorf("failed to write archive entry: %w", err)
	}
	return nil
}

// Len returns the number of entries written.
func (a *FrameArchive) Len() int { return a.seq }

// Close writes the zip directory and closes the file.
func (a *FrameArchive) Close() error {
	if err := a.zw.Close(); err != nil {
		_ = a.f.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return a.f.Close()
}

// Archive reads a recorded session.
type Archive struct {
	rc    *zip.ReadCloser
	files []*zip.File
}

// OpenArchive opens an archive written by FrameArchive.
func OpenArchive(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	a := &Archive{rc: rc}
	for _, f := range rc.File {
		if strings.HasSuffix(f.Name, archiveExt) {
			a.files = append(a.files, f)
		}
	}
	return a, nil
}

// Len returns the number of recorded responses.
func (a *Archive) Len() int { return len(a.files) }

// Response reads the i-th recorded response.
func (a *Archive) Response(i int) (output.Response, error) {
	f := a.files[i]
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer r.Close()
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return output.Split(buf)
}

// Each calls fn with every recorded response in order.
func (a *Archive) Each(fn func(i int, resp output.Response) error) error {
	for i := range a.files {
		resp, err := a.Response(i)
		if err != nil {
			return err
		}
		if err := fn(i, resp); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the archive file.
func (a *Archive) Close() error {
	return a.rc.Close()
}
