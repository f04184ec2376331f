package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// ImageCapture saves every image pass to
// <dir>/<avatar>/<pass>_<frame>.<ext>, with the extension taken from the
// image bytes.
type ImageCapture struct {
	addon.Base

	dir     string
	avatars []string
	masks   []string
	logger  *slog.Logger

	frame uint64
	saved []string
}

// ImageOption configures an ImageCapture.
type ImageOption func(*ImageCapture)

// WithPassMasks sets the passes each avatar renders, such as "_img" or
// "_id". The default is "_img".
func WithPassMasks(masks ...string) ImageOption {
	return func(c *ImageCapture) { c.masks = masks }
}

// WithImageLogger sets the logger.
func WithImageLogger(l *slog.Logger) ImageOption {
	return func(c *ImageCapture) { c.logger = l }
}

// NewImageCapture captures images from avatars into dir.
func NewImageCapture(dir string, avatars []string, opts ...ImageOption) *ImageCapture {
	c := &ImageCapture{
		dir:     dir,
		avatars: avatars,
		masks:   []string{"_img"},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements addon.Named.
func (c *ImageCapture) Name() string { return "image_capture" }

// InitializationCommands implements addon.AddOn.
func (c *ImageCapture) InitializationCommands() []command.Command {
	cmds := make([]command.Command, 0, len(c.avatars)+1)
	for _, a := range c.avatars {
		cmds = append(cmds, command.New("set_pass_masks", command.Params{
			"avatar_id":  a,
			"pass_masks": c.masks,
		}))
	}
	return append(cmds, command.New("send_images", command.Params{
		"frequency": string(command.Always),
		"ids":       c.avatars,
	}))
}

// OnSend implements addon.AddOn.
func (c *ImageCapture) OnSend(resp output.Response) error {
	if n, ok := resp.FrameNumber(); ok {
		c.frame = n
	}
	return resp.Each(func(d output.Data) error {
		img, ok := d.(*output.Images)
		if !ok {
			return nil
		}
		dir := filepath.Join(c.dir, img.AvatarID())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create image directory: %w", err)
		}
		for i := range img.NumPasses() {
			data := img.Image(i)
			pass := strings.TrimPrefix(img.PassMask(i), "_")
			path := filepath.Join(dir, fmt.Sprintf("%s_%04d.%s", pass, c.frame, imageExt(data)))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write image: %w", err)
			}
			c.saved = append(c.saved, path)
			c.logger.Debug("saved image", "path", path, "bytes", len(data))
		}
		return nil
	})
}

// Saved returns every path written so far.
func (c *ImageCapture) Saved() []string {
	return append([]string(nil), c.saved...)
}

// imageExt sniffs the encoded image format. Raw buffers get "bin".
func imageExt(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "bin"
	}
	return kind.Extension
}
