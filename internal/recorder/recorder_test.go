package recorder

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

var (
	_ addon.AddOn        = (*CommandLog)(nil)
	_ addon.BeforeSender = (*CommandLog)(nil)
	_ addon.AddOn        = (*FrameArchive)(nil)
	_ addon.AddOn        = (*ImageCapture)(nil)
)

func respOf(frame uint32, frames ...[]byte) output.Response {
	return append(output.Response(frames), output.EncodeSentinel(frame))
}

func TestCommandLog(t *testing.T) {
	var logBuf, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	l := NewCommandLogWriter(&out, WithCommandLogLogger(logger), WithBuildLogging())

	names := []string{}
	for _, c := range l.InitializationCommands() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"send_log_messages", "set_network_logging"}, names)

	require.NoError(t, l.BeforeSend([]command.Command{command.LoadScene(""), command.DoNothing()}))
	require.NoError(t, l.BeforeSend([]command.Command{command.Terminate()}))
	assert.Equal(t,
		`[{"$type":"create_empty_environment"},{"$type":"do_nothing"}]`+"\n"+`[{"$type":"terminate"}]`+"\n",
		out.String())

	require.NoError(t, l.OnSend(respOf(1,
		output.EncodeLogMessage("missing asset", output.LogWarning, "ObjectManager"),
		output.EncodeKeyboard(nil, nil, nil),
	)))
	assert.Contains(t, logBuf.String(), "level=WARN")
	assert.Contains(t, logBuf.String(), `message="missing asset"`)
	assert.Contains(t, logBuf.String(), "object_type=ObjectManager")
	require.NoError(t, l.Close())
}

func TestNewCommandLog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "commands.jsonl")
	l, err := NewCommandLog(path)
	require.NoError(t, err)
	require.NoError(t, l.BeforeSend([]command.Command{command.DoNothing()}))
	require.NoError(t, l.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[{\"$type\":\"do_nothing\"}]\n", string(b))
}

func TestFrameArchive_RoundTrip(t *testing.T) {
	for _, c := range []Compression{Deflate, Zstd, Store} {
		t.Run(string(c), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.zip")
			a, err := NewFrameArchive(path, c)
			require.NoError(t, err)

			recorded := []output.Response{
				respOf(0, output.EncodeVersion("2020.3.48f1", "1.12.0", true)),
				respOf(1, output.EncodeKeyboard([]string{"W"}, nil, nil), output.EncodeLogMessage("hi", output.LogMessageLevel, "")),
				respOf(2),
			}
			for _, r := range recorded {
				require.NoError(t, a.OnSend(r))
			}
			assert.Equal(t, 3, a.Len())
			require.NoError(t, a.Close())

			ar, err := OpenArchive(path)
			require.NoError(t, err)
			defer ar.Close()
			require.Equal(t, 3, ar.Len())

			var got []output.Response
			require.NoError(t, ar.Each(func(i int, resp output.Response) error {
				n, ok := resp.FrameNumber()
				assert.True(t, ok)
				assert.Equal(t, uint64(i), n)
				got = append(got, resp)
				return nil
			}))
			for i := range recorded {
				assert.Equal(t, recorded[i].Tags(), got[i].Tags())
				assert.Equal(t, output.Join(recorded[i]), output.Join(got[i]))
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", Deflate, false},
		{"ZSTD", Zstd, false},
		{"store", Store, false},
		{"brotli", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownCompression)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestImageCapture(t *testing.T) {
	dir := t.TempDir()
	c := NewImageCapture(dir, []string{"a"}, WithPassMasks("_img", "_id"))

	init := c.InitializationCommands()
	require.Len(t, init, 2)
	assert.Equal(t, `{"$type":"set_pass_masks","avatar_id":"a","pass_masks":["_img","_id"]}`, init[0].String())
	assert.Equal(t, `{"$type":"send_images","frequency":"always","ids":["a"]}`, init[1].String())

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	require.NoError(t, c.OnSend(respOf(12, output.EncodeImages("a", "SensorContainer", 4, 4, []output.ImagePass{
		{Mask: "_img", Image: jpg},
		{Mask: "_id", Image: png},
	}))))

	saved := c.Saved()
	require.Len(t, saved, 2)
	assert.Equal(t, filepath.Join(dir, "a", "img_0012.jpg"), saved[0])
	assert.Equal(t, filepath.Join(dir, "a", "id_0012.png"), saved[1])
	b, err := os.ReadFile(saved[1])
	require.NoError(t, err)
	assert.Equal(t, png, b)
}

func TestImageExt_Raw(t *testing.T) {
	assert.Equal(t, "bin", imageExt([]byte(strings.Repeat("\x00", 16))))
}
