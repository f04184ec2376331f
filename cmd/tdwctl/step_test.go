package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
	"github.com/standardbeagle/tdwctl/internal/recorder"
)

// fakeBuild answers with a keyboard frame from frame 3 on.
type fakeBuild struct {
	frame   uint32
	batches [][]command.Command
}

func (f *fakeBuild) Communicate(_ context.Context, cmds ...command.Command) (output.Response, error) {
	f.batches = append(f.batches, cmds)
	f.frame++
	resp := output.Response{output.EncodeTransforms(nil)}
	if f.frame >= 3 {
		resp = append(resp, output.EncodeKeyboard([]string{"Space"}, nil, nil))
	}
	return append(resp, output.EncodeSentinel(f.frame)), nil
}

func TestCompileUntil(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		env     stepEnv
		want    bool
		wantErr bool
	}{
		{name: "frame", src: "Frame >= 10", env: stepEnv{Frame: 10}, want: true},
		{name: "step", src: "Step == 2", env: stepEnv{Step: 1}},
		{name: "tags", src: `"coll" in Tags`, env: stepEnv{Tags: []string{"tran", "coll"}}, want: true},
		{name: "not bool", src: "Frame + 1", wantErr: true},
		{name: "unknown field", src: "Time > 3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := compileUntil(tt.src)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, err := evalUntil(prog, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	prog, err := compileUntil("  ")
	require.NoError(t, err)
	assert.Nil(t, prog)
}

func TestStepLoop_Until(t *testing.T) {
	prog, err := compileUntil(`"keyb" in Tags`)
	require.NoError(t, err)

	b := &fakeBuild{}
	var out bytes.Buffer
	first := []command.Command{command.LoadScene("")}
	require.NoError(t, stepLoop(context.Background(), b, first, 10, prog, &out))

	require.Len(t, b.batches, 3)
	assert.Equal(t, first, b.batches[0])
	assert.Empty(t, b.batches[1])
	assert.Equal(t, "1\tframe=1\ttran\n2\tframe=2\ttran\n3\tframe=3\ttran,keyb\n", out.String())
}

func TestStepLoop_Budget(t *testing.T) {
	prog, err := compileUntil("Frame > 100")
	require.NoError(t, err)

	b := &fakeBuild{}
	err = stepLoop(context.Background(), b, nil, 4, prog, &bytes.Buffer{})
	require.ErrorIs(t, err, errUntilNotMet)
	assert.Len(t, b.batches, 4)

	b = &fakeBuild{}
	require.NoError(t, stepLoop(context.Background(), b, nil, 4, nil, &bytes.Buffer{}))
	assert.Len(t, b.batches, 4)
}

func TestReadCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"$type": "load_scene", "scene_name": "tdw_room"}, {"$type": "do_nothing"}]`), 0o644))

	cmds, err := readCommands(path)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "load_scene", cmds[0].Name())
	assert.Equal(t, "do_nothing", cmds[1].Name())

	cmds, err = readCommands("")
	require.NoError(t, err)
	assert.Nil(t, cmds)

	_, err = readCommands(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	fa, err := recorder.NewFrameArchive(path, recorder.Zstd)
	require.NoError(t, err)
	b := &fakeBuild{}
	for range 3 {
		resp, err := b.Communicate(context.Background())
		require.NoError(t, err)
		require.NoError(t, fa.OnSend(resp))
	}
	unknown := output.Response{[]byte("\x00\x00\x00\x00zzzz"), output.EncodeSentinel(4)}
	require.NoError(t, fa.OnSend(unknown))
	require.NoError(t, fa.Close())

	a, err := recorder.OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	require.NoError(t, replay(a, true, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"0\tframe=1\ttran",
		"1\tframe=2\ttran",
		"2\tframe=3\ttran,keyb",
		"3\tframe=4\tzzzz",
		"\tzzzz: unknown, 8 bytes",
		"4 responses",
	}, lines)
}
