package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/controller"
	"github.com/standardbeagle/tdwctl/internal/output"
	"github.com/standardbeagle/tdwctl/internal/recorder"
)

var errUntilNotMet = errors.New("until condition not met")

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Connect to the build and advance the simulation",
	Long: `Connect to the build (launching it unless configured otherwise), send the
commands from a JSON file on the first step and advance the simulation.

--until takes a boolean expression over Step (1-based), Frame (the build's
frame number) and Tags (frame tags of the response). Stepping stops when it
holds; --frames bounds the number of steps either way.

Examples:
  tdwctl step --commands scene.json
  tdwctl step --commands scene.json --frames 200 --record run.zip
  tdwctl step --frames 500 --until '"coll" in Tags'
  tdwctl step --webgl --until 'Frame >= 100'`,
	Args: cobra.NoArgs,
	RunE: runStep,
}

func init() {
	rootCmd.AddCommand(stepCmd)

	stepCmd.Flags().StringP("commands", "c", "", "JSON file with the commands for the first step")
	stepCmd.Flags().IntP("frames", "n", 1, "Maximum number of steps")
	stepCmd.Flags().String("until", "", "Stop when this expression holds")
	stepCmd.Flags().String("record", "", "Record every response to this zip archive (default: from config)")
	stepCmd.Flags().String("compression", "", "Archive compression: deflate, zstd or store")
	stepCmd.Flags().String("images", "", "Save rendered images of --avatar under this directory")
	stepCmd.Flags().StringSlice("avatar", nil, "Avatar ids whose images are saved")
	stepCmd.Flags().Bool("webgl", false, "Wait for a WebGL build to connect instead of dialing")
}

// stepEnv is the environment of --until expressions.
type stepEnv struct {
	Step  int
	Frame int
	Tags  []string
}

func compileUntil(src string) (*vm.Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	prog, err := expr.Compile(src, expr.Env(stepEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid --until expression: %w", err)
	}
	return prog, nil
}

func evalUntil(prog *vm.Program, env stepEnv) (bool, error) {
	v, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("--until: %w", err)
	}
	b, _ := v.(bool)
	return b, nil
}

func readCommands(path string) ([]command.Command, error) {
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return command.Unmarshal(data)
}

type communicator interface {
	Communicate(ctx context.Context, cmds ...command.Command) (output.Response, error)
}

// stepLoop sends first on the first step and empty batches after it,
// printing one line per response.
func stepLoop(ctx context.Context, c communicator, first []command.Command, frames int, until *vm.Program, out io.Writer) error {
	for step := 1; step <= frames; step++ {
		var cmds []command.Command
		if step == 1 {
			cmds = first
		}
		resp, err := c.Communicate(ctx, cmds...)
		if err != nil {
			return err
		}

		env := stepEnv{Step: step, Tags: resp.Tags()}
		if n, ok := resp.FrameNumber(); ok {
			env.Frame = int(n)
		}
		fmt.Fprintf(out, "%d\tframe=%d\t%s\n", step, env.Frame, strings.Join(env.Tags, ","))

		if until == nil {
			continue
		}
		done, err := evalUntil(until, env)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if until != nil {
		return fmt.Errorf("%w within %d steps", errUntilNotMet, frames)
	}
	return nil
}

func runStep(cmd *cobra.Command, args []string) error {
	cmdPath, _ := cmd.Flags().GetString("commands")
	frames, _ := cmd.Flags().GetInt("frames")
	untilSrc, _ := cmd.Flags().GetString("until")
	recordPath, _ := cmd.Flags().GetString("record")
	compression, _ := cmd.Flags().GetString("compression")
	imageDir, _ := cmd.Flags().GetString("images")
	avatars, _ := cmd.Flags().GetStringSlice("avatar")
	webgl, _ := cmd.Flags().GetBool("webgl")

	if frames < 1 {
		return fmt.Errorf("--frames must be at least 1")
	}
	until, err := compileUntil(untilSrc)
	if err != nil {
		return err
	}
	first, err := readCommands(cmdPath)
	if err != nil {
		return err
	}
	if recordPath == "" {
		recordPath = cfg.Record.Path
	}
	if compression == "" {
		compression = cfg.Record.Compression
	}

	addOns, closers, err := stepAddOns(recordPath, compression, imageDir, avatars)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close recorder", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	opts, err := controllerOptions(webgl)
	if err != nil {
		return err
	}
	opts = append(opts, controller.WithAddOns(addOns...))

	ctx := cmd.Context()
	c, err := controller.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Build.GracefulTimeout+time.Second)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			logger.Warn("failed to close session", "error", err)
		}
	}()

	return stepLoop(ctx, c, first, frames, until, cmd.OutOrStdout())
}

// stepAddOns builds the recorders requested by flags and config. Closers
// are returned even on error so partially opened files are released.
func stepAddOns(recordPath, compression, imageDir string, avatars []string) ([]addon.AddOn, []io.Closer, error) {
	var (
		addOns  []addon.AddOn
		closers []io.Closer
	)
	if cfg.Log.Commands != "" {
		cl, err := recorder.NewCommandLog(cfg.Log.Commands, recorder.WithCommandLogLogger(logger))
		if err != nil {
			return nil, closers, err
		}
		addOns = append(addOns, cl)
		closers = append(closers, cl)
	}
	if recordPath != "" {
		c, err := recorder.ParseCompression(compression)
		if err != nil {
			return nil, closers, err
		}
		fa, err := recorder.NewFrameArchive(recordPath, c)
		if err != nil {
			return nil, closers, err
		}
		addOns = append(addOns, fa)
		closers = append(closers, fa)
	}
	if imageDir != "" {
		if len(avatars) == 0 {
			return nil, closers, fmt.Errorf("--images needs at least one --avatar")
		}
		addOns = append(addOns, recorder.NewImageCapture(imageDir, avatars, recorder.WithImageLogger(logger)))
	}
	return addOns, closers, nil
}
