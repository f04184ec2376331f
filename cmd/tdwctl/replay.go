package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/tdwctl/internal/output"
	"github.com/standardbeagle/tdwctl/internal/recorder"
)

var replayCmd = &cobra.Command{
	Use:   "replay <archive.zip>",
	Short: "List the responses recorded in a frame archive",
	Long: `Print the frame number and frame tags of every response recorded with
tdwctl step --record. With --decode, also decode every frame and list the
ones of unknown kind.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("decode", false, "Decode every frame and report unreadable ones")
}

func runReplay(cmd *cobra.Command, args []string) error {
	decode, _ := cmd.Flags().GetBool("decode")

	a, err := recorder.OpenArchive(args[0])
	if err != nil {
		return err
	}
	defer a.Close()
	return replay(a, decode, cmd.OutOrStdout())
}

func replay(a *recorder.Archive, decode bool, out io.Writer) error {
	err := a.Each(func(i int, resp output.Response) error {
		n, ok := resp.FrameNumber()
		if !ok {
			return fmt.Errorf("response %d has no frame number", i)
		}
		fmt.Fprintf(out, "%d\tframe=%d\t%s\n", i, n, strings.Join(resp.Tags(), ","))
		if !decode {
			return nil
		}
		err := resp.Each(func(d output.Data) error {
			if u, ok := d.(output.Unknown); ok {
				fmt.Fprintf(out, "\t%s: unknown, %d bytes\n", u.Tag, len(u.Frame))
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d responses\n", a.Len())
	return nil
}
