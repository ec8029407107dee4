package inspect

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eegprep/eegprep/internal/conf"
	"github.com/eegprep/eegprep/internal/datasets"
	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/logger"
	"github.com/eegprep/eegprep/internal/store"
)

type options struct {
	verify bool // decode the payload, not only the header
	binary bool // show the two-class remapping
}

// Command creates a new cobra.Command that describes stored epoch files.
func Command(ctx *conf.Context) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "inspect [file.epo...]",
		Short: "Describe stored epoch collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := ctx.Log("inspect")
			var failed int
			for _, path := range args {
				if err := describe(cmd.OutOrStdout(), path, opts); err != nil {
					log.Error("cannot inspect artifact", logger.String("path", path), logger.Error(err))
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d artifacts could not be read", failed, len(args))
			}
			return nil
		},
	}

	setupFlags(cmd, &opts)

	return cmd
}

// setupFlags defines flags specific to the inspect command.
func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Decode the full payload and check it against the header")
	cmd.Flags().BoolVar(&opts.binary, "binary", false, "Show two-class target counts where the dataset defines them")
}

func describe(w io.Writer, path string, opts options) error {
	h, err := store.ReadHeader(path)
	if err != nil {
		return err
	}

	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}

	fmt.Fprintf(w, "%s (%s)\n", path, humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "  dataset:     %s\n", h.Dataset)
	fmt.Fprintf(w, "  subject:     %s\n", h.Subject)
	fmt.Fprintf(w, "  artifact:    %s\n", h.Artifact)
	fmt.Fprintf(w, "  shape:       %s\n", formatShape(h.Shape))
	fmt.Fprintf(w, "  sample rate: %g Hz\n", h.SampleRate)
	fmt.Fprintf(w, "  window:      %s\n", h.Window)
	fmt.Fprintf(w, "  channels:    %s\n", strings.Join(h.Channels, " "))
	if h.Normalized {
		fmt.Fprintf(w, "  normalized:  yes, noise %g\n", h.Noise)
	} else {
		fmt.Fprintf(w, "  normalized:  no\n")
	}

	counts := labelCounts(h)
	fmt.Fprintf(w, "  labels:\n")
	for _, label := range slices.Sorted(maps.Keys(h.EventID)) {
		fmt.Fprintf(w, "    %-12s id %d  %s trials\n", label, h.EventID[label], humanize.Comma(int64(counts[h.EventID[label]])))
	}

	if opts.binary {
		if err := describeBinary(w, h); err != nil {
			return err
		}
	}

	if opts.verify {
		c, err := store.Read(path)
		if err != nil {
			return err
		}
		trials, channels, samples := c.Shape()
		fmt.Fprintf(w, "  payload:     ok, %d x %d x %d values\n", trials, channels, samples)
	}
	return nil
}

func describeBinary(w io.Writer, h *store.Header) error {
	spec, err := datasets.Lookup(h.Dataset)
	if err != nil {
		return err
	}
	if spec.BinaryZero == "" {
		fmt.Fprintf(w, "  binary:      not defined for %s\n", spec.Name)
		return nil
	}

	c := headerCollection(h)
	targets, err := c.BinaryTargets(spec.BinaryZero)
	if err != nil {
		return err
	}
	var zeros int
	for _, t := range targets {
		if t == 0 {
			zeros++
		}
	}
	fmt.Fprintf(w, "  binary:      0 = %s (%d), 1 = other (%d)\n", spec.BinaryZero, zeros, len(targets)-zeros)
	return nil
}

// headerCollection carries the header's labels without the payload.
func headerCollection(h *store.Header) *epochs.Collection {
	c := epochs.NewCollection(h.Dataset, h.Subject, h.Artifact, h.SampleRate, h.Window, h.Channels)
	for label, id := range h.EventID {
		c.EventID[epochs.Label(label)] = id
	}
	c.Labels = h.Labels
	return c
}

func labelCounts(h *store.Header) map[int]int {
	counts := make(map[int]int, len(h.EventID))
	for _, id := range h.Labels {
		counts[id]++
	}
	return counts
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprint(n)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
