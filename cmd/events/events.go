package events

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/eegprep/eegprep/internal/conf"
	"github.com/eegprep/eegprep/internal/datasets"
	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/logger"
	"github.com/eegprep/eegprep/internal/recording"
)

// Command creates a new cobra.Command that prints a recording's event table.
func Command(ctx *conf.Context) *cobra.Command {
	var dataset string

	cmd := &cobra.Command{
		Use:   "events [recording]",
		Short: "Show the event code table of a recording",
		Long: "Print every annotation code of a GDF or EDF+ recording with its table id,\n" +
			"occurrence count and, with --dataset, the label the dataset assigns it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec *datasets.Spec
			if dataset != "" {
				var err error
				if spec, err = datasets.Lookup(dataset); err != nil {
					return err
				}
			}
			return show(cmd.OutOrStdout(), args[0], spec, ctx.Log("events"))
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Resolve labels with this dataset's rules")

	return cmd
}

func show(w io.Writer, path string, spec *datasets.Spec, log logger.Logger) error {
	opts := recording.ReadOptions{}
	if spec != nil {
		opts.Format = spec.Format
		opts.EOG = spec.EOG
	}

	rec, err := recording.Read(path, opts)
	if err != nil {
		return err
	}
	table, err := epochs.NewEventTable(rec.Annotations)
	if err != nil {
		return err
	}

	labels := epochs.NewLabelMap(nil)
	if spec != nil {
		if labels, err = spec.Labels.Resolve(table, log); err != nil {
			return err
		}
	}

	counts := make(map[string]int)
	for _, a := range rec.Annotations {
		counts[a.Code]++
	}

	fmt.Fprintf(w, "%s: %d channels, %d samples at %g Hz\n", path, len(rec.Channels), rec.Samples(), rec.SampleRate)
	fmt.Fprintf(w, "%-8s %4s %7s  %s\n", "CODE", "ID", "COUNT", "LABEL")
	for _, code := range table.Codes() {
		id, _ := table.ID(code)
		label := "-"
		if l, ok := labels.Label(id); ok {
			label = string(l)
		}
		fmt.Fprintf(w, "%-8s %4d %7d  %s\n", code, id, counts[code], label)
	}
	return nil
}
