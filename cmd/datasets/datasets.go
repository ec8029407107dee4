package datasets

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eegprep/eegprep/internal/datasets"
	"github.com/eegprep/eegprep/internal/epochs"
)

// Command creates a new cobra.Command that lists the known datasets.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List the datasets eegprep can extract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list(cmd.OutOrStdout(), datasets.All())
			return nil
		},
	}
}

func list(w io.Writer, specs []*datasets.Spec) {
	for _, s := range specs {
		fmt.Fprintf(w, "%s\n", s)
		fmt.Fprintf(w, "  format:     %s\n", s.Format)
		fmt.Fprintf(w, "  labels:     %s\n", describeLabels(s.Labels))
		fmt.Fprintf(w, "  duplicates: %s\n", s.Duplicates)
		if len(s.EOG) > 0 {
			fmt.Fprintf(w, "  eog:        %s\n", strings.Join(s.EOG, " "))
		}
		if s.Normalize {
			fmt.Fprintf(w, "  normalize:  yes\n")
		}
		if s.BinaryZero != "" {
			fmt.Fprintf(w, "  binary:     0 = %s\n", s.BinaryZero)
		}
		if len(s.SkipSubjects) > 0 {
			fmt.Fprintf(w, "  excluded:   %v\n", s.SkipSubjects)
		}
	}
}

func describeLabels(p epochs.LabelPolicy) string {
	switch p := p.(type) {
	case epochs.StaticLabels:
		parts := make([]string, 0, len(p))
		for _, code := range slices.Sorted(maps.Keys(p)) {
			parts = append(parts, code+"="+string(p[code]))
		}
		return strings.Join(parts, " ")
	case epochs.ReportedCodeFallback:
		return fmt.Sprintf("%s=%s %s=%s, ids %v if reported, else %v",
			p.Left, epochs.LeftHand, p.Right, epochs.RightHand, p.Expected, p.Fallback)
	default:
		return fmt.Sprintf("%T", p)
	}
}
