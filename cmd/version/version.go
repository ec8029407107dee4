package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eegprep/eegprep/internal/buildinfo"
)

// Command creates a new cobra.Command to print build information.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the eegprep version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Current())
		},
	}
}
