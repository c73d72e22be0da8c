package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand adds `version` to root and wires root's --version flag to the same text.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.Version = Version
	root.SetVersionTemplate(Full() + "\n")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the tool and bundler versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	})
}
