package version

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestFull names the tool version, the bundler and the toolchain.
func TestFull(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Bundler())
	require.Contains(t, Full(), "servelat-build "+Version)
	require.Contains(t, Full(), "esbuild "+Bundler())
	require.Contains(t, Full(), runtime.Version())
	require.Contains(t, Full(), Commit)
}

// TestVersionCommand checks the subcommand and the --version flag print the same line.
func TestVersionCommand(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"version"}, {"--version"}} {
		root := &cobra.Command{Use: "servelat-build", Run: func(*cobra.Command, []string) {}}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer

		root.SetOut(&out)
		root.SetArgs(args)

		require.NoError(t, root.Execute(), args)
		require.Equal(t, Full()+"\n", out.String(), args)
	}
}
