package bundler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nowm/servelat-build/internal/config"
	"github.com/nowm/servelat-build/internal/logger"
)

const (
	entryPlaceholder = "{entry}"
	outPlaceholder   = "{out}"
)

// CommandDeclarations generates declarations by running an external command.
type CommandDeclarations struct {
	// command is the argument vector with {entry} and {out} placeholders.
	command []string
	// dir is the working directory of the command.
	dir string
}

// NewCommandDeclarations creates a generator running command inside dir.
func NewCommandDeclarations(dir string, command []string) *CommandDeclarations {
	return &CommandDeclarations{
		command: append([]string(nil), command...),
		dir:     dir,
	}
}

// Generate runs the command for one entry point and checks that out was written.
func (g *CommandDeclarations) Generate(ctx context.Context, entry, out string) error {
	if err := os.MkdirAll(filepath.Dir(out), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create declaration directory: %w", err)
	}

	args := g.args(entry, out)

	//nolint:gosec // The command comes from the project's own build settings.
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = g.dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if text := strings.TrimSpace(string(output)); text != "" {
			logger.ErrorKV(ctx, "Declaration generator output", "command", args[0], "output", text)
		}

		return fmt.Errorf("%w: %s: %w", ErrDeclarationsFailed, strings.Join(args, " "), err)
	}

	logger.DebugKV(ctx, "Declaration generator finished", "command", args[0], "output", strings.TrimSpace(string(output)))

	if _, err = os.Stat(out); err != nil {
		return fmt.Errorf("%w: %s was not written: %w", ErrDeclarationsFailed, out, err)
	}

	return nil
}

func (g *CommandDeclarations) args(entry, out string) []string {
	args := make([]string, 0, len(g.command))

	for _, arg := range g.command {
		arg = strings.ReplaceAll(arg, entryPlaceholder, entry)
		arg = strings.ReplaceAll(arg, outPlaceholder, out)
		args = append(args, arg)
	}

	return args
}
