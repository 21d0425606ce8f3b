package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

var (
	// ErrEmptyCommand is returned when a command has no program to run.
	ErrEmptyCommand = errors.New("empty command")

	// ErrShellOperator is returned when a command uses pipes, redirection or
	// command lists without running through a shell.
	ErrShellOperator = errors.New("shell operator in command; enable shell for this script")
)

// Split tokenizes a rendered command into argv.
//
// Quoting and backslash escapes follow POSIX shell rules. Environment and
// command substitution are not performed; use ShellArgv when a script needs a
// real shell.
func Split(rendered string) ([]string, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false

	argv, err := parser.Parse(rendered)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", rendered, err)
	}
	if parser.Position >= 0 {
		return nil, fmt.Errorf("parse command %q: %w", rendered, ErrShellOperator)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return argv, nil
}

// ShellArgv returns the argv that runs rendered through shell -c.
func ShellArgv(shell, rendered string) ([]string, error) {
	if strings.TrimSpace(rendered) == "" {
		return nil, ErrEmptyCommand
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return []string{shell, "-c", rendered}, nil
}
