package terminal

import (
	"errors"
	"strings"

	"github.com/google/shlex"
)

var errEmptyCommand = errors.New("empty command")

func splitCommandLine(input string) (string, []string, error) {
	parts, err := shlex.Split(input)
	if err != nil {
		return "", nil, err
	}
	if len(parts) == 0 {
		return "", nil, errEmptyCommand
	}
	if len(parts) == 1 {
		return parts[0], nil, nil
	}
	return parts[0], parts[1:], nil
}

// shellMetachars are the characters that need a shell to mean what the user
// typed: pipes, lists, redirections, globs, expansions and grouping.
const shellMetachars = "|&;<>*?[]$`(){}~!#\\\n"

func needsShell(command string) bool {
	return strings.ContainsAny(command, shellMetachars)
}

// resolveArgv maps a command string to the argv to execute.
//
// The login shell sentinel (or an empty command) starts `shell -l`. With an
// explicit shell override the command always runs through `shell -c`.
// A plain command whose first token is an executable runs directly; anything
// using shell syntax, or naming something that is not an executable on PATH
// (an alias or function), is handed to `shell -c`.
func resolveArgv(command, shellOverride string, shells *ShellResolver) []string {
	command = strings.TrimSpace(command)
	shell := strings.TrimSpace(shellOverride)
	if shell == "" {
		shell = shells.Shell()
	}
	if command == "" || command == LoginShell {
		return []string{shell, "-l"}
	}
	viaShell := []string{shell, "-c", command}
	if strings.TrimSpace(shellOverride) != "" || needsShell(command) {
		return viaShell
	}
	name, args, err := splitCommandLine(command)
	if err != nil {
		return viaShell
	}
	path, ok := shells.LookPath(name)
	if !ok {
		return viaShell
	}
	return append([]string{path}, args...)
}
