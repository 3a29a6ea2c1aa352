package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"deckhand/internal/cli"
	"deckhand/internal/terminal"
)

const (
	envConfigPath = "DECKHAND_CONFIG"
	envShell      = "DECKHAND_SHELL"
	envKillMode   = "DECKHAND_KILL_MODE"
)

type Config struct {
	SettingsPath string
	Shell        string
	Dir          string
	Owner        string
	Command      string
	// KillMode, when set, is sent to the session before the shutdown cascade
	// when deckhand itself is interrupted.
	KillMode    *terminal.KillMode
	Watch       bool
	WatchConfig bool
	ShowVersion bool
	Sources     map[string]string
}

const (
	sourceDefault = "default"
	sourceEnv     = "env"
	sourceFlag    = "flag"
)

// loadConfig resolves the CLI configuration. Flags win over environment
// variables, which win over defaults.
func loadConfig(args []string, getenv func(string) string, usageOut io.Writer) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	fs := flag.NewFlagSet("deckhand", flag.ContinueOnError)
	settingsPath := fs.String("config", "", "Settings file (TOML)")
	shell := fs.String("shell", "", "Shell used for the login shell and shell commands")
	dir := fs.String("dir", "", "Working directory of the session")
	owner := fs.String("owner", "", "Worktree id reported in session events")
	watch := fs.Bool("watch", false, "Watch the working directory for file and git state changes")
	killMode := fs.String("kill-mode", "", "Stop the session with interrupt, terminate or force-kill when deckhand is interrupted")
	watchConfig := fs.Bool("watch-config", false, "Watch deckhand config files")
	helpVersion := cli.AddHelpVersionFlags(fs)
	fs.Usage = func() {
		printHelp(fs.Output())
	}

	set, err := cli.Parse(fs, helpVersion, args, usageOut)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Watch:       *watch,
		WatchConfig: *watchConfig,
		ShowVersion: helpVersion.Version,
		Command:     commandLine(fs.Args()),
		Sources:     make(map[string]string),
	}
	cfg.SettingsPath, cfg.Sources["config"] = resolveString(set["config"], *settingsPath, getenv(envConfigPath))
	cfg.Shell, cfg.Sources["shell"] = resolveString(set["shell"], *shell, getenv(envShell))
	var mode string
	mode, cfg.Sources["kill-mode"] = resolveString(set["kill-mode"], *killMode, getenv(envKillMode))
	if mode != "" {
		parsed, err := terminal.ParseKillMode(mode)
		if err != nil {
			return Config{}, err
		}
		cfg.KillMode = &parsed
	}

	cfg.Dir = strings.TrimSpace(*dir)
	if cfg.Dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.Dir = cwd
	}
	if absolute, err := filepath.Abs(cfg.Dir); err == nil {
		cfg.Dir = absolute
	}
	cfg.Owner = strings.TrimSpace(*owner)
	if cfg.Owner == "" {
		cfg.Owner = filepath.Base(cfg.Dir)
	}
	return cfg, nil
}

// commandLine turns positional args into one command string. A single arg
// is taken as a command line as typed; several args are an argv, so each one
// is quoted to survive re-tokenizing.
func commandLine(args []string) string {
	if len(args) == 1 {
		return strings.TrimSpace(args[0])
	}
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(arg string) string {
	if arg != "" && strings.IndexFunc(arg, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r))
	}) < 0 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func resolveString(flagSet bool, flagValue, envValue string) (string, string) {
	if flagSet {
		return strings.TrimSpace(flagValue), sourceFlag
	}
	if value := strings.TrimSpace(envValue); value != "" {
		return value, sourceEnv
	}
	return "", sourceDefault
}

// settingsOverrides maps CLI values onto settings keys.
func settingsOverrides(cfg Config) map[string]any {
	overrides := make(map[string]any)
	if cfg.Shell != "" {
		overrides["pty.shell"] = cfg.Shell
	}
	return overrides
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: deckhand [options] [--] [command...]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Runs a command (or the login shell) on a pseudo-terminal and streams")
	fmt.Fprintln(out, "session, watcher and shutdown events to stdout as JSON lines.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	fmt.Fprintf(out, "  --config PATH     Settings file (env: %s)\n", envConfigPath)
	fmt.Fprintf(out, "  --shell PATH      Shell override (env: %s)\n", envShell)
	fmt.Fprintln(out, "  --dir PATH        Working directory (default: current directory)")
	fmt.Fprintln(out, "  --owner ID        Worktree id for events (default: directory name)")
	fmt.Fprintf(out, "  --kill-mode MODE  interrupt, terminate or force-kill sent to the session on shutdown (env: %s)\n", envKillMode)
	fmt.Fprintln(out, "  --watch           Watch files, merges and rebases in the working directory")
	fmt.Fprintln(out, "  --watch-config    Watch deckhand config files")
	fmt.Fprintln(out, "  -h, --help        Show help")
	fmt.Fprintln(out, "  -v, --version     Print version and exit")
}
