package terminal

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LoginShell is the command sentinel that starts the user's login shell.
const LoginShell = "shell"

const loginPathTimeout = 5 * time.Second

func DefaultShell() string {
	return defaultShellFor(runtime.GOOS, os.Getenv)
}

// defaultShellFor returns $SHELL, falling back to /bin/sh. On Windows the
// interpreter named by ComSpec is used instead.
func defaultShellFor(goos string, getenv func(string) string) string {
	keys, fallback := []string{"SHELL"}, "/bin/sh"
	if goos == "windows" {
		keys, fallback = []string{"ComSpec", "COMSPEC"}, "cmd.exe"
	}
	for _, key := range keys {
		if shell := strings.TrimSpace(getenv(key)); shell != "" {
			return shell
		}
	}
	return fallback
}

// ShellResolver discovers the user's shell and the PATH their login shell
// exports. Discovery runs once; later calls return the memoized values.
type ShellResolver struct {
	once  sync.Once
	shell string
	path  string
	query func(shell string) (string, error)
}

// NewShellResolver returns a resolver for shell, or DefaultShell when empty.
func NewShellResolver(shell string) *ShellResolver {
	if strings.TrimSpace(shell) == "" {
		shell = DefaultShell()
	}
	return &ShellResolver{shell: shell, query: queryLoginPath}
}

// StaticShellResolver skips discovery and always reports shell and path.
func StaticShellResolver(shell, path string) *ShellResolver {
	resolver := &ShellResolver{shell: shell, path: path}
	resolver.once.Do(func() {})
	return resolver
}

func (r *ShellResolver) Shell() string {
	return r.shell
}

// LoginPath returns PATH as seen by a login shell, falling back to the
// current process PATH when the query fails.
func (r *ShellResolver) LoginPath() string {
	r.once.Do(func() {
		if r.query != nil {
			if path, err := r.query(r.shell); err == nil && path != "" {
				r.path = path
				return
			}
		}
		r.path = os.Getenv("PATH")
	})
	return r.path
}

// LookPath finds an executable the way the login shell would. Names with a
// path separator are checked directly.
func (r *ShellResolver) LookPath(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if isExecutableFile(name) {
			return name, true
		}
		return "", false
	}
	for _, dir := range filepath.SplitList(r.LoginPath()) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutableFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

func queryLoginPath(shell string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loginPathTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, shell, "-l", "-c", "printenv PATH").Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	// Login scripts may print banners; PATH is the last line.
	return strings.TrimSpace(lines[len(lines)-1]), nil
}
