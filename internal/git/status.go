package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// File status kinds reported by ChangedFiles.
const (
	StatusAdded     = "added"
	StatusModified  = "modified"
	StatusDeleted   = "deleted"
	StatusRenamed   = "renamed"
	StatusUntracked = "untracked"
)

// FileChange is one entry of the working tree summary. Insertions and
// Deletions are nil when git reported no line changes for the path.
type FileChange struct {
	Path       string
	Status     string
	Insertions *int
	Deletions  *int
}

// ChangedFiles summarizes staged, unstaged and untracked changes under
// worktreePath. Line counts from the staged and unstaged diffs are summed.
func ChangedFiles(ctx context.Context, worktreePath string) ([]FileChange, error) {
	status, err := run(ctx, worktreePath, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}

	stats := map[string][2]int{}
	// Diff stats are best-effort; a repo without commits has no HEAD to diff.
	if output, err := run(ctx, worktreePath, "diff", "--numstat"); err == nil {
		mergeNumstat(stats, output)
	}
	if output, err := run(ctx, worktreePath, "diff", "--cached", "--numstat"); err == nil {
		mergeNumstat(stats, output)
	}

	entries := parsePorcelain(status)
	for i := range entries {
		counts, ok := stats[entries[i].Path]
		if !ok || (counts[0] == 0 && counts[1] == 0) {
			continue
		}
		insertions, deletions := counts[0], counts[1]
		entries[i].Insertions = &insertions
		entries[i].Deletions = &deletions
	}
	return entries, nil
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	full := append([]string{"--no-optional-locks", "-c", "core.quotepath=false"}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			return nil, fmt.Errorf("git %s: %w", args[0], err)
		}
		return nil, fmt.Errorf("git %s: %w: %s", args[0], err, message)
	}
	return output, nil
}

// parsePorcelain reads `git status --porcelain=v1 -z` output. Renamed and
// copied entries carry their original path as an extra NUL-terminated field.
func parsePorcelain(output []byte) []FileChange {
	fields := strings.Split(string(output), "\x00")
	var entries []FileChange
	for i := 0; i < len(fields); i++ {
		field := fields[i]
		if len(field) < 4 {
			continue
		}
		x, y := field[0], field[1]
		path := field[3:]
		if x == 'R' || x == 'C' {
			i++
		}
		kind := statusKind(x, y)
		if kind == "" {
			continue
		}
		entries = append(entries, FileChange{Path: path, Status: kind})
	}
	return entries
}

func statusKind(x, y byte) string {
	switch {
	case x == 'A':
		return StatusAdded
	case x == '?' && y == '?':
		return StatusUntracked
	case x == 'M' || y == 'M' || x == 'T' || y == 'T':
		return StatusModified
	case x == 'D' || y == 'D':
		return StatusDeleted
	case x == 'R' || y == 'R':
		return StatusRenamed
	default:
		return ""
	}
}

func mergeNumstat(stats map[string][2]int, output []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "\t", 3)
		if len(parts) < 3 {
			continue
		}
		// Binary files report "-" for both counts.
		insertions, _ := strconv.Atoi(parts[0])
		deletions, _ := strconv.Atoi(parts[1])
		path := renamedTarget(parts[2])
		current := stats[path]
		current[0] += insertions
		current[1] += deletions
		stats[path] = current
	}
}

// renamedTarget maps numstat rename notation ("old => new" or
// "dir/{old => new}/file") to the new path.
func renamedTarget(path string) string {
	if !strings.Contains(path, " => ") {
		return path
	}
	start := strings.Index(path, "{")
	end := strings.Index(path, "}")
	if start >= 0 && end > start {
		inner := path[start+1 : end]
		parts := strings.SplitN(inner, " => ", 2)
		joined := path[:start] + parts[len(parts)-1] + path[end+1:]
		return strings.ReplaceAll(joined, "//", "/")
	}
	parts := strings.SplitN(path, " => ", 2)
	return parts[len(parts)-1]
}
