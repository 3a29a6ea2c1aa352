package git

import (
	"os"
	"path/filepath"
	"strings"
)

const gitdirPrefix = "gitdir:"

// ResolveGitDir returns the metadata directory for a working tree, or "" when
// workDir is not one. A linked worktree holds a .git file whose gitdir line
// points at the parent repository's per-worktree directory; relative targets
// resolve against workDir and a target that no longer exists counts as none.
func ResolveGitDir(workDir string) string {
	marker := filepath.Join(workDir, ".git")
	info, err := os.Stat(marker)
	switch {
	case err != nil:
		return ""
	case info.IsDir():
		return marker
	case !info.Mode().IsRegular():
		return ""
	}

	target := readGitdirLine(marker)
	if target == "" {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(workDir, target)
	}
	target = filepath.Clean(target)
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		return ""
	}
	return target
}

func readGitdirLine(path string) string {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(contents), "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), gitdirPrefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// MergeInProgress reports whether gitDir holds a MERGE_HEAD marker.
func MergeInProgress(gitDir string) bool {
	if gitDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(gitDir, "MERGE_HEAD"))
	return err == nil
}

// RebaseInProgress reports whether either rebase state directory exists.
func RebaseInProgress(gitDir string) bool {
	if gitDir == "" {
		return false
	}
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		if info, err := os.Stat(filepath.Join(gitDir, name)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
