package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestParsePorcelain(t *testing.T) {
	output := []byte(" M src/main.go\x00A  new.go\x00?? notes.txt\x00 D gone.go\x00R  after.go\x00before.go\x00UU conflict.go\x00AM staged.go\x00")
	got := parsePorcelain(output)

	want := []FileChange{
		{Path: "src/main.go", Status: StatusModified},
		{Path: "new.go", Status: StatusAdded},
		{Path: "notes.txt", Status: StatusUntracked},
		{Path: "gone.go", Status: StatusDeleted},
		{Path: "after.go", Status: StatusRenamed},
		{Path: "staged.go", Status: StatusAdded},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].Path != want[i].Path || got[i].Status != want[i].Status {
			t.Fatalf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestMergeNumstatSumsStagedAndUnstaged(t *testing.T) {
	stats := map[string][2]int{}
	mergeNumstat(stats, []byte("3\t1\tmain.go\n-\t-\tlogo.png\n"))
	mergeNumstat(stats, []byte("2\t0\tmain.go\n1\t1\tpkg/{old => new}/file.go\n"))

	if stats["main.go"] != [2]int{5, 1} {
		t.Fatalf("unexpected main.go stats %v", stats["main.go"])
	}
	if stats["logo.png"] != [2]int{0, 0} {
		t.Fatalf("expected binary file to have zero counts, got %v", stats["logo.png"])
	}
	if stats["pkg/new/file.go"] != [2]int{1, 1} {
		t.Fatalf("expected rename target stats, got %v", stats)
	}
}

func TestRenamedTarget(t *testing.T) {
	tests := map[string]string{
		"plain.go":          "plain.go",
		"old.go => new.go":  "new.go",
		"a/{b => c}/d.go":   "a/c/d.go",
		"a/{ => sub}/d.go":  "a/sub/d.go",
		"{old => new}/d.go": "new/d.go",
	}
	for input, want := range tests {
		if got := renamedTarget(input); got != want {
			t.Fatalf("renamedTarget(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestChangedFilesInRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	gitCmd := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, output)
		}
	}
	gitCmd("init", "-q")
	if err := os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("one\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gitCmd("add", "tracked.txt")
	gitCmd("commit", "-q", "-m", "init")

	if err := os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fresh.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changes, err := ChangedFiles(context.Background(), dir)
	if err != nil {
		t.Fatalf("changed files: %v", err)
	}
	byPath := map[string]FileChange{}
	for _, change := range changes {
		byPath[change.Path] = change
	}

	tracked, ok := byPath["tracked.txt"]
	if !ok || tracked.Status != StatusModified {
		t.Fatalf("expected tracked.txt modified, got %+v", changes)
	}
	if tracked.Insertions == nil || *tracked.Insertions != 2 || tracked.Deletions == nil || *tracked.Deletions != 0 {
		t.Fatalf("unexpected counts for tracked.txt: %+v", tracked)
	}
	fresh, ok := byPath["fresh.txt"]
	if !ok || fresh.Status != StatusUntracked {
		t.Fatalf("expected fresh.txt untracked, got %+v", changes)
	}
	if fresh.Insertions != nil {
		t.Fatalf("expected no counts for untracked file")
	}
}

func TestChangedFilesOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	if _, err := ChangedFiles(context.Background(), dir); err == nil {
		t.Fatalf("expected error outside a repository")
	}
}
