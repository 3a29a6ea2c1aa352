package tomlkeys

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestTableAndDottedKeysAreEquivalent(t *testing.T) {
	cases := []string{
		"[pty]\nready-threshold = 64\n",
		"pty.ready-threshold = 64\n",
	}
	for _, input := range cases {
		store, err := Decode([]byte(input))
		if err != nil {
			t.Fatalf("decode toml: %v", err)
		}
		value, ok := store.GetInt("pty.ready-threshold")
		if !ok || value != 64 {
			t.Fatalf("expected 64, got %d (ok=%v)", value, ok)
		}
	}
}

func TestNormalizationHandlesUnderscoresAndCase(t *testing.T) {
	store, err := Decode([]byte("[Watch]\nFILE_DEBOUNCE_MS = 250\n"))
	if err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	value, ok := store.GetMillis("watch.file-debounce-ms")
	if !ok || value != 250*time.Millisecond {
		t.Fatalf("expected normalized key to resolve to 250ms, got %v (ok=%v)", value, ok)
	}
}

func TestTypedGetters(t *testing.T) {
	input := "compress = true\nmax-backups = 7\nlevel = \" debug \"\nratio = 2.0\n"
	store, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	if flag, ok := store.GetBool("compress"); !ok || !flag {
		t.Fatalf("expected compress true")
	}
	if count, ok := store.GetInt("max-backups"); !ok || count != 7 {
		t.Fatalf("expected max-backups 7, got %d", count)
	}
	if ratio, ok := store.GetInt("ratio"); !ok || ratio != 2 {
		t.Fatalf("expected whole float to read as 2, got %d", ratio)
	}
	if level, ok := store.GetString("level"); !ok || level != "debug" {
		t.Fatalf("expected level debug, got %q", level)
	}
	if _, ok := store.GetString("max-backups"); ok {
		t.Fatalf("expected max-backups to not be a string")
	}
}

func TestOverlayAndWith(t *testing.T) {
	base, err := Decode([]byte("[log]\nlevel = \"info\"\ndir = \"/var/log\"\n"))
	if err != nil {
		t.Fatalf("decode base: %v", err)
	}
	top, err := Decode([]byte("[log]\nlevel = \"debug\"\n"))
	if err != nil {
		t.Fatalf("decode top: %v", err)
	}

	merged := base.Overlay(top).With("PTY.Shell", "/bin/zsh")
	if level, _ := merged.GetString("log.level"); level != "debug" {
		t.Fatalf("expected overlay to win, got %q", level)
	}
	if dir, _ := merged.GetString("log.dir"); dir != "/var/log" {
		t.Fatalf("expected base value to survive, got %q", dir)
	}
	if shell, _ := merged.GetString("pty.shell"); shell != "/bin/zsh" {
		t.Fatalf("expected override, got %q", shell)
	}
	if level, _ := base.GetString("log.level"); level != "info" {
		t.Fatalf("expected base to be unchanged, got %q", level)
	}
}

func TestUnknownKeys(t *testing.T) {
	known, _ := Decode([]byte("[pty]\nshell = \"\"\nterm = \"xterm\"\n"))
	user, _ := Decode([]byte("[pty]\nshel = \"/bin/sh\"\nterm = \"vt100\"\n[extra]\nkey = 1\n"))

	if got := user.Unknown(known); !reflect.DeepEqual(got, []string{"extra.key", "pty.shel"}) {
		t.Fatalf("unexpected unknown keys %v", got)
	}
}

func TestDecodeReportsLine(t *testing.T) {
	_, err := Decode([]byte("[pty]\nshell = 'a' 'b'\n"))
	if err == nil || !strings.HasPrefix(err.Error(), "line ") {
		t.Fatalf("expected a line-numbered error, got %v", err)
	}
}

func TestFlatReturnsCopy(t *testing.T) {
	store, err := Decode([]byte("[log]\nlevel = \"info\"\n"))
	if err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	flat := store.Flat()
	flat["log.level"] = "error"
	if level, _ := store.GetString("log.level"); level != "info" {
		t.Fatalf("expected store to be unaffected, got %q", level)
	}
}
