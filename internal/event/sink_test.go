package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestJSONLinesWritesEnvelopes(t *testing.T) {
	var out bytes.Buffer
	sink := NewJSONLines(&out)

	code := 0
	sink.Emit(NamePtyExit, PtyExit{PtyID: "p1", WorktreeID: "w1", Command: "shell", ExitCode: &code})
	sink.Emit(NameConfigChanged, ConfigChanged{})

	scanner := bufio.NewScanner(&out)
	var lines []map[string]any
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines = append(lines, decoded)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	if lines[0]["event"] != NamePtyExit {
		t.Fatalf("unexpected event name %v", lines[0]["event"])
	}
	payload := lines[0]["payload"].(map[string]any)
	for _, key := range []string{"ptyId", "worktreeId", "command", "exitCode"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected %q in payload %v", key, payload)
		}
	}

	configPayload := lines[1]["payload"].(map[string]any)
	if value, ok := configPayload["projectPath"]; !ok || value != nil {
		t.Fatalf("expected explicit null projectPath, got %v", configPayload)
	}
}

func TestPayloadFieldNames(t *testing.T) {
	name := "node"
	tests := []struct {
		payload any
		keys    []string
	}{
		{PtyOutput{PtyID: "p1", Data: "x"}, []string{"pty_id", "data"}},
		{PtyReady{PtyID: "p1", WorktreeID: "w1"}, []string{"ptyId", "worktreeId"}},
		{FilesChanged{WorktreePath: "/w", Files: []ChangedFile{}}, []string{"worktree_path", "files"}},
		{WorktreeRemoved{WorktreePath: "/w"}, []string{"worktree_path"}},
		{StateComplete{WorktreeID: "w1", WorktreePath: "/w"}, []string{"worktreeId", "worktreePath"}},
		{ConfigChanged{ProjectPath: &name}, []string{"projectPath"}},
		{ShutdownProgress{Phase: PhaseSignaling, Message: "m", ProcessName: name, Pid: 7, Signal: "SIGHUP"}, []string{"phase", "message", "process_name", "pid", "signal"}},
	}
	for _, test := range tests {
		encoded, err := json.Marshal(test.payload)
		if err != nil {
			t.Fatalf("marshal %T: %v", test.payload, err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			t.Fatalf("unmarshal %T: %v", test.payload, err)
		}
		if len(decoded) != len(test.keys) {
			t.Fatalf("%T: expected keys %v, got %s", test.payload, test.keys, encoded)
		}
		for _, key := range test.keys {
			if _, ok := decoded[key]; !ok {
				t.Fatalf("%T: missing %q in %s", test.payload, key, encoded)
			}
		}
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write([]byte) (int, error) {
	w.calls++
	return 0, errors.New("closed pipe")
}

func TestJSONLinesStopsAfterFirstError(t *testing.T) {
	writer := &failingWriter{}
	sink := NewJSONLines(writer)

	sink.Emit(NamePtyOutput, PtyOutput{PtyID: "p", Data: "x"})
	sink.Emit(NamePtyOutput, PtyOutput{PtyID: "p", Data: "y"})

	if sink.Err() == nil {
		t.Fatalf("expected sticky error")
	}
	if writer.calls != 1 {
		t.Fatalf("expected a single write attempt, got %d", writer.calls)
	}
}

func TestMultiFansOut(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()
	sink := Multi(first, nil, second)

	sink.Emit(NameWorktreeRemoved, WorktreeRemoved{WorktreePath: "/tmp/wt"})

	if first.Count(NameWorktreeRemoved) != 1 || second.Count(NameWorktreeRemoved) != 1 {
		t.Fatalf("expected both recorders to receive the event")
	}
}

func TestRecorderWaitFor(t *testing.T) {
	recorder := NewRecorder()
	go func() {
		time.Sleep(20 * time.Millisecond)
		recorder.Emit(NamePtyReady, PtyReady{PtyID: "p"})
	}()

	payloads := recorder.WaitFor(t, NamePtyReady, 1, time.Second)
	ready, ok := payloads[0].(PtyReady)
	if !ok || ready.PtyID != "p" {
		t.Fatalf("unexpected payload %#v", payloads[0])
	}
}
