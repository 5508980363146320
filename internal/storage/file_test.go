package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileRecorder_AppendAndLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "log.jsonl")
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}

	ev1 := Event{Timestamp: time.Unix(1, 0).UTC(), ConversationID: "a", Persona: "liora", UserMessage: "hi", AssistantResponse: "hello", Effectiveness: 0.5}
	ev2 := Event{Timestamp: time.Unix(2, 0).UTC(), ConversationID: "b", Persona: "poet", UserMessage: "tell me about Mars", AssistantResponse: "red", AugmentationTopic: "Mars", Effectiveness: 0.7}
	if err := rec.AppendInteraction(ev1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := rec.AppendInteraction(ev2); err != nil {
		t.Fatalf("append2: %v", err)
	}

	events, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2, got %d", len(events))
	}
	if events[0].ConversationID != "a" || events[1].ConversationID != "b" {
		t.Fatalf("order mismatch: %+v", events)
	}
	if events[0].Augmented() || !events[1].Augmented() {
		t.Fatalf("augmented flags wrong: %+v", events)
	}
}

func TestFileRecorder_SkipsBrokenLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log.jsonl")
	content := `{"conversation_id":"ok","user_message":"x"}` + "\n" + "not json\n\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	events, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 1 || events[0].ConversationID != "ok" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	p := filepath.Join(t.TempDir(), "state.json")
	if err := WriteFileAtomic(p, []byte("one")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFileAtomic(p, []byte("two")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err := os.ReadFile(p)
	if err != nil || string(got) != "two" {
		t.Fatalf("got %q err %v", got, err)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
