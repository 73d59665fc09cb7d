package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConversation_Append(t *testing.T) {
	conv := &Conversation{ID: "test"}
	conv.Append("user", "list my ec2 instances", "")
	conv.Append("gate", "all validation checks passed", "proceed")

	history := conv.History(10)
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Role != "user" {
		t.Errorf("expected role=user, got %s", history[0].Role)
	}
	if history[1].Decision != "proceed" {
		t.Errorf("expected decision=proceed, got %s", history[1].Decision)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	mgr := NewManager(t.TempDir())

	conv1 := mgr.GetOrCreate("conv:123")
	conv2 := mgr.GetOrCreate("conv:123")

	if conv1 != conv2 {
		t.Error("expected same conversation instance")
	}
}

func TestManager_SaveRecreatesMissingDir(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir)

	if err := os.RemoveAll(filepath.Join(baseDir, "conversations")); err != nil {
		t.Fatalf("remove conversations dir: %v", err)
	}

	conv := mgr.GetOrCreate("conv-1")
	conv.Append("user", "list my ec2 instances", "")
	if err := mgr.Save(conv); err != nil {
		t.Fatalf("Save should recreate the conversations directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(baseDir, "conversations", "conv-1.jsonl")); err != nil {
		t.Fatalf("expected transcript on disk: %v", err)
	}
}

func TestManager_SaveFailsWithUsefulError(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir)

	// Replace the conversations directory with a file so MkdirAll fails.
	dir := filepath.Join(baseDir, "conversations")
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove conversations dir: %v", err)
	}
	if err := os.WriteFile(dir, []byte("not a directory"), 0644); err != nil {
		t.Fatalf("write blocking file: %v", err)
	}

	conv := mgr.GetOrCreate("conv-1")
	conv.Append("user", "list my ec2 instances", "")
	err := mgr.Save(conv)
	if err == nil {
		t.Fatal("expected Save to fail when the directory cannot be created")
	}
	if !strings.Contains(err.Error(), "conversations directory") {
		t.Fatalf("expected directory creation error, got: %v", err)
	}
}

func TestConversation_SaveAndLoad(t *testing.T) {
	baseDir := t.TempDir()

	mgr1 := NewManager(baseDir)
	conv := mgr1.GetOrCreate("persist-test")
	conv.Append("user", "stop instance i-1 in us-east-1", "")
	conv.Append("gate", "operation requires explicit confirmation", "confirm")
	conv.Append("user", "confirm", "")

	if err := mgr1.Save(conv); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	// A new manager over the same dir must see the same transcript.
	mgr2 := NewManager(baseDir)
	loaded := mgr2.GetOrCreate("persist-test")

	history := loaded.History(0) // 0 means all
	if len(history) != 3 {
		t.Fatalf("expected 3 entries after load, got %d", len(history))
	}

	if history[0].Role != "user" || history[0].Content != "stop instance i-1 in us-east-1" {
		t.Errorf("entry[0]: got role=%s content=%s", history[0].Role, history[0].Content)
	}
	if history[1].Role != "gate" || history[1].Decision != "confirm" {
		t.Errorf("entry[1]: got role=%s decision=%s", history[1].Role, history[1].Decision)
	}
	if history[2].Content != "confirm" {
		t.Errorf("entry[2]: got content=%s", history[2].Content)
	}
}

func TestConversation_EmptyNotSaved(t *testing.T) {
	baseDir := t.TempDir()

	mgr := NewManager(baseDir)
	conv := mgr.GetOrCreate("empty-conversation")

	if err := mgr.Save(conv); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	convDir := filepath.Join(baseDir, "conversations")
	entries, err := os.ReadDir(convDir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() == "empty-conversation.jsonl" {
			t.Fatal("expected no file for empty conversation, but file was created")
		}
	}
}

func TestConversation_HistoryLimit(t *testing.T) {
	conv := &Conversation{ID: "limit"}
	for i := 0; i < 5; i++ {
		conv.Append("user", "query", "")
	}

	if got := len(conv.History(2)); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
	if got := len(conv.History(50)); got != 5 {
		t.Fatalf("expected all 5 entries, got %d", got)
	}
}
