package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is a single step in a conversation transcript: the user's query, a
// gate decision, or an execution result.
type Entry struct {
	Role      string    `json:"role"` // user, gate, executor
	Content   string    `json:"content"`
	Decision  string    `json:"decision,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one multi-turn exchange, keyed by conversation id.
type Conversation struct {
	ID      string
	Entries []*Entry
	mu      sync.RWMutex
}

// Append adds an entry to the transcript.
func (c *Conversation) Append(role, content, decision string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries = append(c.Entries, &Entry{
		Role:      role,
		Content:   content,
		Decision:  decision,
		Timestamp: time.Now(),
	})
}

// History returns the last n entries.
func (c *Conversation) History(limit int) []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || limit > len(c.Entries) {
		limit = len(c.Entries)
	}
	start := len(c.Entries) - limit
	if start < 0 {
		start = 0
	}

	result := make([]*Entry, limit)
	copy(result, c.Entries[start:])
	return result
}

// Manager manages conversation transcripts
type Manager struct {
	dir           string
	conversations map[string]*Conversation
	mu            sync.RWMutex
}

// NewManager creates a conversation manager
func NewManager(baseDir string) *Manager {
	dir := filepath.Join(baseDir, "conversations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("failed to create conversations directory", "dir", dir, "error", err)
	}
	return &Manager{
		dir:           dir,
		conversations: make(map[string]*Conversation),
	}
}

// GetOrCreate gets or creates a conversation
func (m *Manager) GetOrCreate(id string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[id]; ok {
		return conv
	}

	conv := &Conversation{ID: id}
	m.loadFromDisk(conv)
	m.conversations[id] = conv
	return conv
}

// Save persists a conversation to disk
func (m *Manager) Save(conv *Conversation) error {
	conv.mu.RLock()
	defer conv.mu.RUnlock()

	if len(conv.Entries) == 0 {
		return nil
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create conversations directory: %w", err)
	}

	path := m.conversationPath(conv.ID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, entry := range conv.Entries {
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) loadFromDisk(conv *Conversation) {
	path := m.conversationPath(conv.ID)
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err == nil {
			conv.Entries = append(conv.Entries, &entry)
		}
	}
}

func (m *Manager) conversationPath(id string) string {
	safeID := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(id)
	return filepath.Join(m.dir, safeID+".jsonl")
}
