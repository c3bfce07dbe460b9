package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/wisp-agent/wisp/internal/types"
)

func TestJournalLog(t *testing.T) {
	tmpDir := t.TempDir()
	j := New(tmpDir)

	// Log a wake decision
	err := j.LogWake(types.WakeDecision{
		ShouldWake: true,
		Trigger:    types.TriggerUserMessage,
		Reason:     "direct message from alex",
		Value:      0.9,
		Threshold:  0.5,
	}, "corr-1")
	if err != nil {
		t.Fatalf("LogWake failed: %v", err)
	}

	// Log a loop terminal
	err = j.LogLoop("sess-1", "completed", "small-model", 2, false)
	if err != nil {
		t.Fatalf("LogLoop failed: %v", err)
	}

	// Log a reflex
	err = j.LogReflex("ping", "pong", map[string]any{"channel": "general"})
	if err != nil {
		t.Fatalf("LogReflex failed: %v", err)
	}

	// Read back entries
	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}

	if len(entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(entries))
	}

	// Verify first entry
	if entries[0].Type != EntryWake {
		t.Errorf("Expected wake type, got %s", entries[0].Type)
	}
	if entries[0].Reason != "direct message from alex" {
		t.Errorf("Unexpected reason: %s", entries[0].Reason)
	}
	if entries[0].CorrelationID != "corr-1" {
		t.Errorf("Unexpected correlation id: %s", entries[0].CorrelationID)
	}

	// Verify file format
	data, _ := os.ReadFile(filepath.Join(tmpDir, "journal.jsonl"))
	lines := splitLines(data)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Errorf("Invalid JSON line: %s", line)
		}
	}

	t.Logf("Journal test passed with %d entries", len(entries))
}

func TestNoWakeEntryType(t *testing.T) {
	j := New(t.TempDir())

	if err := j.LogWake(types.WakeDecision{ShouldWake: false, Reason: "nothing above threshold"}, "corr-2"); err != nil {
		t.Fatalf("LogWake failed: %v", err)
	}

	entries, _ := j.Recent(1)
	if len(entries) != 1 || entries[0].Type != EntryNoWake {
		t.Fatalf("expected a nowake entry, got %+v", entries)
	}
}

func TestJournalToday(t *testing.T) {
	tmpDir := t.TempDir()
	j := New(tmpDir)

	// Log some entries today
	j.LogIntent(types.IntentSendMessage, "corr-3", "sent 1 chunk")
	j.LogIntent(types.IntentUpdateState, "corr-3", "energy -0.1")

	entries, err := j.Today()
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("Expected 2 entries today, got %d", len(entries))
	}
}
