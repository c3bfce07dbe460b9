package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

// EntryType identifies what kind of journal entry this is
type EntryType string

const (
	EntryWake   EntryType = "wake"   // threshold engine decided to wake
	EntryNoWake EntryType = "nowake" // tick evaluated, nothing crossed
	EntryLoop   EntryType = "loop"   // cognition session terminal
	EntryIntent EntryType = "intent" // intent applied to the world
	EntryReflex EntryType = "reflex" // reflex answered without a wake
)

// Entry represents a single journal entry
type Entry struct {
	Timestamp     time.Time      `json:"ts"`
	Type          EntryType      `json:"type"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Summary       string         `json:"summary,omitempty"` // brief description
	Reason        string         `json:"reason,omitempty"`  // what prompted this
	Outcome       string         `json:"outcome,omitempty"` // what resulted
	Data          map[string]any `json:"data,omitempty"`    // flexible extra data
}

// Journal writes observability entries to state/journal.jsonl
type Journal struct {
	path string
	mu   sync.Mutex
}

// New creates a journal writer
func New(statePath string) *Journal {
	return &Journal{
		path: filepath.Join(statePath, "journal.jsonl"),
	}
}

// Log writes an entry to the journal
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LogWake records a wake decision, positive or negative
func (j *Journal) LogWake(d types.WakeDecision, correlationID string) error {
	entryType := EntryWake
	if !d.ShouldWake {
		entryType = EntryNoWake
	}
	return j.Log(Entry{
		Type:          entryType,
		CorrelationID: correlationID,
		Summary:       string(d.Trigger),
		Reason:        d.Reason,
		Data: map[string]any{
			"value":     d.Value,
			"threshold": d.Threshold,
		},
	})
}

// LogLoop records a cognition session terminal
func (j *Journal) LogLoop(sessionID, terminal, model string, toolCalls int, escalated bool) error {
	return j.Log(Entry{
		Type:          EntryLoop,
		CorrelationID: sessionID,
		Outcome:       terminal,
		Data: map[string]any{
			"model":      model,
			"tool_calls": toolCalls,
			"escalated":  escalated,
		},
	})
}

// LogIntent records an applied intent
func (j *Journal) LogIntent(kind types.IntentKind, correlationID, summary string) error {
	return j.Log(Entry{
		Type:          EntryIntent,
		CorrelationID: correlationID,
		Summary:       string(kind),
		Outcome:       summary,
	})
}

// LogReflex records a reflex that answered without waking cognition
func (j *Journal) LogReflex(pattern, action string, data map[string]any) error {
	return j.Log(Entry{
		Type:    EntryReflex,
		Reason:  pattern,
		Summary: action,
		Data:    data,
	})
}

// Recent returns the last n entries from the journal
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}

	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Today returns entries from today
func (j *Journal) Today() ([]Entry, error) {
	entries, err := j.Recent(1000)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var todayEntries []Entry
	for _, e := range entries {
		if !e.Timestamp.Before(today) {
			todayEntries = append(todayEntries, e)
		}
	}
	return todayEntries, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
