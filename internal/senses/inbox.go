package senses

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/types"
)

// InboxEntry is one line in state/inbox.jsonl, written by wisp-mcp
type InboxEntry struct {
	Kind     string         `json:"kind"` // "thought" is the only kind today
	Content  string         `json:"content"`
	Pressure float64        `json:"pressure,omitempty"` // 0-1, defaults to 0.5
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

// InboxSense polls a JSONL file for injected thoughts. The MCP server
// appends; we remember our byte offset so each entry is emitted once,
// across restarts.
type InboxSense struct {
	path       string
	offsetPath string
	onSignal   func(*types.Signal)

	mu       sync.Mutex
	offset   int64
	interval time.Duration
	stopChan chan struct{}
	running  bool
}

// InboxPath returns the inbox file location under a state directory.
// Shared with wisp-mcp so both ends agree.
func InboxPath(statePath string) string {
	return filepath.Join(statePath, "inbox.jsonl")
}

func NewInboxSense(statePath string, interval time.Duration, onSignal func(*types.Signal)) *InboxSense {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &InboxSense{
		path:       InboxPath(statePath),
		offsetPath: filepath.Join(statePath, "inbox.offset"),
		onSignal:   onSignal,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins polling
func (s *InboxSense) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.offset = s.loadOffset()
	s.mu.Unlock()

	go s.pollLoop()
	logging.Info("inbox", "watching %s (every %v)", s.path, s.interval)
}

// Stop stops polling
func (s *InboxSense) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

func (s *InboxSense) pollLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Poll reads any new entries and emits them as thought signals
func (s *InboxSense) Poll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("inbox", "read failed: %v", err)
		}
		return
	}
	if s.offset > int64(len(data)) {
		// file was truncated or rotated, start over
		s.offset = 0
	}
	if s.offset == int64(len(data)) {
		return
	}

	fresh := data[s.offset:]
	consumed := s.offset
	start := 0
	for i, b := range fresh {
		if b != '\n' {
			continue
		}
		line := fresh[start : i+1]
		consumed += int64(len(line))
		start = i + 1
		s.emit(line[:len(line)-1])
	}
	// a partial trailing line stays for the next poll

	s.offset = consumed
	s.saveOffset()
}

func (s *InboxSense) emit(line []byte) {
	if len(line) == 0 {
		return
	}
	var entry InboxEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		logging.Warn("inbox", "skipping malformed line: %v", err)
		return
	}
	if entry.Content == "" {
		return
	}
	pressure := entry.Pressure
	if pressure <= 0 {
		pressure = 0.5
	}
	if pressure > 1 {
		pressure = 1
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}

	data := map[string]any{"thought": entry.Content}
	for k, v := range entry.Data {
		data[k] = v
	}

	logging.Info("inbox", "injected thought: %s", logging.Truncate(entry.Content, 50))
	if s.onSignal != nil {
		s.onSignal(&types.Signal{
			Type:      types.SignalThought,
			Source:    "sense.inbox",
			Metrics:   map[string]float64{types.MetricValue: pressure, types.MetricConfidence: 1.0},
			Priority:  types.PriorityNormal,
			Data:      data,
			Timestamp: at,
		})
	}
}

func (s *InboxSense) loadOffset() int64 {
	data, err := os.ReadFile(s.offsetPath)
	if err != nil {
		return 0
	}
	var off int64
	if err := json.Unmarshal(data, &off); err != nil {
		return 0
	}
	return off
}

func (s *InboxSense) saveOffset() {
	data, _ := json.Marshal(s.offset)
	if err := os.WriteFile(s.offsetPath, data, 0644); err != nil {
		logging.Warn("inbox", "failed to save offset: %v", err)
	}
}

// AppendInboxEntry appends one entry to the inbox file. Used by wisp-mcp.
func AppendInboxEntry(statePath string, entry InboxEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(statePath, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(InboxPath(statePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
