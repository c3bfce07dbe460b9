// Package store persists the agent's durable state in sqlite: the drive
// snapshot, the conversation log, the wake audit, and the agenda. The
// scheduler reads snapshots each tick and hands intents back for the store
// to apply.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/types"
)

// Store wraps the sqlite database. All access serializes on the mutex
// since loop goroutines and the scheduler both reach it.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database under statePath
func Open(statePath string) (*Store, error) {
	if err := os.MkdirAll(statePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	dbPath := filepath.Join(statePath, "wisp.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Singleton drive snapshot, stored as a JSON blob
	CREATE TABLE IF NOT EXISTS agent_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Conversation log
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		author TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

	-- Wake decision audit
	CREATE TABLE IF NOT EXISTS wakes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		should_wake INTEGER NOT NULL,
		trigger_type TEXT,
		reason TEXT,
		value REAL,
		threshold REAL,
		decision TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Scheduled follow-ups and reminders
	CREATE TABLE IF NOT EXISTS agenda (
		id TEXT PRIMARY KEY,
		event TEXT NOT NULL,
		due_at DATETIME NOT NULL,
		payload TEXT,
		status TEXT NOT NULL DEFAULT 'open',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agenda_due ON agenda(status, due_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// defaultState is the fresh-install snapshot
func defaultState() types.AgentState {
	return types.AgentState{
		Energy:    0.8,
		Curiosity: 0.5,
		UpdatedAt: time.Now(),
	}
}

// Snapshot returns the persisted drive state, seeding defaults on first use
func (s *Store) Snapshot() (types.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() (types.AgentState, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM agent_state WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		state := defaultState()
		if err := s.saveLocked(state); err != nil {
			return state, err
		}
		return state, nil
	}
	if err != nil {
		return types.AgentState{}, fmt.Errorf("failed to read state: %w", err)
	}
	var state types.AgentState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return types.AgentState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	return state, nil
}

// SaveState overwrites the persisted snapshot
func (s *Store) SaveState(state types.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(state)
}

func (s *Store) saveLocked(state types.AgentState) error {
	state.UpdatedAt = time.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO agent_state (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// ApplyStateDelta adjusts one drive by a clamped delta
func (s *Store) ApplyStateDelta(key string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.snapshotLocked()
	if err != nil {
		return err
	}
	switch key {
	case "energy":
		state.Energy = clamp01(state.Energy + delta)
	case "social_debt":
		state.SocialDebt = clamp01(state.SocialDebt + delta)
	case "task_pressure":
		state.TaskPressure = clamp01(state.TaskPressure + delta)
	case "curiosity":
		state.Curiosity = clamp01(state.Curiosity + delta)
	case "acquaintance_pressure":
		state.AcquaintancePressure = clamp01(state.AcquaintancePressure + delta)
	case "thought_pressure":
		state.ThoughtPressure = clamp01(state.ThoughtPressure + delta)
	default:
		return fmt.Errorf("unknown state key %q", key)
	}
	return s.saveLocked(state)
}

// Drift advances the drives by the passage of time: social debt and
// curiosity creep up, energy recovers at rest. Called by the scheduler
// between ticks with the elapsed duration.
func (s *Store) Drift(dt time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.snapshotLocked()
	if err != nil {
		return err
	}
	hours := dt.Hours()
	state.SocialDebt = clamp01(state.SocialDebt + 0.05*hours)
	state.Curiosity = clamp01(state.Curiosity + 0.03*hours)
	state.Energy = clamp01(state.Energy + 0.10*hours)
	state.ThoughtPressure = clamp01(state.ThoughtPressure - 0.02*hours)
	return s.saveLocked(state)
}

// WakeCost burns energy for a completed cognition session
func (s *Store) WakeCost(cost float64) error {
	return s.ApplyStateDelta("energy", -math.Abs(cost))
}

// Message is one conversation log row
type Message struct {
	ID        int64     `json:"id"`
	ChannelID string    `json:"channel_id"`
	Author    string    `json:"author"`
	Role      string    `json:"role"` // "user" or "agent"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordMessage appends to the conversation log
func (s *Store) RecordMessage(channelID, author, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO messages (channel_id, author, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		channelID, author, role, content, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// RecentMessages returns the newest n messages, oldest first
func (s *Store) RecentMessages(n int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, channel_id, author, role, content, created_at
		FROM messages ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.Author, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// RecordWake appends a wake decision to the audit table
func (s *Store) RecordWake(d types.WakeDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO wakes (should_wake, trigger_type, reason, value, threshold, decision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ShouldWake, string(d.Trigger), d.Reason, d.Value, d.Threshold, string(blob), time.Now())
	if err != nil {
		return fmt.Errorf("failed to record wake: %w", err)
	}
	return nil
}

// WakeRecord is one audited decision
type WakeRecord struct {
	ID        int64              `json:"id"`
	Decision  types.WakeDecision `json:"decision"`
	CreatedAt time.Time          `json:"created_at"`
}

// RecentWakes returns the newest n wake records, newest first
func (s *Store) RecentWakes(n int) ([]WakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, decision, created_at FROM wakes ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query wakes: %w", err)
	}
	defer rows.Close()

	var out []WakeRecord
	for rows.Next() {
		var rec WakeRecord
		var blob string
		if err := rows.Scan(&rec.ID, &blob, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wake: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &rec.Decision); err != nil {
			logging.Warn("store", "skipping undecodable wake record %d: %v", rec.ID, err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AgendaItem is one scheduled follow-up or reminder
type AgendaItem struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	DueAt     time.Time      `json:"due_at"`
	Payload   map[string]any `json:"payload,omitempty"`
	Status    string         `json:"status"` // open, fired, cancelled
	CreatedAt time.Time      `json:"created_at"`
}

// AddAgendaItem schedules an item
func (s *Store) AddAgendaItem(item AgendaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		return fmt.Errorf("agenda item needs an id")
	}
	var payload string
	if item.Payload != nil {
		data, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		payload = string(data)
	}
	_, err := s.db.Exec(`INSERT INTO agenda (id, event, due_at, payload, status, created_at)
		VALUES (?, ?, ?, ?, 'open', ?)`,
		item.ID, item.Event, item.DueAt, payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add agenda item: %w", err)
	}
	return nil
}

// DueItems returns open items due at or before now
func (s *Store) DueItems(now time.Time) ([]AgendaItem, error) {
	return s.queryAgenda(`SELECT id, event, due_at, payload, status, created_at FROM agenda
		WHERE status = 'open' AND due_at <= ? ORDER BY due_at`, now)
}

// OpenItems returns every open item, soonest first
func (s *Store) OpenItems() ([]AgendaItem, error) {
	return s.queryAgenda(`SELECT id, event, due_at, payload, status, created_at FROM agenda
		WHERE status = 'open' ORDER BY due_at`)
}

func (s *Store) queryAgenda(query string, args ...any) ([]AgendaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agenda: %w", err)
	}
	defer rows.Close()

	var out []AgendaItem
	for rows.Next() {
		var item AgendaItem
		var payload sql.NullString
		if err := rows.Scan(&item.ID, &item.Event, &item.DueAt, &payload, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agenda item: %w", err)
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &item.Payload); err != nil {
				logging.Warn("store", "agenda item %s has undecodable payload: %v", item.ID, err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// MarkFired closes a fired item
func (s *Store) MarkFired(id string) error {
	return s.setAgendaStatus(id, "fired")
}

// CancelItem cancels an open item
func (s *Store) CancelItem(id string) error {
	return s.setAgendaStatus(id, "cancelled")
}

func (s *Store) setAgendaStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE agenda SET status = ? WHERE id = ? AND status = 'open'`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update agenda item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no open agenda item %q", id)
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
