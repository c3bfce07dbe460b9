// Package scheduler drives the tick loop: drain the intake queue, sweep
// neurons, feed the aggregator, scan the agenda, evaluate wake rules, and
// hand wake decisions to the cognition orchestrator. One scheduler
// goroutine owns aggregation; cognition runs on its own goroutine behind
// an in-flight guard.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wisp-agent/wisp/internal/agenda"
	"github.com/wisp-agent/wisp/internal/aggregate"
	"github.com/wisp-agent/wisp/internal/backend"
	"github.com/wisp-agent/wisp/internal/cognition"
	"github.com/wisp-agent/wisp/internal/conversation"
	"github.com/wisp-agent/wisp/internal/journal"
	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/neuron"
	"github.com/wisp-agent/wisp/internal/store"
	"github.com/wisp-agent/wisp/internal/threshold"
	"github.com/wisp-agent/wisp/internal/types"
)

// Config tunes the scheduler cadence
type Config struct {
	TickInterval  time.Duration
	PruneInterval time.Duration
	WakeCost      float64 // energy burned per completed cognition session
	HistoryDepth  int     // conversation turns included in loop context
	Identity      string
	ChannelID     string // default outbound channel
	Recipient     string // primary recipient (owner) id
}

func DefaultConfig() Config {
	return Config{
		TickInterval:  30 * time.Second,
		PruneInterval: 5 * time.Minute,
		WakeCost:      0.05,
		HistoryDepth:  20,
	}
}

// SystemReader supplies the snapshot's systemLoad field
type SystemReader interface {
	Load() float64
}

// Scheduler wires the decision core together
type Scheduler struct {
	cfg     Config
	neurons *neuron.Engine
	agg     *aggregate.Aggregator
	thresh  *threshold.Engine
	orch    *cognition.Orchestrator
	store   *store.Store
	conv    *conversation.Tracker
	agenda  *agenda.Agenda
	journal *journal.Journal
	system  SystemReader

	// OnIntent receives every compiled intent the scheduler cannot apply
	// itself (send_message); the daemon routes these to the effector
	OnIntent func(types.Intent)

	mu       sync.Mutex
	intake   []*types.Signal
	inFlight bool

	// intake-rate bookkeeping for the rate_spike watcher
	rateWindow   []time.Time
	rateBaseline float64

	lastTick  time.Time
	lastPrune time.Time

	kick     chan struct{}
	stopChan chan struct{}
	running  bool
}

func New(cfg Config, neurons *neuron.Engine, agg *aggregate.Aggregator, thresh *threshold.Engine,
	orch *cognition.Orchestrator, st *store.Store, conv *conversation.Tracker,
	ag *agenda.Agenda, jrnl *journal.Journal, system SystemReader) *Scheduler {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = def.PruneInterval
	}
	if cfg.WakeCost <= 0 {
		cfg.WakeCost = def.WakeCost
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = def.HistoryDepth
	}
	return &Scheduler{
		cfg:      cfg,
		neurons:  neurons,
		agg:      agg,
		thresh:   thresh,
		orch:     orch,
		store:    st,
		conv:     conv,
		agenda:   ag,
		journal:  jrnl,
		system:   system,
		kick:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Push adds a sense-produced signal to the intake queue
func (s *Scheduler) Push(sig *types.Signal) {
	s.mu.Lock()
	s.intake = append(s.intake, sig)
	s.rateWindow = append(s.rateWindow, time.Now())
	s.mu.Unlock()

	// user messages should not wait out the tick interval
	if sig.Type == types.SignalUserMessage {
		s.Kick()
	}
}

// Kick wakes the scheduler before the next tick
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// IntakeRates reports current vs baseline signals-per-minute for the
// rate_spike watcher
func (s *Scheduler) IntakeRates() (current, baseline float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-time.Minute)
	n := 0
	for _, at := range s.rateWindow {
		if at.After(cutoff) {
			n++
		}
	}
	return float64(n), s.rateBaseline
}

// Start begins ticking
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.run()
	logging.Info("scheduler", "started (tick every %v)", s.cfg.TickInterval)
}

// Stop halts the tick loop. A cognition session already in flight
// finishes on its own goroutine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.lastTick = time.Now()
	s.lastPrune = time.Now()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Tick()
		case <-s.kick:
			s.Tick()
		}
	}
}

// Tick runs one full sense-decide cycle. Exported so tests can step the
// scheduler without real time.
func (s *Scheduler) Tick() {
	now := time.Now()
	correlationID := uuid.NewString()

	// advance drives by elapsed wall time
	if !s.lastTick.IsZero() {
		if err := s.store.Drift(now.Sub(s.lastTick)); err != nil {
			logging.Warn("scheduler", "drift failed: %v", err)
		}
	}
	s.lastTick = now

	state := s.snapshotState(now)
	batch := s.drainIntake(correlationID)

	// neuron sweep joins the externally sensed batch
	batch = append(batch, s.neurons.Sweep(state, correlationID)...)
	batch = append(batch, s.agenda.DueScan(now, correlationID)...)

	for _, sig := range batch {
		s.agg.Add(sig)
	}
	if now.Sub(s.lastPrune) >= s.cfg.PruneInterval {
		removed := s.agg.Prune()
		s.updateRateBaseline(now)
		s.lastPrune = now
		if removed > 0 {
			logging.Debug("scheduler", "pruned %d signals", removed)
		}
	}

	decision := s.thresh.Evaluate(batch, s.agg.AllAggregates(), state)
	if err := s.store.RecordWake(decision); err != nil {
		logging.Warn("scheduler", "failed to record wake: %v", err)
	}
	if err := s.journal.LogWake(decision, correlationID); err != nil {
		logging.Debug("scheduler", "journal write failed: %v", err)
	}

	if !decision.ShouldWake {
		return
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		logging.Info("scheduler", "wake skipped, cognition in flight: %s", decision.Reason)
		s.journal.Log(journal.Entry{
			Type:          journal.EntryNoWake,
			CorrelationID: correlationID,
			Reason:        "cognition already in flight",
			Summary:       string(decision.Trigger),
		})
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	go s.runCognition(correlationID, decision, state, now)
}

// snapshotState merges persisted drives with derived per-tick fields
func (s *Scheduler) snapshotState(now time.Time) types.AgentState {
	state, err := s.store.Snapshot()
	if err != nil {
		logging.Warn("scheduler", "state snapshot failed: %v", err)
	}
	snap := s.conv.Snapshot(now)
	state.ContactIdle = normalizeIdle(snap.IdleFor)
	state.HourOfDay = now.Hour()
	if s.system != nil {
		state.SystemLoad = s.system.Load()
	}
	return state
}

func (s *Scheduler) drainIntake(correlationID string) []*types.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.intake
	s.intake = nil
	for _, sig := range batch {
		if sig.CorrelationID == "" {
			sig.CorrelationID = correlationID
		}
	}
	return batch
}

// updateRateBaseline folds the last window into a slow-moving average and
// drops stale timestamps
func (s *Scheduler) updateRateBaseline(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-time.Minute)
	kept := s.rateWindow[:0]
	current := 0.0
	for _, at := range s.rateWindow {
		if at.After(cutoff) {
			kept = append(kept, at)
			current++
		}
	}
	s.rateWindow = kept
	if s.rateBaseline == 0 {
		s.rateBaseline = current
	} else {
		s.rateBaseline = 0.8*s.rateBaseline + 0.2*current
	}
}

func (s *Scheduler) runCognition(correlationID string, decision types.WakeDecision, state types.AgentState, now time.Time) {
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	lc := s.buildLoopContext(correlationID, decision, state, now)
	result := s.orch.Run(context.Background(), lc)

	if err := s.journal.LogLoop(lc.SessionID, result.Terminal, result.Model, result.ToolCalls, result.Escalated); err != nil {
		logging.Debug("scheduler", "journal write failed: %v", err)
	}

	s.applyIntents(result.Intents, correlationID)

	if result.Success {
		if err := s.store.WakeCost(s.cfg.WakeCost); err != nil {
			logging.Warn("scheduler", "wake cost failed: %v", err)
		}
	} else {
		logging.Warn("scheduler", "cognition %s: %s (%s)", lc.SessionID, result.Terminal, result.Reason)
	}
}

func (s *Scheduler) buildLoopContext(correlationID string, decision types.WakeDecision, state types.AgentState, now time.Time) cognition.LoopContext {
	snap := s.conv.Snapshot(now)

	var sig *types.Signal
	if len(decision.TriggerSignals) > 0 {
		sig = decision.TriggerSignals[0]
	}

	channelID := s.cfg.ChannelID
	recipient := s.cfg.Recipient
	if sig != nil {
		if ch, ok := sig.Data["channel_id"].(string); ok && ch != "" {
			channelID = ch
		}
		if author, ok := sig.Data["author_id"].(string); ok && author != "" {
			recipient = author
		}
	}

	return cognition.LoopContext{
		SessionID:     correlationID,
		Trigger:       decision.Trigger,
		ProactiveType: decision.ProactiveType,
		Signal:        sig,
		Reason:        decision.Reason,
		State:         state,
		Conversation:  snap,
		History:       s.recentHistory(),
		Identity:      s.cfg.Identity,
		ChannelID:     channelID,
		Recipient:     recipient,
	}
}

// recentHistory converts the message log into backend turns
func (s *Scheduler) recentHistory() []backend.Message {
	msgs, err := s.store.RecentMessages(s.cfg.HistoryDepth)
	if err != nil {
		logging.Warn("scheduler", "history load failed: %v", err)
		return nil
	}
	var out []backend.Message
	for _, m := range msgs {
		role := backend.RoleUser
		if m.Role == "agent" {
			role = backend.RoleAssistant
		}
		out = append(out, backend.Message{Role: role, Content: m.Content})
	}
	return out
}

// applyIntents routes a terminated loop's intents: state and agenda changes
// apply here, messages go to the daemon's effector callback
func (s *Scheduler) applyIntents(intents []types.Intent, correlationID string) {
	for _, intent := range intents {
		var summary string
		var err error
		switch intent.Kind {
		case types.IntentSendMessage:
			if s.OnIntent != nil {
				s.OnIntent(intent)
			}
			summary = logging.Truncate(intent.Message, 80)
		case types.IntentUpdateState:
			err = s.store.ApplyStateDelta(intent.StateKey, intent.Delta)
			summary = intent.StateKey
		case types.IntentScheduleEvent:
			err = s.agenda.Schedule(store.AgendaItem{
				ID:      intent.EventID,
				Event:   intent.Event,
				DueAt:   intent.At,
				Payload: intent.Payload,
			})
			summary = intent.Event
		case types.IntentCancelEvent:
			err = s.agenda.Cancel(intent.EventID)
			summary = intent.EventID
		case types.IntentLog:
			summary = logging.Truncate(intent.Note, 80)
		default:
			logging.Warn("scheduler", "unhandled intent kind %s", intent.Kind)
			continue
		}
		if err != nil {
			logging.Warn("scheduler", "intent %s failed: %v", intent.Kind, err)
			continue
		}
		if jerr := s.journal.LogIntent(intent.Kind, correlationID, summary); jerr != nil {
			logging.Debug("scheduler", "journal write failed: %v", jerr)
		}
	}
}

// normalizeIdle maps idle duration onto [0,1]; 4 hours of silence is full
func normalizeIdle(idle time.Duration) float64 {
	const full = 4 * time.Hour
	if idle <= 0 {
		return 0
	}
	if idle >= full {
		return 1
	}
	return float64(idle) / float64(full)
}
