package types

import "time"

// Signal type tags shared across producers and the threshold rules
const (
	SignalSocialDebt      = "social_debt"
	SignalAlertness       = "alertness"
	SignalThoughtPressure = "thought_pressure"
	SignalTaskPressure    = "task_pressure"
	SignalCuriosity       = "curiosity"
	SignalSystemStress    = "system_stress"
	SignalUserMessage     = "user_message"
	SignalThought         = "thought"
	SignalPatternBreak    = "pattern_break"
	SignalScheduledEvent  = "scheduled_event"
)

// Well-known metric keys. Per-factor contributions are stored under
// ContribPrefix + factor name.
const (
	MetricValue         = "value"
	MetricConfidence    = "confidence"
	MetricRateOfChange  = "rateOfChange"
	MetricPreviousValue = "previousValue"
	ContribPrefix       = "contrib_"
)

// Priority orders signals within a tick batch
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// Signal is an immutable observation: produced once by a neuron or sense,
// retained by the aggregator until pruned, never mutated
type Signal struct {
	Type          string             `json:"type"`
	Source        string             `json:"source"` // e.g. neuron.social_debt, sense.discord
	Metrics       map[string]float64 `json:"metrics"`
	Priority      Priority           `json:"priority"`
	CorrelationID string             `json:"correlation_id"` // groups signals from one tick
	Data          map[string]any     `json:"data,omitempty"` // trigger-specific payload
	Timestamp     time.Time          `json:"timestamp"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
}

// Value returns the primary metric (0 if absent)
func (s *Signal) Value() float64 {
	return s.Metrics[MetricValue]
}

// Confidence returns the confidence metric (0 if absent)
func (s *Signal) Confidence() float64 {
	return s.Metrics[MetricConfidence]
}

// Expired reports whether the signal's explicit expiry has passed
func (s *Signal) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Recency returns seconds since the signal was created
func (s *Signal) Recency() float64 {
	return time.Since(s.Timestamp).Seconds()
}

// Trend classifies a bucket's recent movement
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendVolatile   Trend = "volatile"
)

// SignalAggregate is the derived rolling view of one (type, source) bucket.
// Recomputed on read; never stored apart from its bucket.
type SignalAggregate struct {
	Type         string    `json:"type"`
	Source       string    `json:"source"`
	CurrentValue float64   `json:"current_value"` // latest signal's value
	MinValue     float64   `json:"min_value"`
	MaxValue     float64   `json:"max_value"`
	RateOfChange float64   `json:"rate_of_change"` // mean of per-signal rates
	Count        int       `json:"count"`
	LastUpdated  time.Time `json:"last_updated"`
	Trend        Trend     `json:"trend"`
}

// AgentState is the read-only snapshot neurons score against. The store owns
// the persisted drives; the scheduler fills in the derived fields
// (contact_idle, system_load, hour_of_day) each tick.
type AgentState struct {
	Energy               float64   `json:"energy"`
	SocialDebt           float64   `json:"social_debt"`
	TaskPressure         float64   `json:"task_pressure"`
	Curiosity            float64   `json:"curiosity"`
	AcquaintancePressure float64   `json:"acquaintance_pressure"`
	ThoughtPressure      float64   `json:"thought_pressure"`
	ContactIdle          float64   `json:"contact_idle"` // time since contact, normalized 0-1
	SystemLoad           float64   `json:"system_load"`
	HourOfDay            int       `json:"hour_of_day"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Trigger is the categorical reason a wake decision fired
type Trigger string

const (
	TriggerUserMessage      Trigger = "user_message"
	TriggerThought          Trigger = "thought"
	TriggerPatternBreak     Trigger = "pattern_break"
	TriggerThresholdCrossed Trigger = "threshold_crossed"
)

// ProactiveType distinguishes reaching out cold from chasing a reply
type ProactiveType string

const (
	ProactiveInitiate ProactiveType = "initiate"
	ProactiveFollowUp ProactiveType = "follow_up"
)

// WakeDecision is the admission-control verdict. Computed fresh per
// evaluation; the journal keeps a serialized copy for audit.
type WakeDecision struct {
	ShouldWake     bool          `json:"should_wake"`
	Trigger        Trigger       `json:"trigger,omitempty"`
	Reason         string        `json:"reason"`
	Value          float64       `json:"value,omitempty"`     // the number that crossed
	Threshold      float64       `json:"threshold,omitempty"` // what it crossed
	TriggerSignals []*Signal     `json:"trigger_signals,omitempty"`
	ProactiveType  ProactiveType `json:"proactive_type,omitempty"`
}

// ConversationStatus values reported by the conversation tracker
const (
	ConversationActive  = "active"
	ConversationIdle    = "idle"
	ConversationDormant = "dormant"
)

// ConversationSnapshot is the read-only view of the primary conversation
// used by the proactive-contact rule and the loop context
type ConversationSnapshot struct {
	Status        string        `json:"status"`
	ChannelID     string        `json:"channel_id,omitempty"`
	LastMessageAt time.Time     `json:"last_message_at"`
	LastSpeaker   string        `json:"last_speaker,omitempty"` // "user" or "agent"
	AwaitingReply bool          `json:"awaiting_reply"`         // agent spoke last, no answer yet
	IdleFor       time.Duration `json:"idle_for"`
	Availability  float64       `json:"availability"` // belief the user is reachable now
}

// IntentKind discriminates compiled intents
type IntentKind string

const (
	IntentSendMessage   IntentKind = "send_message"
	IntentUpdateState   IntentKind = "update_state"
	IntentScheduleEvent IntentKind = "schedule_event"
	IntentCancelEvent   IntentKind = "cancel_event"
	IntentLog           IntentKind = "log"
)

// Intent is a side-effect-free instruction compiled from a cognition
// session. Ownership passes to the caller with the LoopResult; the caller
// applies it (store, effector, agenda) after the loop has terminated.
type Intent struct {
	Kind IntentKind `json:"kind"`

	// send_message
	ChannelID string `json:"channel_id,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message,omitempty"`
	Urgent    bool   `json:"urgent,omitempty"`

	// update_state
	StateKey string  `json:"state_key,omitempty"`
	Delta    float64 `json:"delta,omitempty"`

	// schedule_event / cancel_event
	EventID string         `json:"event_id,omitempty"`
	Event   string         `json:"event,omitempty"`
	At      time.Time      `json:"at,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`

	// log
	Note string `json:"note,omitempty"`
}
