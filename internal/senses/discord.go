// Package senses holds the producers that push externally originated
// signals into the scheduler's intake: Discord messages, injected thoughts,
// and system readings.
package senses

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/types"
)

// DiscordSense listens to Discord and produces user_message signals
type DiscordSense struct {
	session   *discordgo.Session
	channelID string
	ownerID   string
	botID     string
	onSignal  func(*types.Signal)
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string
	OwnerID   string
}

// NewDiscordSense creates a new Discord sense
func NewDiscordSense(cfg DiscordConfig, onSignal func(*types.Signal)) (*DiscordSense, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		channelID: cfg.ChannelID,
		ownerID:   cfg.OwnerID,
		onSignal:  onSignal,
	}

	session.AddHandler(sense.handleMessage)

	// We only need message content
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening
func (d *DiscordSense) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Bot's own ID for self-filtering
	d.botID = d.session.State.User.ID
	logging.Info("discord-sense", "connected as %s", d.session.State.User.Username)

	return nil
}

// Stop disconnects from Discord
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// Session returns the underlying Discord session (shared with the effector)
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

func (d *DiscordSense) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == d.botID {
		return
	}

	// Only the configured channel, plus DMs
	if d.channelID != "" && m.ChannelID != d.channelID && m.GuildID != "" {
		return
	}

	sig := d.messageToSignal(m)

	logging.Info("discord-sense", "message: %s (intensity: %.2f, tags: %v)",
		logging.Truncate(m.Content, 50), sig.Value(), sig.Data["tags"])

	if d.onSignal != nil {
		d.onSignal(sig)
	}
}

// messageToSignal converts a Discord message to a user_message signal
func (d *DiscordSense) messageToSignal(m *discordgo.MessageCreate) *types.Signal {
	analysis := Analyze(m.Content)
	tags := d.computeTags(m, analysis)

	return &types.Signal{
		Type:   types.SignalUserMessage,
		Source: "sense.discord",
		Metrics: map[string]float64{
			types.MetricValue:      d.computeIntensity(m),
			types.MetricConfidence: 1.0,
		},
		Priority:  types.PriorityHigh,
		Timestamp: time.Now(),
		Data: map[string]any{
			"channel_id":   m.ChannelID,
			"message_id":   m.ID,
			"author_id":    m.Author.ID,
			"author_name":  m.Author.Username,
			"content":      m.Content,
			"is_dm":        m.GuildID == "",
			"mentions_bot": d.mentionsBot(m),
			"is_question":  analysis.IsQuestion,
			"entities":     analysis.Entities,
			"tags":         tags,
		},
	}
}

// computeIntensity determines signal strength (0.0-1.0)
func (d *DiscordSense) computeIntensity(m *discordgo.MessageCreate) float64 {
	intensity := 0.5 // base intensity

	// Owner messages are high priority
	if m.Author.ID == d.ownerID {
		intensity = 0.9
	}

	// DMs are high priority
	if m.GuildID == "" {
		intensity = max(intensity, 0.8)
	}

	// Bot mentions are high priority
	if d.mentionsBot(m) {
		intensity = max(intensity, 0.85)
	}

	// Urgent keywords boost intensity
	content := strings.ToLower(m.Content)
	urgentKeywords := []string{"urgent", "asap", "help", "error", "broken", "emergency"}
	for _, kw := range urgentKeywords {
		if strings.Contains(content, kw) {
			intensity = max(intensity, 0.8)
			break
		}
	}

	return intensity
}

func (d *DiscordSense) computeTags(m *discordgo.MessageCreate, analysis Analysis) []string {
	var tags []string

	if m.Author.ID == d.ownerID {
		tags = append(tags, "from:owner")
	}
	if m.GuildID == "" {
		tags = append(tags, "dm")
	}
	if d.mentionsBot(m) {
		tags = append(tags, "mention")
	}
	if analysis.IsQuestion {
		tags = append(tags, "question")
	}

	return tags
}

func (d *DiscordSense) mentionsBot(m *discordgo.MessageCreate) bool {
	for _, mention := range m.Mentions {
		if mention.ID == d.botID {
			return true
		}
	}
	return false
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
